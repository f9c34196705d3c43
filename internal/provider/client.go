package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/startfranchise/chat-engine/internal/chat"
	"github.com/startfranchise/chat-engine/internal/routing"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client sends chat completion requests to a single provider. The Google
// backend speaks the Gemini generateContent API; every other backend is
// OpenAI-compatible.
type Client struct {
	provider   Provider
	httpClient *http.Client
}

// NewClient creates a client for one provider with a per-attempt timeout.
func NewClient(p Provider, timeout time.Duration) *Client {
	return &Client{
		provider:   p,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Chunk is one streamed piece of generated text. A non-nil Err terminates
// the stream.
type Chunk struct {
	Text string
	Err  error
}

// chatRequest is the OpenAI-compatible request body.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse covers both full and streamed OpenAI-compatible responses.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs one completion attempt. It returns the generated text and
// the upstream HTTP status, which the caller feeds into classification.
func (c *Client) Generate(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (string, int, error) {
	if c.provider.Name == NameGoogle {
		return c.generateGemini(ctx, tier, system, messages)
	}
	return c.generateOpenAI(ctx, tier, system, messages, false, nil)
}

// Stream runs one streaming completion attempt. Errors establishing the
// stream are returned synchronously; mid-stream errors arrive on the
// channel. The channel is closed when the stream ends.
func (c *Client) Stream(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan Chunk, int, error) {
	if c.provider.Name == NameGoogle {
		return c.streamGemini(ctx, tier, system, messages)
	}
	ch := make(chan Chunk, 16)
	_, status, err := c.generateOpenAI(ctx, tier, system, messages, true, ch)
	if err != nil {
		return nil, status, err
	}
	return ch, status, nil
}

func (c *Client) generateOpenAI(ctx context.Context, tier routing.Tier, system string, messages []chat.Message, stream bool, ch chan Chunk) (string, int, error) {
	body := chatRequest{
		Model:  c.provider.Model(tier),
		Stream: stream,
	}
	if system != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		body.Messages = append(body.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(c.provider.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.provider.APIKey)
	}
	if c.provider.Name == NameOpenRouter {
		req.Header.Set("HTTP-Referer", "https://startfranchise.id")
		req.Header.Set("X-Title", "StartFranchise Chat")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", resp.StatusCode, fmt.Errorf("api returned status %d: %s", resp.StatusCode, apiErrorMessage(raw))
	}

	if stream {
		go c.parseSSE(resp.Body, ch)
		return "", resp.StatusCode, nil
	}

	defer resp.Body.Close()
	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", resp.StatusCode, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, resp.StatusCode, nil
}

func (c *Client) generateGemini(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (string, int, error) {
	resp, status, err := c.doGemini(ctx, tier, system, messages, false)
	if err != nil {
		return "", status, err
	}
	defer resp.Body.Close()

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", status, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", status, fmt.Errorf("api error: %s", parsed.Error.Message)
	}
	return geminiText(parsed), status, nil
}

func (c *Client) streamGemini(ctx context.Context, tier routing.Tier, system string, messages []chat.Message) (<-chan Chunk, int, error) {
	resp, status, err := c.doGemini(ctx, tier, system, messages, true)
	if err != nil {
		return nil, status, err
	}

	ch := make(chan Chunk, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			data, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var parsed geminiResponse
			if err := json.Unmarshal([]byte(data), &parsed); err != nil {
				continue
			}
			if text := geminiText(parsed); text != "" {
				ch <- Chunk{Text: text}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- Chunk{Err: err}
		}
	}()
	return ch, status, nil
}

func (c *Client) doGemini(ctx context.Context, tier routing.Tier, system string, messages []chat.Message, stream bool) (*http.Response, int, error) {
	body := geminiRequest{}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}

	base := c.provider.BaseURL
	if base == "" {
		base = geminiBaseURL
	}
	method := "generateContent?"
	if stream {
		method = "streamGenerateContent?alt=sse&"
	}
	url := fmt.Sprintf("%s/models/%s:%skey=%s", strings.TrimRight(base, "/"), c.provider.Model(tier), method, c.provider.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("api returned status %d: %s", resp.StatusCode, apiErrorMessage(raw))
	}
	return resp, resp.StatusCode, nil
}

// parseSSE reads an OpenAI-style SSE body and forwards delta content.
func (c *Client) parseSSE(body io.ReadCloser, ch chan Chunk) {
	defer close(ch)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		if strings.TrimSpace(data) == "[DONE]" {
			return
		}
		var parsed chatResponse
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			continue
		}
		if len(parsed.Choices) > 0 && parsed.Choices[0].Delta.Content != "" {
			ch <- Chunk{Text: parsed.Choices[0].Delta.Content}
		}
	}
	if err := scanner.Err(); err != nil {
		ch <- Chunk{Err: err}
	}
}

func geminiText(resp geminiResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// apiErrorMessage pulls a human message out of an error body when the
// provider returns structured JSON, falling back to the raw body.
func apiErrorMessage(raw []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	return strings.TrimSpace(string(raw))
}
