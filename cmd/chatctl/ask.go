package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// askRequest mirrors the POST /api/v1/chat request body.
type askRequest struct {
	Messages     []askMessage `json:"messages"`
	UserLocation *askLocation `json:"userLocation,omitempty"`
	Override     *askOverride `json:"providerOverride,omitempty"`
	Stream       bool         `json:"stream,omitempty"`
}

type askOverride struct {
	Name   string `json:"name"`
	APIKey string `json:"apiKey,omitempty"`
}

type askMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type askLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// askResponse mirrors the POST /api/v1/chat response body.
type askResponse struct {
	Reply      string      `json:"reply"`
	Actions    []askAction `json:"actions"`
	Cached     bool        `json:"cached"`
	CacheType  string      `json:"cacheType"`
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Complexity string      `json:"complexity"`
	Error      string      `json:"error"`
}

type askAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// askChunk is one SSE event from a streamed reply.
type askChunk struct {
	Delta string `json:"delta"`
	Error string `json:"error"`
	askResponse
}

// newAskCmd creates the ask subcommand.
func newAskCmd() *cobra.Command {
	var (
		lat          float64
		lng          float64
		providerName string
		apiKey       string
		stream       bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the franchise assistant a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := askRequest{
				Messages: []askMessage{{Role: "user", Content: args[0]}},
				Stream:   stream,
			}
			if providerName != "" {
				req.Override = &askOverride{Name: providerName, APIKey: apiKey}
			}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lng") {
				req.UserLocation = &askLocation{Lat: lat, Lng: lng}
			}

			if stream && !outputJSON {
				return askStreaming(req)
			}
			return askOnce(req)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "user latitude for location-aware answers")
	cmd.Flags().Float64Var(&lng, "lng", 0, "user longitude for location-aware answers")
	cmd.Flags().StringVar(&providerName, "provider", "", "force a specific LLM provider (google, openrouter, groq, local)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the forced provider, replacing the configured one")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the reply as it is generated")

	return cmd
}

func askOnce(req askRequest) error {
	req.Stream = false
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	var spin *spinner.Spinner
	if !outputJSON {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		spin.Suffix = " Thinking..."
		spin.Start()
	}

	resp, err := http.Post(serverURL+"/api/v1/chat", "application/json", bytes.NewReader(payload))
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if outputJSON {
		fmt.Println(strings.TrimSpace(string(body)))
		if resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		return nil
	}

	var parsed askResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", parsed.Reply)
		if parsed.Error != "" {
			fmt.Fprintln(os.Stderr, parsed.Error)
		}
		os.Exit(1)
	}

	printReply(parsed)
	return nil
}

// askStreaming prints deltas as they arrive, then the final metadata.
func askStreaming(req askRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	resp, err := http.Post(serverURL+"/api/v1/chat", "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var parsed askResponse
		_ = json.Unmarshal(body, &parsed)
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", parsed.Reply)
		os.Exit(1)
	}

	var final askResponse
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data: ")
		if !ok {
			continue
		}
		var chunk askChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			fmt.Println()
			color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", chunk.Error)
			os.Exit(1)
		}
		if chunk.Delta != "" {
			fmt.Print(chunk.Delta)
		}
		if chunk.Reply != "" || len(chunk.Actions) > 0 {
			final = chunk.askResponse
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Println()
	printMeta(final)
	return nil
}

func printReply(resp askResponse) {
	fmt.Println(strings.TrimSpace(resp.Reply))
	fmt.Println()
	printMeta(resp)
}

func printMeta(resp askResponse) {
	dim := color.New(color.Faint)
	if resp.Cached {
		dim.Printf("cached (%s)\n", resp.CacheType)
	} else if resp.Provider != "" {
		dim.Printf("%s / %s", resp.Provider, resp.Model)
		if resp.Complexity != "" {
			dim.Printf(" [%s]", resp.Complexity)
		}
		dim.Println()
	}
	for _, a := range resp.Actions {
		color.New(color.FgCyan).Printf("→ %s (%s)\n", a.Label, a.Type)
	}
}
