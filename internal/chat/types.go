// Package chat defines the shared conversation types of the chat engine.
package chat

import "strings"

// Message is a single conversation turn. Conversations are owned by the
// caller; the server keeps no per-conversation state between requests.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// LatLng is a user-supplied geographic position.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LastUserContent returns the content of the final message, which is the
// only message that drives routing and retrieval.
func LastUserContent(messages []Message) string {
	if len(messages) == 0 {
		return ""
	}
	return strings.TrimSpace(messages[len(messages)-1].Content)
}
