package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single entry of the visible transcript. Messages are created once per send or reply
// and never changed afterwards.
type Message struct {
	ID        string
	Sender    Sender
	Text      string
	Timestamp time.Time
}

// Sender identifies who authored a message.
type Sender string

const (
	// SenderUser marks text typed by the person using the widget.
	SenderUser Sender = "user"
	// SenderBot marks replies obtained from the webhook endpoint, including fallback texts.
	SenderBot Sender = "bot"
)

// Fixed texts shown to the user in place of a real reply.
const (
	// NoResponseText is shown when the endpoint answered but carried no reply field.
	NoResponseText = "No response"
	// FallbackUnavailableText is the transport failure text of the webhook variant.
	FallbackUnavailableText = "Unable to obtain a response. Please try again."
	// FallbackProcessingText is the transport failure text of the authenticated variant.
	FallbackProcessingText = "Sorry, an error occurred while processing your message."
)

// NewMessage stamps a new message with a fresh ID and the current time.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.New().String(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// Client is a widget installation registered with a webhook endpoint. An empty AllowedOrigins
// list accepts every origin.
type Client struct {
	ID             string   `json:"id" yaml:"id"`
	APIKey         string   `json:"apiKey" yaml:"apiKey"`
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"`
}
