package widget

import "github.com/MegaGrindStone/chat-widget/internal/models"

// State is the visibility of the chat window.
type State string

const (
	// StateClosed shows only the bubble. Every controller starts closed.
	StateClosed State = "closed"
	// StateOpen shows the message panel.
	StateOpen State = "open"
)

// EventType names a rendering command.
type EventType string

const (
	// EventMessage appends Message to the transcript view.
	EventMessage EventType = "message"
	// EventTyping shows the typing placeholder identified by PlaceholderID.
	EventTyping EventType = "typing"
	// EventTypingDone removes the typing placeholder identified by PlaceholderID.
	EventTypingDone EventType = "typingDone"
	// EventState switches the window to State, emptying the input field if ClearInput is set.
	EventState EventType = "state"
	// EventScroll scrolls the transcript view to its end.
	EventScroll EventType = "scroll"
)

// Event is a rendering command sent from a Controller to its Renderer. Only the fields relevant to
// Type are filled.
type Event struct {
	Type EventType

	Message       models.Message
	PlaceholderID string
	State         State
	ClearInput    bool
}
