package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
)

// renderer publishes the rendering commands of one session's controller as SSE messages on the
// session topic. Message events carry rendered HTML partials, the rest carry small payloads the
// widget script applies directly.
type renderer struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown
	topic     string

	logger *slog.Logger
}

type message struct {
	ID        string
	Sender    string
	Text      string
	HTML      template.HTML
	Timestamp time.Time
}

type stateData struct {
	State      widget.State `json:"state"`
	ClearInput bool         `json:"clearInput"`
}

func (m Main) renderer(sessionID string) renderer {
	return renderer{
		sseSrv:    m.sseSrv,
		templates: m.templates,
		markdown:  m.markdown,
		topic:     sessionTopic(sessionID),
		logger:    m.logger.With(slog.String("sessionID", sessionID)),
	}
}

func (r renderer) Render(e widget.Event) {
	data, err := r.eventData(e)
	if err != nil {
		r.logger.Error("Failed to render event",
			slog.String("event", fmt.Sprintf("%+v", e)),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: sse.Type(string(e.Type)),
	}
	msg.AppendData(data)
	if err := r.sseSrv.Publish(&msg, r.topic); err != nil {
		r.logger.Error("Failed to publish event",
			slog.String("event", string(e.Type)),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (r renderer) eventData(e widget.Event) (string, error) {
	switch e.Type {
	case widget.EventMessage:
		return r.renderMessage(e.Message)
	case widget.EventTyping:
		var sb strings.Builder
		if err := r.templates.ExecuteTemplate(&sb, "typing_indicator", e.PlaceholderID); err != nil {
			return "", fmt.Errorf("failed to execute typing_indicator template: %w", err)
		}
		return sb.String(), nil
	case widget.EventTypingDone:
		return e.PlaceholderID, nil
	case widget.EventState:
		b, err := json.Marshal(stateData{State: e.State, ClearInput: e.ClearInput})
		if err != nil {
			return "", fmt.Errorf("failed to marshal state: %w", err)
		}
		return string(b), nil
	case widget.EventScroll:
		return "end", nil
	}
	return "", fmt.Errorf("unknown event type %q", e.Type)
}

// renderMessage renders user text escaped as-is, while bot replies are treated as Markdown.
func (r renderer) renderMessage(msg models.Message) (string, error) {
	view := message{
		ID:        msg.ID,
		Sender:    string(msg.Sender),
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
	}

	name := "user_message"
	if msg.Sender == models.SenderBot {
		name = "bot_message"
		var buf bytes.Buffer
		if err := r.markdown.Convert([]byte(msg.Text), &buf); err != nil {
			return "", fmt.Errorf("failed to convert markdown: %w", err)
		}
		view.HTML = template.HTML(buf.String())
	}

	var sb strings.Builder
	if err := r.templates.ExecuteTemplate(&sb, name, view); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return sb.String(), nil
}
