package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MegaGrindStone/chat-widget/internal/widget"
)

// HandleOpen opens the chat window of the session given by the "session_id" form field.
func (m Main) HandleOpen(w http.ResponseWriter, r *http.Request) {
	c, ok := m.sessionFromForm(w, r)
	if !ok {
		return
	}
	c.Open()
	w.WriteHeader(http.StatusNoContent)
}

// HandleClose closes the chat window of the session given by the "session_id" form field.
func (m Main) HandleClose(w http.ResponseWriter, r *http.Request) {
	c, ok := m.sessionFromForm(w, r)
	if !ok {
		return
	}
	c.Close()
	w.WriteHeader(http.StatusNoContent)
}

// HandleMessages submits the "message" form field to the session given by "session_id". The send
// cycle runs in the background and reaches the page as server-sent events, so a successful submit
// answers 202 Accepted right away. Blank messages are ignored with 204 No Content, and a submit
// while the previous message still awaits its reply is refused with 409 Conflict.
func (m Main) HandleMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := m.sessionFromForm(w, r)
	if !ok {
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The exchange outlives the request; only Close may cancel it.
	complete, err := c.Begin(context.Background(), msg)
	if err != nil {
		if errors.Is(err, widget.ErrExchangeInFlight) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	go complete()

	w.WriteHeader(http.StatusAccepted)
}

func (m Main) sessionFromForm(w http.ResponseWriter, r *http.Request) (*widget.Controller, bool) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	sessionID := r.FormValue("session_id")
	c, ok := m.sessions.get(sessionID)
	if !ok {
		m.logger.Error("Session not found", slog.String("sessionID", sessionID))
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return c, true
}
