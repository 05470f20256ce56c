package handlers

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/google/uuid"
)

type widgetPageData struct {
	SessionID string
	Theme     models.Theme
}

// HandleHome starts a widget session for the requesting page and renders the widget markup. When
// the configuration is incomplete or the page origin is not authorized, it responds with
// 204 No Content and an empty body, so the embedding page shows no widget.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := uuid.New().String()
	origin := requestOrigin(r, m.defaultOrigin)

	c, err := widget.New(r.Context(), widget.Settings{
		Config:            m.cfg,
		Origin:            origin,
		MinDisplayLatency: m.minLatency,
		RequestTimeout:    m.requestTimeout,
		Logger:            m.logger,
	}, m.renderer(sessionID))
	if err != nil {
		m.logger.Warn("Widget disabled for request",
			slog.String("origin", origin),
			slog.String(errLoggerKey, err.Error()))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	m.sessions.add(sessionID, c, time.Now())

	data := widgetPageData{
		SessionID: sessionID,
		Theme:     m.cfg.Theme,
	}
	if err := m.templates.ExecuteTemplate(w, "widget.html", data); err != nil {
		m.logger.Error("Failed to render widget", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleSSE streams the rendering commands of the session named by the session_id query parameter.
// It blocks while the page stays connected; once the last stream of a session ends, the session is
// left to expire after the session TTL unless the page reconnects first.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if !m.sessions.attach(sessionID) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	defer m.sessions.detach(sessionID, time.Now())

	m.sseSrv.ServeHTTP(w, r)
}

// requestOrigin returns the origin of the page that embeds the widget. Browsers send Origin on
// cross-origin loads; same-origin iframes only carry a Referer.
func requestOrigin(r *http.Request, fallback string) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	if ref, err := url.Parse(r.Header.Get("Referer")); err == nil && ref.Scheme != "" && ref.Host != "" {
		return ref.Scheme + "://" + ref.Host
	}
	return fallback
}
