package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/widget"
	"github.com/tmaxmax/go-sse"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
)

// Main is the presentation layer of the widget. It serves the widget markup, turns user intents
// posted by the page into calls on the session's widget.Controller, and pushes the controller's
// rendering commands back to the page through server-sent events.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	markdown  goldmark.Markdown

	cfg            models.WidgetConfig
	defaultOrigin  string
	minLatency     time.Duration
	requestTimeout time.Duration
	sessionTTL     time.Duration

	sessions *sessions

	logger *slog.Logger
}

// Config holds what Main needs to build a widget for every page load.
type Config struct {
	Widget models.WidgetConfig
	// DefaultOrigin is used for the domain validation handshake when a request carries neither an
	// Origin nor a Referer header.
	DefaultOrigin     string
	MinDisplayLatency time.Duration
	RequestTimeout    time.Duration
	// SessionTTL is how long a session is kept without a connected SSE stream, both before the
	// page first connects and after its last stream ends. Zero selects defaultSessionTTL.
	SessionTTL time.Duration
}

type sessions struct {
	mu      sync.Mutex
	entries map[string]*session
}

type session struct {
	controller *widget.Controller
	streams    int
	lastSeen   time.Time
}

const (
	errLoggerKey = "err"

	defaultSessionTTL = 10 * time.Minute
)

// NewMain creates a new Main instance. It parses the widget templates from the embedded filesystem
// and configures the SSE server so every page subscribes to the topic of its own session.
func NewMain(cfg Config, logger *slog.Logger) (Main, error) {
	tmpl, err := template.ParseFS(
		chatwidget.TemplateFS,
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				topics := []string{sse.DefaultTopic}

				sessionID := s.Req.URL.Query().Get("session_id")
				if sessionID != "" {
					topics = append(topics, sessionTopic(sessionID))
				}

				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      topics,
				}, true
			},
		},
		templates: tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(highlighting.WithStyle("github")),
			),
		),
		cfg:            cfg.Widget,
		defaultOrigin:  cfg.DefaultOrigin,
		minLatency:     cfg.MinDisplayLatency,
		requestTimeout: cfg.RequestTimeout,
		sessionTTL:     sessionTTL,
		sessions: &sessions{
			entries: make(map[string]*session),
		},
		logger: logger.With(slog.String("module", "handlers")),
	}, nil
}

func sessionTopic(sessionID string) string {
	return fmt.Sprintf("session-%s", sessionID)
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all connected
// pages and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeWidget")}
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// ExpireSessions evicts idle sessions until ctx is done. A session is idle when no SSE stream is
// connected to it and none has been for the configured session TTL.
func (m Main) ExpireSessions(ctx context.Context) {
	ticker := time.NewTicker(max(m.sessionTTL/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.expireSessions(now)
		}
	}
}

func (m Main) expireSessions(now time.Time) {
	for _, c := range m.sessions.expire(now, m.sessionTTL) {
		// Abandons an exchange that may still be waiting on the endpoint.
		c.Close()
	}
}

func (s *sessions) add(id string, c *widget.Controller, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &session{controller: c, lastSeen: now}
}

func (s *sessions) get(id string) (*widget.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	return e.controller, true
}

// attach records a connected SSE stream, reporting false for an unknown session.
func (s *sessions) attach(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return false
	}
	e.streams++
	return true
}

func (s *sessions) detach(id string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.streams--
	e.lastSeen = now
}

// expire removes the sessions without a stream that were last seen ttl or longer before now, and
// returns their controllers.
func (s *sessions) expire(now time.Time, ttl time.Duration) []*widget.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*widget.Controller
	for id, e := range s.entries {
		if e.streams > 0 || now.Sub(e.lastSeen) < ttl {
			continue
		}
		expired = append(expired, e.controller)
		delete(s.entries, id)
	}
	return expired
}

func (s *sessions) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
