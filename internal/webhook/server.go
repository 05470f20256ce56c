// Package webhook implements the remote side of the widget protocol: the domain validation
// handshake and the chat endpoint that turns one message into one reply.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// Registry looks up the widget clients allowed to use the endpoint.
type Registry interface {
	Client(ctx context.Context, id string) (models.Client, bool, error)
}

// Responder produces the reply to a single chat message.
type Responder interface {
	Reply(ctx context.Context, message string) (string, error)
}

// Server serves the /validate-domain and /chat endpoints.
type Server struct {
	registry  Registry
	responder Responder

	requireAuth bool
	envelope    bool

	logger *slog.Logger
}

// Options tune the chat endpoint.
type Options struct {
	// RequireAuth makes /chat demand the bearer and Client-ID headers of a registered client.
	RequireAuth bool
	// Envelope wraps replies as {"body": {"response": ...}} instead of {"response": ...}.
	Envelope bool
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type envelopedChatResponse struct {
	Body chatResponse `json:"body"`
}

type validateDomainResponse struct {
	IsValid bool `json:"isValid"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errUnauthorized = errors.New("unauthorized")

const errLoggerKey = "err"

// NewServer creates a Server answering chat messages with responder and authorizing clients
// against registry.
func NewServer(registry Registry, responder Responder, opts Options, logger *slog.Logger) Server {
	return Server{
		registry:    registry,
		responder:   responder,
		requireAuth: opts.RequireAuth,
		envelope:    opts.Envelope,
		logger:      logger.With(slog.String("module", "webhook")),
	}
}

// HandleValidateDomain answers whether the Origin header may host the widget of the client named by
// Client-ID, authenticated with the bearer token. Unknown clients, wrong keys and origins outside
// the client's allow list all answer {"isValid": false}.
func (s Server) HandleValidateDomain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	origin := r.Header.Get("Origin")
	client, err := s.authorize(r)
	if err != nil {
		if !errors.Is(err, errUnauthorized) {
			s.logger.Error("Failed to authorize client", slog.String(errLoggerKey, err.Error()))
			writeJSON(w, http.StatusInternalServerError, validateDomainResponse{IsValid: false})
			return
		}
		s.logger.Warn("Domain validation refused",
			slog.String("origin", origin),
			slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusOK, validateDomainResponse{IsValid: false})
		return
	}

	valid := originAllowed(client, origin)
	s.logger.Info("Domain validated",
		slog.String("clientID", client.ID),
		slog.String("origin", origin),
		slog.Bool("isValid", valid))

	writeJSON(w, http.StatusOK, validateDomainResponse{IsValid: valid})
}

// HandleChat answers a {"message": ...} request with the responder's reply.
func (s Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.requireAuth {
		if _, err := s.authorize(r); err != nil {
			if !errors.Is(err, errUnauthorized) {
				s.logger.Error("Failed to authorize client", slog.String(errLoggerKey, err.Error()))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
				return
			}
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	reply, err := s.responder.Reply(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("Failed to produce reply",
			slog.String("message", req.Message),
			slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to produce reply"})
		return
	}

	if s.envelope {
		writeJSON(w, http.StatusOK, envelopedChatResponse{Body: chatResponse{Response: reply}})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s Server) authorize(r *http.Request) (models.Client, error) {
	clientID := r.Header.Get("Client-ID")
	apiKey, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if clientID == "" || !ok || apiKey == "" {
		return models.Client{}, fmt.Errorf("%w: missing credentials", errUnauthorized)
	}

	client, found, err := s.registry.Client(r.Context(), clientID)
	if err != nil {
		return models.Client{}, fmt.Errorf("failed to look up client %s: %w", clientID, err)
	}
	if !found {
		return models.Client{}, fmt.Errorf("%w: unknown client %s", errUnauthorized, clientID)
	}
	if subtle.ConstantTimeCompare([]byte(client.APIKey), []byte(apiKey)) != 1 {
		return models.Client{}, fmt.Errorf("%w: invalid api key for client %s", errUnauthorized, clientID)
	}

	return client, nil
}

func originAllowed(client models.Client, origin string) bool {
	if len(client.AllowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	return slices.Contains(client.AllowedOrigins, origin)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
