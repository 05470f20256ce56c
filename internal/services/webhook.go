package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// Webhook is the transport client of a widget. It relays one user message per call to the configured
// chat endpoint and extracts the reply text from the JSON answer.
type Webhook struct {
	cfg        models.WidgetConfig
	minLatency time.Duration

	client *http.Client

	logger *slog.Logger
}

type webhookChatRequest struct {
	Message string `json:"message"`
}

// ErrTransport is wrapped by every error Webhook.Send returns: the request could not be sent, the
// endpoint answered with a non-2xx status, or the answer was not a JSON object.
var ErrTransport = errors.New("webhook transport failure")

const errLoggerKey = "err"

// NewWebhook creates a transport for the given widget configuration. minLatency is the minimum time
// that passes between issuing the request and reading its response, a pacing knob for how long the
// typing placeholder stays visible. It never aborts a request; a zero value disables it.
// timeout bounds how long the endpoint may take to answer with its response headers, independently
// of minLatency. A zero timeout waits forever.
func NewWebhook(cfg models.WidgetConfig, minLatency, timeout time.Duration, logger *slog.Logger) Webhook {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return Webhook{
		cfg:        cfg,
		minLatency: minLatency,
		client:     &http.Client{Transport: transport},
		logger:     logger.With(slog.String("module", "webhook")),
	}
}

// Send posts text as {"message": text} and returns the reply. The reply is taken from body.response
// when present, falling back to the top-level response field, and finally to models.NoResponseText.
// Callers must not pass empty text.
func (w Webhook) Send(ctx context.Context, text string) (string, error) {
	jsonBody, err := json.Marshal(webhookChatRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("%w: error marshaling request: %w", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.ChatURL(), bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("%w: error creating request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.Authenticated() {
		setCredentials(req, w.cfg)
	}

	w.logger.Debug("Sending message", slog.String("url", w.cfg.ChatURL()), slog.String("message", text))

	pacing := time.NewTimer(w.minLatency)
	defer pacing.Stop()

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: error sending request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	select {
	case <-pacing.C:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTransport, ctx.Err())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: error reading response: %w", ErrTransport, err)
	}

	w.logger.Debug("Received response",
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: unexpected status code: %d, body: %s", ErrTransport, resp.StatusCode, string(body))
	}

	return replyText(body)
}

func replyText(data []byte) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: error unmarshaling response: %w", ErrTransport, err)
	}
	if payload == nil {
		return "", fmt.Errorf("%w: response is not a JSON object", ErrTransport)
	}

	if body, ok := payload["body"].(map[string]any); ok {
		if res, ok := body["response"].(string); ok && res != "" {
			return res, nil
		}
	}
	if res, ok := payload["response"].(string); ok && res != "" {
		return res, nil
	}

	return models.NoResponseText, nil
}

func setCredentials(req *http.Request, cfg models.WidgetConfig) {
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	req.Header.Set("Client-ID", cfg.ClientID)
}
