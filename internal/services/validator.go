package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
)

// Validator performs the domain validation handshake of the authenticated widget variant.
type Validator struct {
	cfg models.WidgetConfig

	client *http.Client

	logger *slog.Logger
}

type validateDomainResponse struct {
	IsValid *bool `json:"isValid"`
}

// NewValidator creates a Validator that checks origins against cfg.ValidateDomainURL. A handshake
// that takes longer than timeout counts as not authorized; zero means no limit.
func NewValidator(cfg models.WidgetConfig, timeout time.Duration, logger *slog.Logger) Validator {
	return Validator{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(slog.String("module", "validator")),
	}
}

// ValidateAccess asks the endpoint whether origin may host the widget for the configured client and
// API key. Every failure, including a missing isValid field, is reported as not authorized.
func (v Validator) ValidateAccess(ctx context.Context, origin string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.ValidateDomainURL(), http.NoBody)
	if err != nil {
		v.logger.Error("Failed to create validation request", slog.String(errLoggerKey, err.Error()))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	setCredentials(req, v.cfg)

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Error("Failed to send validation request",
			slog.String("origin", origin),
			slog.String(errLoggerKey, err.Error()))
		return false
	}
	defer resp.Body.Close()

	var res validateDomainResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		v.logger.Error("Failed to decode validation response",
			slog.String("origin", origin),
			slog.Int("status", resp.StatusCode),
			slog.String(errLoggerKey, err.Error()))
		return false
	}
	if res.IsValid == nil {
		v.logger.Warn("Validation response has no isValid field", slog.String("origin", origin))
		return false
	}

	return *res.IsValid
}
