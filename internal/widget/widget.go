package widget

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/services"
)

// Settings describe the widget instance New builds.
type Settings struct {
	Config models.WidgetConfig
	// Origin is the origin of the page embedding the widget, checked by the domain validation
	// handshake of the authenticated variant.
	Origin string
	// MinDisplayLatency is passed to the transport, see services.NewWebhook.
	MinDisplayLatency time.Duration
	// RequestTimeout bounds the domain validation handshake and the wait for each chat reply's
	// headers. Zero means no limit.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// ErrUnauthorized is returned by New when the endpoint does not authorize the page origin.
var ErrUnauthorized = errors.New("origin is not authorized for this client")

const errLoggerKey = "err"

// New validates the configuration, performs the domain validation handshake when the variant
// requires it, and returns a controller wired to the webhook transport. On failure no controller
// is returned and the error wraps models.ErrConfiguration or ErrUnauthorized; logging it is left to
// the caller. No network call is made for an invalid configuration.
func New(ctx context.Context, settings Settings, renderer Renderer, opts ...Option) (*Controller, error) {
	cfg := settings.Config
	logger := settings.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	defaults := []Option{WithLogger(logger)}
	if cfg.Authenticated() {
		if !services.NewValidator(cfg, settings.RequestTimeout, logger).ValidateAccess(ctx, settings.Origin) {
			return nil, fmt.Errorf("%w: client %s, origin %s", ErrUnauthorized, cfg.ClientID, settings.Origin)
		}
		defaults = append(defaults, WithFallbackText(models.FallbackProcessingText))
	} else {
		defaults = append(defaults,
			WithFallbackText(models.FallbackUnavailableText),
			WithClearInputOnClose(true),
		)
	}

	transport := services.NewWebhook(cfg, settings.MinDisplayLatency, settings.RequestTimeout, logger)

	return NewController(transport, renderer, append(defaults, opts...)...), nil
}
