package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/google/uuid"
)

// Transport relays one user message to the webhook endpoint and returns the reply text.
type Transport interface {
	Send(ctx context.Context, text string) (string, error)
}

// Renderer receives the rendering commands of a Controller. Render is called while the controller
// holds its lock, so events arrive in transcript order and implementations must not call back into
// the controller.
type Renderer interface {
	Render(Event)
}

// Controller owns the transcript and open/closed state of one widget instance and runs the
// send/await/display cycle against its Transport.
type Controller struct {
	mu         sync.Mutex
	state      State
	transcript []models.Message
	pending    *exchange
	generation uint64

	transport Transport
	renderer  Renderer

	fallbackText      string
	clearInputOnClose bool
	cancelOnClose     bool

	logger *slog.Logger
}

// exchange is the single outstanding request of a controller.
type exchange struct {
	generation    uint64
	placeholderID string
	cancel        context.CancelFunc
}

// Option configures a Controller.
type Option func(*Controller)

// ErrExchangeInFlight is returned by Submit while the previous message still awaits its reply.
var ErrExchangeInFlight = errors.New("a message is already awaiting its reply")

// WithLogger sets the logger of the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger.With(slog.String("module", "widget"))
	}
}

// WithFallbackText sets the bot message shown when the transport fails.
func WithFallbackText(text string) Option {
	return func(c *Controller) {
		c.fallbackText = text
	}
}

// WithClearInputOnClose asks the presentation layer to empty the input field whenever the window
// is closed.
func WithClearInputOnClose(enabled bool) Option {
	return func(c *Controller) {
		c.clearInputOnClose = enabled
	}
}

// WithCancelOnClose controls whether closing the window abandons the in-flight exchange. When
// enabled (the default) the request is canceled, its typing placeholder removed and its late
// result dropped. When disabled the exchange completes and appends its reply behind the closed
// window.
func WithCancelOnClose(enabled bool) Option {
	return func(c *Controller) {
		c.cancelOnClose = enabled
	}
}

// NewController creates a closed Controller with an empty transcript.
func NewController(transport Transport, renderer Renderer, opts ...Option) *Controller {
	c := &Controller{
		state:         StateClosed,
		transport:     transport,
		renderer:      renderer,
		fallbackText:  models.FallbackProcessingText,
		cancelOnClose: true,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open shows the chat window. Opening an open window does nothing.
func (c *Controller) Open() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		return
	}
	c.state = StateOpen
	c.renderer.Render(Event{Type: EventState, State: StateOpen})
}

// Close hides the chat window and, with cancel-on-close, abandons the pending exchange. The
// transcript is left untouched.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return
	}
	c.state = StateClosed

	if c.pending != nil && c.cancelOnClose {
		c.logger.Debug("Abandoning pending exchange", slog.Uint64("generation", c.pending.generation))
		c.pending.cancel()
		c.renderer.Render(Event{Type: EventTypingDone, PlaceholderID: c.pending.placeholderID})
		c.pending = nil
		c.generation++
	}

	c.renderer.Render(Event{Type: EventState, State: StateClosed, ClearInput: c.clearInputOnClose})
}

// State returns the current window state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns a copy of the messages shown so far, oldest first.
func (c *Controller) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transcript)
}

// Pending reports whether a typing placeholder is currently shown.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// Submit runs one send cycle for input and blocks until the reply or fallback text has been
// appended. Input is trimmed first; an empty result is silently ignored. Transport failures never
// surface as errors, they become the fallback bot message. The only error is ErrExchangeInFlight.
func (c *Controller) Submit(ctx context.Context, input string) error {
	complete, err := c.Begin(ctx, input)
	if err != nil {
		return err
	}
	complete()
	return nil
}

// Begin reserves the exchange for input and shows the user message and typing placeholder before
// it returns. The returned function sends the message, waits for the reply and appends it; callers
// must call it exactly once, usually on another goroutine. A blank input yields a no-op function.
// While another exchange is pending Begin returns ErrExchangeInFlight and changes nothing.
func (c *Controller) Begin(ctx context.Context, input string) (func(), error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return func() {}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return nil, ErrExchangeInFlight
	}

	c.generation++
	ctx, cancel := context.WithCancel(ctx)

	ex := &exchange{
		generation:    c.generation,
		placeholderID: uuid.New().String(),
		cancel:        cancel,
	}
	c.pending = ex

	// The user message is shown before the endpoint confirms anything.
	c.appendLocked(models.NewMessage(models.SenderUser, text))
	c.renderer.Render(Event{Type: EventTyping, PlaceholderID: ex.placeholderID})
	c.renderer.Render(Event{Type: EventScroll})

	return func() {
		defer cancel()
		reply, err := c.transport.Send(ctx, text)
		c.finish(ex, reply, err)
	}, nil
}

func (c *Controller) finish(ex *exchange, reply string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil || c.pending.generation != ex.generation {
		c.logger.Debug("Dropping result of abandoned exchange", slog.Uint64("generation", ex.generation))
		return
	}
	c.pending = nil

	if err != nil {
		c.logger.Error("Failed to obtain reply",
			slog.Uint64("generation", ex.generation),
			slog.String(errLoggerKey, err.Error()))
		reply = c.fallbackText
	}

	c.renderer.Render(Event{Type: EventTypingDone, PlaceholderID: ex.placeholderID})
	c.appendLocked(models.NewMessage(models.SenderBot, reply))
}

func (c *Controller) appendLocked(msg models.Message) {
	c.transcript = append(c.transcript, msg)
	c.renderer.Render(Event{Type: EventMessage, Message: msg})
	c.renderer.Render(Event{Type: EventScroll})
}
