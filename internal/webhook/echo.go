package webhook

import "context"

// Echo is a Responder that repeats the message back, for trying the widget without a model.
type Echo struct {
	Prefix string
}

// Reply returns the message prefixed by e.Prefix.
func (e Echo) Reply(_ context.Context, message string) (string, error) {
	return e.Prefix + message, nil
}
