package models

import (
	"errors"
	"fmt"
	"strings"
)

// Theme holds the four colour values the widget markup is painted with. Any empty field falls back
// to the matching DefaultTheme value.
type Theme struct {
	Primary    string `yaml:"primary"`
	Secondary  string `yaml:"secondary"`
	Text       string `yaml:"text"`
	Background string `yaml:"background"`
}

// WidgetConfig is the construction-time configuration of a widget. It is only produced by
// NewWidgetConfig or NewWebhookConfig, so a value in hand is always complete.
type WidgetConfig struct {
	ClientID string
	APIKey   string
	APIURL   string
	Theme    Theme

	// WebhookURL is set for the unauthenticated variant, which posts straight to it and skips the
	// domain validation handshake.
	WebhookURL string
}

// ErrConfiguration is returned when one or more required widget options are missing.
var ErrConfiguration = errors.New("invalid widget configuration")

// DefaultTheme returns the built-in palette.
func DefaultTheme() Theme {
	return Theme{
		Primary:    "#A020F0",
		Secondary:  "#FF1493",
		Text:       "#FFFFFF",
		Background: "#F0F0F0",
	}
}

// NewWidgetConfig validates the required options of the authenticated variant and returns the
// resulting configuration. The returned error wraps ErrConfiguration and names every missing field.
func NewWidgetConfig(clientID, apiKey, apiURL string, theme Theme) (WidgetConfig, error) {
	cfg := WidgetConfig{
		ClientID: clientID,
		APIKey:   apiKey,
		APIURL:   strings.TrimRight(apiURL, "/"),
		Theme:    theme.withDefaults(),
	}
	if err := cfg.Validate(); err != nil {
		return WidgetConfig{}, err
	}
	return cfg, nil
}

// NewWebhookConfig returns the configuration of the unauthenticated variant, which only needs the
// webhook URL replies are fetched from.
func NewWebhookConfig(webhookURL string, theme Theme) (WidgetConfig, error) {
	if strings.TrimSpace(webhookURL) == "" {
		return WidgetConfig{}, fmt.Errorf("%w: missing webhookUrl", ErrConfiguration)
	}

	return WidgetConfig{
		WebhookURL: webhookURL,
		Theme:      theme.withDefaults(),
	}, nil
}

// Validate reports the required options missing from c, wrapped in ErrConfiguration. It guards
// against zero-value configurations that did not go through the constructors.
func (c WidgetConfig) Validate() error {
	if !c.Authenticated() {
		return nil
	}

	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		missing = append(missing, "apiKey")
	}
	if strings.TrimSpace(c.APIURL) == "" {
		missing = append(missing, "apiUrl")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Authenticated reports whether the configuration belongs to the variant that validates its domain
// and sends bearer credentials.
func (c WidgetConfig) Authenticated() bool {
	return c.WebhookURL == ""
}

// ChatURL returns the endpoint chat messages are posted to.
func (c WidgetConfig) ChatURL() string {
	if c.WebhookURL != "" {
		return c.WebhookURL
	}
	return c.APIURL + "/chat"
}

// ValidateDomainURL returns the endpoint of the domain validation handshake.
func (c WidgetConfig) ValidateDomainURL() string {
	return c.APIURL + "/validate-domain"
}

func (t Theme) withDefaults() Theme {
	d := DefaultTheme()
	if t.Primary == "" {
		t.Primary = d.Primary
	}
	if t.Secondary == "" {
		t.Secondary = d.Secondary
	}
	if t.Text == "" {
		t.Text = d.Text
	}
	if t.Background == "" {
		t.Background = d.Background
	}
	return t
}
