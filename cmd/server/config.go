package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"gopkg.in/yaml.v3"
)

type widgetConfig interface {
	widget() (models.WidgetConfig, error)
	minDisplayLatency() time.Duration
}

// BaseWidgetConfig contains the fields shared by both widget variants.
type BaseWidgetConfig struct {
	Variant           string         `yaml:"variant"`
	Theme             models.Theme   `yaml:"theme"`
	MinDisplayLatency *time.Duration `yaml:"minDisplayLatency"`
}

type config struct {
	Port           string         `yaml:"port"`
	LogLevel       string         `yaml:"logLevel"`
	DefaultOrigin  string         `yaml:"defaultOrigin"`
	RequestTimeout *time.Duration `yaml:"requestTimeout"`
	SessionTTL     time.Duration  `yaml:"sessionTtl"`
	Widget         widgetConfig   `yaml:"widget"`
}

type secureConfig struct {
	BaseWidgetConfig `yaml:",inline"`
	ClientID         string `yaml:"clientId"`
	APIKey           string `yaml:"apiKey"`
	APIURL           string `yaml:"apiUrl"`
}

type webhookConfig struct {
	BaseWidgetConfig `yaml:",inline"`
	WebhookURL       string `yaml:"webhookUrl"`
}

const (
	// Default minimum time the typing placeholder of the webhook variant stays on screen.
	defaultWebhookDisplayLatency = 12 * time.Second

	defaultRequestTimeout = 30 * time.Second
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string         `yaml:"port"`
		LogLevel       string         `yaml:"logLevel"`
		DefaultOrigin  string         `yaml:"defaultOrigin"`
		RequestTimeout *time.Duration `yaml:"requestTimeout"`
		SessionTTL     time.Duration  `yaml:"sessionTtl"`
		Widget         map[string]any `yaml:"widget"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.DefaultOrigin = rawConfig.DefaultOrigin
	c.RequestTimeout = rawConfig.RequestTimeout
	c.SessionTTL = rawConfig.SessionTTL

	variant, ok := rawConfig.Widget["variant"].(string)
	if !ok {
		return fmt.Errorf("widget variant is required")
	}

	widgetRawYAML, err := yaml.Marshal(rawConfig.Widget)
	if err != nil {
		return err
	}

	var wc widgetConfig
	switch variant {
	case "secure":
		wc = &secureConfig{}
	case "webhook":
		wc = &webhookConfig{}
	default:
		return fmt.Errorf("unknown widget variant: %s", variant)
	}

	if err := yaml.Unmarshal(widgetRawYAML, wc); err != nil {
		return err
	}

	c.Widget = wc
	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// requestTimeout returns the configured timeout, defaultRequestTimeout when unset. An explicit zero
// disables it.
func (c config) requestTimeout() time.Duration {
	if c.RequestTimeout == nil {
		return defaultRequestTimeout
	}
	return *c.RequestTimeout
}

func (s secureConfig) widget() (models.WidgetConfig, error) {
	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("CHATWIDGET_API_KEY")
	}
	return models.NewWidgetConfig(s.ClientID, apiKey, s.APIURL, s.Theme)
}

func (s secureConfig) minDisplayLatency() time.Duration {
	if s.MinDisplayLatency == nil {
		return 0
	}
	return *s.MinDisplayLatency
}

func (w webhookConfig) widget() (models.WidgetConfig, error) {
	return models.NewWebhookConfig(w.WebhookURL, w.Theme)
}

func (w webhookConfig) minDisplayLatency() time.Duration {
	if w.MinDisplayLatency == nil {
		return defaultWebhookDisplayLatency
	}
	return *w.MinDisplayLatency
}
