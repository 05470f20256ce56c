package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfigSecureVariant(t *testing.T) {
	raw := `
port: "8080"
logLevel: debug
defaultOrigin: https://shop.example.com
widget:
  variant: secure
  clientId: shop
  apiKey: k1
  apiUrl: https://api.example.com/
  theme:
    primary: "#123456"
`
	var cfg config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, "8080", cfg.Port)
	level, err := cfg.logLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	wc, err := cfg.Widget.widget()
	require.NoError(t, err)
	assert.True(t, wc.Authenticated())
	assert.Equal(t, "https://api.example.com/chat", wc.ChatURL())
	assert.Equal(t, "#123456", wc.Theme.Primary)
	assert.Equal(t, models.DefaultTheme().Secondary, wc.Theme.Secondary)
	assert.Zero(t, cfg.Widget.minDisplayLatency())
	assert.Equal(t, 30*time.Second, cfg.requestTimeout())
	assert.Zero(t, cfg.SessionTTL)
}

func TestConfigWebhookVariant(t *testing.T) {
	raw := `
widget:
  variant: webhook
  webhookUrl: https://hooks.example.com/chat
`
	var cfg config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	wc, err := cfg.Widget.widget()
	require.NoError(t, err)
	assert.False(t, wc.Authenticated())
	assert.Equal(t, 12*time.Second, cfg.Widget.minDisplayLatency())

	raw += "  minDisplayLatency: 500ms\n"
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, 500*time.Millisecond, cfg.Widget.minDisplayLatency())
}

func TestConfigTimeouts(t *testing.T) {
	raw := `
requestTimeout: 5s
sessionTtl: 2m
widget:
  variant: webhook
  webhookUrl: https://hooks.example.com/chat
`
	var cfg config
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))
	assert.Equal(t, 5*time.Second, cfg.requestTimeout())
	assert.Equal(t, 2*time.Minute, cfg.SessionTTL)

	require.NoError(t, yaml.Unmarshal([]byte("requestTimeout: 0s\nwidget:\n  variant: webhook\n"), &cfg))
	assert.Zero(t, cfg.requestTimeout())
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "Missing variant", raw: "widget:\n  webhookUrl: https://hooks.example.com\n"},
		{name: "Unknown variant", raw: "widget:\n  variant: carrier-pigeon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg config
			assert.Error(t, yaml.Unmarshal([]byte(tt.raw), &cfg))
		})
	}

	var cfg config
	require.NoError(t, yaml.Unmarshal([]byte("logLevel: loud\nwidget:\n  variant: secure\n"), &cfg))
	_, err := cfg.logLevel()
	assert.Error(t, err)

	t.Setenv("CHATWIDGET_API_KEY", "")
	_, err = cfg.Widget.widget()
	assert.ErrorIs(t, err, models.ErrConfiguration)
}
