package models_test

import (
	"errors"
	"testing"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWidgetConfig(t *testing.T) {
	tests := []struct {
		name        string
		clientID    string
		apiKey      string
		apiURL      string
		wantErr     bool
		wantMissing string
	}{
		{name: "Complete", clientID: "c1", apiKey: "k1", apiURL: "https://api.example.com/"},
		{name: "Missing client ID", apiKey: "k1", apiURL: "https://api.example.com", wantErr: true, wantMissing: "clientId"},
		{name: "Missing API key", clientID: "c1", apiURL: "https://api.example.com", wantErr: true, wantMissing: "apiKey"},
		{name: "Missing API URL", clientID: "c1", apiKey: "k1", wantErr: true, wantMissing: "apiUrl"},
		{name: "Whitespace only", clientID: "  ", apiKey: "k1", apiURL: "https://api.example.com", wantErr: true, wantMissing: "clientId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := models.NewWidgetConfig(tt.clientID, tt.apiKey, tt.apiURL, models.Theme{})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, models.ErrConfiguration))
				assert.Contains(t, err.Error(), tt.wantMissing)
				assert.Equal(t, models.WidgetConfig{}, cfg)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.Authenticated())
			assert.Equal(t, "https://api.example.com/chat", cfg.ChatURL())
			assert.Equal(t, "https://api.example.com/validate-domain", cfg.ValidateDomainURL())
		})
	}
}

func TestNewWidgetConfigThemeDefaults(t *testing.T) {
	cfg, err := models.NewWidgetConfig("c1", "k1", "https://api.example.com", models.Theme{Primary: "#000000"})
	require.NoError(t, err)

	want := models.DefaultTheme()
	want.Primary = "#000000"
	assert.Equal(t, want, cfg.Theme)
}

func TestNewWebhookConfig(t *testing.T) {
	_, err := models.NewWebhookConfig(" ", models.Theme{})
	require.ErrorIs(t, err, models.ErrConfiguration)

	cfg, err := models.NewWebhookConfig("https://hooks.example.com/chat", models.Theme{})
	require.NoError(t, err)
	assert.False(t, cfg.Authenticated())
	assert.Equal(t, "https://hooks.example.com/chat", cfg.ChatURL())
	assert.Equal(t, models.DefaultTheme(), cfg.Theme)
}

func TestWidgetConfigValidateZeroValue(t *testing.T) {
	err := models.WidgetConfig{}.Validate()
	require.ErrorIs(t, err, models.ErrConfiguration)
	assert.Contains(t, err.Error(), "clientId, apiKey, apiUrl")
}
