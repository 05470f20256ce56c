package services_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/models"
	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWebhookSendReply(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantReply string
		wantErr   bool
	}{
		{name: "Nested response", status: http.StatusOK, body: `{"body":{"response":"hi"}}`, wantReply: "hi"},
		{name: "Top-level response", status: http.StatusOK, body: `{"response":"hi"}`, wantReply: "hi"},
		{name: "Nested preferred", status: http.StatusOK, body: `{"response":"outer","body":{"response":"inner"}}`, wantReply: "inner"},
		{name: "Empty nested falls back", status: http.StatusOK, body: `{"response":"outer","body":{"response":""}}`, wantReply: "outer"},
		{name: "No reply field", status: http.StatusOK, body: `{"status":"ok"}`, wantReply: models.NoResponseText},
		{name: "Invalid JSON", status: http.StatusOK, body: `<html>oops</html>`, wantErr: true},
		{name: "JSON array", status: http.StatusOK, body: `["hi"]`, wantErr: true},
		{name: "JSON null", status: http.StatusOK, body: `null`, wantErr: true},
		{name: "Server error", status: http.StatusInternalServerError, body: `{"response":"hi"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
			require.NoError(t, err)

			reply, err := services.NewWebhook(cfg, 0, 0, discardLogger()).Send(context.Background(), "hello")
			if tt.wantErr {
				require.ErrorIs(t, err, services.ErrTransport)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReply, reply)
		})
	}
}

func TestWebhookSendRequest(t *testing.T) {
	type captured struct {
		path    string
		method  string
		header  http.Header
		message string
	}
	reqs := make(chan captured, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs <- captured{path: r.URL.Path, method: r.Method, header: r.Header.Clone(), message: body.Message}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()

	t.Run("Authenticated", func(t *testing.T) {
		cfg, err := models.NewWidgetConfig("client-1", "secret", srv.URL+"/", models.Theme{})
		require.NoError(t, err)

		_, err = services.NewWebhook(cfg, 0, 0, discardLogger()).Send(context.Background(), "hello")
		require.NoError(t, err)

		got := <-reqs
		assert.Equal(t, "/chat", got.path)
		assert.Equal(t, http.MethodPost, got.method)
		assert.Equal(t, "hello", got.message)
		assert.Equal(t, "application/json", got.header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", got.header.Get("Authorization"))
		assert.Equal(t, "client-1", got.header.Get("Client-ID"))
	})

	t.Run("Webhook", func(t *testing.T) {
		cfg, err := models.NewWebhookConfig(srv.URL+"/hook", models.Theme{})
		require.NoError(t, err)

		_, err = services.NewWebhook(cfg, 0, 0, discardLogger()).Send(context.Background(), "hello")
		require.NoError(t, err)

		got := <-reqs
		assert.Equal(t, "/hook", got.path)
		assert.Empty(t, got.header.Get("Authorization"))
		assert.Empty(t, got.header.Get("Client-ID"))
	})
}

func TestWebhookSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg, err := models.NewWebhookConfig(url, models.Theme{})
	require.NoError(t, err)

	_, err = services.NewWebhook(cfg, time.Hour, 0, discardLogger()).Send(context.Background(), "hello")
	require.ErrorIs(t, err, services.ErrTransport)
}

func TestWebhookSendMinLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
	require.NoError(t, err)

	start := time.Now()
	reply, err := services.NewWebhook(cfg, 100*time.Millisecond, 0, discardLogger()).Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestWebhookSendSlowerThanMinLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(150 * time.Millisecond)
		_, _ = w.Write([]byte(`{"response":"late"}`))
	}))
	defer srv.Close()

	cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
	require.NoError(t, err)

	start := time.Now()
	reply, err := services.NewWebhook(cfg, 10*time.Millisecond, 0, discardLogger()).Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "late", reply)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestWebhookSendCanceledDuringPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = services.NewWebhook(cfg, time.Hour, 0, discardLogger()).Send(ctx, "hello")
	require.ErrorIs(t, err, services.ErrTransport)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// newSilentEndpoint accepts requests and never answers them while the client stays connected.
func newSilentEndpoint(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebhookSendTimeout(t *testing.T) {
	srv := newSilentEndpoint(t)

	cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
	require.NoError(t, err)

	start := time.Now()
	_, err = services.NewWebhook(cfg, 0, 50*time.Millisecond, discardLogger()).Send(context.Background(), "hello")
	require.ErrorIs(t, err, services.ErrTransport)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWebhookSendTimeoutShorterThanMinLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"hi"}`))
	}))
	defer srv.Close()

	cfg, err := models.NewWebhookConfig(srv.URL, models.Theme{})
	require.NoError(t, err)

	start := time.Now()
	reply, err := services.NewWebhook(cfg, 150*time.Millisecond, 50*time.Millisecond, discardLogger()).
		Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
