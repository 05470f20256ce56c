// Command webhook runs a reference webhook endpoint for the chat widget. It validates widget
// domains against a BoltDB client registry and answers chat messages with an echo, Ollama or
// OpenAI responder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/MegaGrindStone/chat-widget/internal/services"
	"github.com/MegaGrindStone/chat-widget/internal/webhook"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

func main() {
	cfgFilePath := flag.String("config", "", "path to the config file")
	flag.Parse()

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	if *cfgFilePath == "" {
		*cfgFilePath = filepath.Join(cfgDir, "chatwidget", "webhook.yaml")
	}

	cfgFile, err := os.Open(*cfgFilePath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	level, err := cfg.logLevel()
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(cfgDir, "chatwidget", "webhook.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating database directory: %w", err))
	}
	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	for _, client := range cfg.Clients {
		if err := boltDB.PutClient(context.Background(), client); err != nil {
			log.Fatal(fmt.Errorf("error registering client %s: %w", client.ID, err))
		}
		logger.Info("Client registered",
			slog.String("clientID", client.ID),
			slog.Any("allowedOrigins", client.AllowedOrigins))
	}

	responder, err := cfg.Responder.responder(cfg.SystemPrompt, logger)
	if err != nil {
		log.Fatal(err)
	}

	s := webhook.NewServer(boltDB, responder, webhook.Options{
		RequireAuth: cfg.RequireAuth,
		Envelope:    cfg.Envelope,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/validate-domain", s.HandleValidateDomain)
	mux.HandleFunc("/chat", s.HandleChat)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Webhook endpoint starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", slog.String("err", err.Error()))
	}
}
