package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	chatwidget "github.com/MegaGrindStone/chat-widget"
	"github.com/MegaGrindStone/chat-widget/internal/handlers"
	"gopkg.in/yaml.v3"
)

func main() {
	cfgFilePath := flag.String("config", "", "path to the config file")
	flag.Parse()

	if *cfgFilePath == "" {
		cfgDir, err := os.UserConfigDir()
		if err != nil {
			log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
		}
		*cfgFilePath = filepath.Join(cfgDir, "chatwidget", "config.yaml")
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

	// An incomplete widget configuration is not fatal: the server still starts, and every page
	// load answers with no widget, the same as an unauthorized origin.
	widgetCfg, err := cfg.Widget.widget()
	if err != nil {
		logger.Error("Widget configuration is incomplete, no widget will be rendered",
			slog.String("err", err.Error()))
	}

	m, err := handlers.NewMain(handlers.Config{
		Widget:            widgetCfg,
		DefaultOrigin:     cfg.DefaultOrigin,
		MinDisplayLatency: cfg.Widget.minDisplayLatency(),
		RequestTimeout:    cfg.requestTimeout(),
		SessionTTL:        cfg.SessionTTL,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}

	staticFS, err := fs.Sub(chatwidget.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/open", m.HandleOpen)
	mux.HandleFunc("/close", m.HandleClose)
	mux.HandleFunc("/messages", m.HandleMessages)
	mux.HandleFunc("/sse", m.HandleSSE)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go m.ExpireSessions(sweepCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}
