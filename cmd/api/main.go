package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vsaidivya/studybuddy/internal/config"
	"github.com/vsaidivya/studybuddy/internal/handler"
	chatservice "github.com/vsaidivya/studybuddy/internal/service/chat"
	"github.com/vsaidivya/studybuddy/internal/service/registry"
	"github.com/vsaidivya/studybuddy/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("failed to open message store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("warning: failed to close message store: %v", err)
		}
	}()
	log.Printf("message store ready at %s", cfg.Storage.Path)

	reg := registry.New()
	chatSvc := chatservice.NewService(store, cfg.Relay.DefaultAvatarURL)

	router := handler.NewRouter(store, chatSvc, reg, cfg.Relay)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("StudyBuddy relay listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
