// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/moviematch/internal/auth"
	"github.com/jason-s-yu/moviematch/internal/backend"
	"github.com/jason-s-yu/moviematch/internal/config"
	"github.com/jason-s-yu/moviematch/internal/handlers"
	"github.com/jason-s-yu/moviematch/internal/room"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.Level())
	if cfg.Production() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ttl, err := auth.ParseTTL(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatal(err)
	}
	seats, err := auth.NewIssuer(ttl)
	if err != nil {
		logger.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to open backend: %v", err)
	}
	defer be.Close()

	opts := []room.Option{room.WithLogger(logger)}
	if rec := be.Recorder(); rec != nil {
		opts = append(opts, room.WithRecorder(rec))
	}
	engine := room.NewEngine(be.Store, opts...)

	srv := handlers.NewRoomServer(engine, seats, logger)
	srv.SecureCookies = cfg.Production()

	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv.Router(cfg.Origins()),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", server.Addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("failed to serve: %v", err)
		}
	case <-ctx.Done():
		logger.Info("terminating")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
