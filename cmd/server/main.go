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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hammerline/auction-backend/internal/audit"
	"github.com/hammerline/auction-backend/internal/config"
	"github.com/hammerline/auction-backend/internal/engine"
	"github.com/hammerline/auction-backend/internal/httpapi"
	"github.com/hammerline/auction-backend/internal/logging"
	"github.com/hammerline/auction-backend/internal/session"
	"github.com/hammerline/auction-backend/internal/ws"
)

func main() {
	_ = godotenv.Load() // optional .env, env vars win

	cfgPath := os.Getenv("AUCTION_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg)
	defer logger.Sync()

	var recorder session.Recorder
	var store *audit.Store
	if cfg.Audit.Enabled {
		store, err = audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			logger.Fatal("open audit store", zap.Error(err))
		}
		recorder = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(ctx, engine.NewState(), recorder, logger)

	handler := httpapi.SetupRoutes(sess, ws.Options{
		OriginPatterns: cfg.WS.OriginPatterns,
		OutboxSize:     cfg.WS.OutboxSize,
	}, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}

	// The loop may still be draining queued commands; the store must stay
	// open until the last Recorder call has happened.
	sess.Inbox() <- session.Shutdown{}
	<-sess.Done()
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Error("close audit store", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
