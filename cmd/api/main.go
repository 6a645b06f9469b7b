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

	"iprisk-backend/internal/bootstrap"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/shared/config"
	"iprisk-backend/internal/shared/server"
	"iprisk-backend/internal/shared/telemetry"
)

const defaultShutdownTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	telemetry.Init(cfg.Env)
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "iprisk-api", cfg.OTLPEndpoint)
	if err != nil {
		log.Printf("tracing disabled: %v", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	timeout := defaultShutdownTimeout
	if cfg.ShutdownTimeoutSeconds > 0 {
		timeout = time.Duration(cfg.ShutdownTimeoutSeconds) * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	// In-process stages keep running after the request that started them.
	if async, ok := app.Invoker.(*invoker.AsyncInvoker); ok {
		drained := make(chan struct{})
		go func() {
			async.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-shutdownCtx.Done():
			log.Printf("shutdown timeout reached; exiting with in-flight stages")
		}
	}
	_ = shutdownTracing(shutdownCtx)
}
