// Package main is a small server entrypoint that staticgen can pre-render.
//
// Built with -buildmode=plugin it exports Handler for the plugin loader. Run as
// a program it serves the same handler on the unix socket named by
// STATICGEN_SOCKET, which is how the exec loader drives it.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/loader"
	"github.com/JakeFAU/staticgen/internal/logging"
)

// Handler is the exported fetch entrypoint.
var Handler http.Handler = newRouter(defaultPosts)

func main() {
	logger, err := logging.New(logging.Options{Level: os.Getenv("STATICGEN_LOGGING_LEVEL")})
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	socket := os.Getenv(loader.SocketEnv)
	if socket == "" {
		logger.Fatal("socket path not set", zap.String("env", loader.SocketEnv))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, socket, Handler, logger); err != nil {
		logger.Fatal("demosite stopped", zap.Error(err))
	}
}

func serve(ctx context.Context, socket string, h http.Handler, logger *zap.Logger) error {
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	logger.Info("demosite listening", zap.String("socket", socket))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
