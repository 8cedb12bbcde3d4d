package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/app"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/server"
)

func main() {
	configPath := flag.String("config", os.Getenv("LIFEMAXXING_CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	extractor, err := a.Extraction()
	if err != nil {
		logger.Error("failed to build extraction pipeline", "error", err)
		os.Exit(1)
	}

	var (
		httpServer *http.Server
		grpcServer *grpc.Server
	)
	errCh := make(chan error, 2)

	if addr := cfg.Server.HTTPAddr; addr != "" {
		httpServer = &http.Server{
			Addr: addr,
			Handler: server.NewHTTPHandler(server.Deps{
				Extraction:       extractor,
				OTP:              a.OTP(),
				Export:           a.Export(),
				Jobs:             a.Jobs,
				Ping:             func(ctx context.Context) error { return a.DB.HealthCheck(ctx, 2*time.Second) },
				PersistByDefault: cfg.Server.PersistResults,
				Logger:           logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("http listening", "addr", addr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	if addr := cfg.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", addr, "error", err)
			os.Exit(1)
		}
		grpcServer = server.NewGRPCServer(extractor, logger)
		logger.Info("grpc listening", "addr", addr)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}
