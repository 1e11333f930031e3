package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"bloodnet.org/internal/audit"
	"bloodnet.org/internal/auth"
	"bloodnet.org/internal/bank"
	"bloodnet.org/internal/config"
	"bloodnet.org/internal/health"
	"bloodnet.org/internal/httpapi"
	"bloodnet.org/internal/obs"
	"bloodnet.org/internal/store/mem"
	"bloodnet.org/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bloodnet-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, "bloodnet-api")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	obs.Init()
	obs.SetBuildInfo(version, commit)

	var store bank.Store
	switch cfg.Store {
	case config.StorePostgres:
		s, err := pg.Open(cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	default:
		log.Warn("using in-memory store; data is lost on restart")
		store = mem.New()
	}

	engine := bank.New(store, bank.WithLogger(log.Named("engine")))
	tokens, err := auth.NewTokens(cfg.Auth.Secret, auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return err
	}

	opts := []httpapi.Option{
		httpapi.WithLogger(log.Named("http")),
		httpapi.WithAudit(audit.New(log)),
		httpapi.WithVersion(version),
		httpapi.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		httpapi.WithBodyLimit(cfg.HTTP.BodyLimit),
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
	}
	if cfg.Auth.DevTokens {
		log.Warn("development token issuance is enabled")
		opts = append(opts, httpapi.WithDevTokens(cfg.Auth.TokenTTL))
	}
	api := httpapi.New(engine, tokens, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	gs := grpc.NewServer()
	hs := health.New(engine, log.Named("health"))
	hs.Register(gs)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go hs.Run(ctx, 10*time.Second)

	errs := make(chan error, 2)
	go func() {
		log.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		log.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errs <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errs:
		log.Error("server failed", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	gs.GracefulStop()
	log.Info("stopped")
	return nil
}
