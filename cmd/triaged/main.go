// Triaged is the technical-triage service for support tickets.
//
// It matches ticket text against a keyword knowledge base, optionally
// enriches the result with an AI analysis, and serves triage, history
// and statistics endpoints over HTTP.
//
// Usage:
//
//	# Start with defaults
//	triaged
//
//	# Point at a config file
//	triaged -config /etc/triaged/config.yaml
//
//	# Configure via environment
//	TRIAGED_SERVER_PORT=9000 TRIAGED_ANALYZER_API_KEY=... triaged
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"

	"github.com/sponteware/triaged/internal/analyzer"
	"github.com/sponteware/triaged/internal/config"
	"github.com/sponteware/triaged/internal/knowledge"
	"github.com/sponteware/triaged/internal/logging"
	"github.com/sponteware/triaged/internal/server"
	"github.com/sponteware/triaged/internal/store"
	"github.com/sponteware/triaged/internal/triage"
	"github.com/sponteware/triaged/internal/upstream"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("triaged\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires all dependencies, starts the HTTP server and blocks until
// the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("starting triaged",
		zap.String("version", version),
		zap.String("addr", cfg.Server.Address()),
		zap.String("analyzer_provider", cfg.Analyzer.Provider))

	// Knowledge base. A missing or malformed file degrades to an empty
	// base rather than failing startup.
	base := knowledge.Load(cfg.Knowledge.Path, logger)

	// AI analyzer.
	ai, err := analyzer.New(analyzer.Config{
		Provider: cfg.Analyzer.Provider,
		APIKey:   cfg.Analyzer.APIKey.Value(),
		Model:    cfg.Analyzer.Model,
		BaseURL:  cfg.Analyzer.BaseURL,
		Timeout:  cfg.Analyzer.Timeout.Duration(),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	svc := triage.NewService(base, ai, logger)

	// Persistence. Firestore when configured, otherwise in memory; a
	// failed connection falls back the same way.
	st, fsStore := buildStore(ctx, cfg, logger)
	defer func() {
		_ = st.Close()
	}()

	// Upstream integration shares the Firestore connection when present.
	var fsClient *firestore.Client
	if fsStore != nil {
		fsClient = fsStore.Client()
	}
	up := upstream.New(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout.Duration(),
	}, fsClient, logger)

	srv, err := server.New(svc, st, up, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// buildStore selects the persistence backend. The Firestore store is
// returned separately so the upstream client can reuse its connection.
func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, *store.Firestore) {
	if !cfg.Firestore.Enabled() {
		logger.Info("firestore not configured, using in-memory store")
		return store.NewMemory(), nil
	}

	fs, err := store.NewFirestore(ctx, store.FirestoreConfig{
		ProjectID:       cfg.Firestore.ProjectID,
		CredentialsFile: cfg.Firestore.CredentialsFile,
	}, logger)
	if err != nil {
		logger.Warn("firestore unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewMemory(), nil
	}
	return fs, fs
}
