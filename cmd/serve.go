package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parley0/parley/api"
	"github.com/parley0/parley/internal/chat"
	"github.com/parley0/parley/internal/config"
	"github.com/parley0/parley/internal/keys"
	"github.com/parley0/parley/internal/log"
	"github.com/parley0/parley/internal/registry"
	"github.com/parley0/parley/internal/relay"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// modelCacheTTL is how long the upstream model listing stays fresh.
const modelCacheTTL = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes and starts the HTTP server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	logger.Info("starting parley", "version", AppVersion, "backend", cfg.StorageBackend)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	files := chat.NewFiles(cfg.ChatsDir())

	var store chat.Store
	switch cfg.StorageBackend {
	case config.BackendBolt:
		store, err = chat.NewBoltStore(cfg.BoltPath(), files, logger)
	default:
		store, err = chat.NewFileStore(cfg.ChatsDir(), logger)
	}
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing store", "error", closeErr)
		}
	}()

	reg := registry.New(cfg.ProvidersPath())
	keyStore := keys.NewStore(cfg.KeysPath())
	engine := relay.NewEngine(store, files, reg, keyStore, cfg.UpstreamURL, cfg.UpstreamTimeout, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Store:      store,
		Files:      files,
		Registry:   reg,
		Keys:       keyStore,
		Engine:     engine,
		ModelCache: registry.NewModelCache(modelCacheTTL),
		ModelsURL:  cfg.UpstreamModelsURL,
		StaticDir:  cfg.StaticDir,
		RateBurst:  cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.Addr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
