package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sourcepole/qgis-interlis-plugin/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the model repository over HTTP",
	Long: `Serve loads the IlisMeta model files of the configured repository and
exposes mapping generation over a REST API.

Features:
  - Mapping documents, VRT files, enum tables and empty transfers
  - Model repositories on local disk, AWS S3, Azure Blob Storage or HTTP
  - Hot reload of local model files and scheduled repository sync
  - TLS with automatic certificate management
  - Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("host", "0.0.0.0", "server host")
	flags.Int("port", 8080, "server port")
	flags.Bool("tls", false, "enable TLS")
	flags.StringSlice("tls-domains", nil, "TLS domains")
	flags.String("tls-email", "", "TLS email for Let's Encrypt")
	flags.String("storage-type", "local", "storage type (local, s3, azure, http)")
	flags.String("storage-path", "./data", "local model directory")
	flags.Duration("sync-interval", 0, "repository sync interval (0 disables)")
	flags.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")

	_ = viper.BindPFlag("server.host", flags.Lookup("host"))
	_ = viper.BindPFlag("server.port", flags.Lookup("port"))
	_ = viper.BindPFlag("tls.enabled", flags.Lookup("tls"))
	_ = viper.BindPFlag("tls.domains", flags.Lookup("tls-domains"))
	_ = viper.BindPFlag("tls.email", flags.Lookup("tls-email"))
	_ = viper.BindPFlag("storage.type", flags.Lookup("storage-type"))
	_ = viper.BindPFlag("storage.local_path", flags.Lookup("storage-path"))
	_ = viper.BindPFlag("storage.sync_interval", flags.Lookup("sync-interval"))
	_ = viper.BindPFlag("server.cors.allowed_origins", flags.Lookup("cors"))
}

func runServer(cmd *cobra.Command, _ []string) error {
	logger.Info("starting interlis service",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case runErr = <-serverErr:
		logger.Error("server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return errors.Join(runErr, err)
	}

	logger.Info("server stopped")
	return runErr
}
