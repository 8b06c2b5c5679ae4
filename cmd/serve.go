package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"chat-gateway/internal/config"
	"chat-gateway/internal/profile"
	"chat-gateway/internal/provider"
	providerfactory "chat-gateway/internal/provider/factory"
	"chat-gateway/internal/ratelimit"
	"chat-gateway/internal/server"
)

func newServeCommand() *cobra.Command {
	var (
		cfgPath      string
		overridePort int
		logJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(logJSON)
			return runServe(cmd.Context(), cfgPath, overridePort)
		},
	}

	cmd.Flags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML configuration file")
	cmd.Flags().IntVar(&overridePort, "port", 0, "override server port from configuration")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON instead of human-readable text")

	return cmd
}

func runServe(ctx context.Context, cfgPath string, overridePort int) error {
	// A missing .env file is fine; profile key variables may be set by
	// other means.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	registry := provider.NewRegistry()
	if err := providerfactory.RegisterConfiguredProviders(cfg, registry); err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.Window))
	profiles := profile.NewFileStore(cfg.Profiles.Path)

	srv, err := server.New(cfg, registry, limiter, profiles)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}

func setupLogging(jsonOutput bool) {
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stderr, nil)
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen})
	}
	slog.SetDefault(slog.New(handler))
}
