// Package cli wires the pipedesk commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/pipedesk/internal/config"
)

// NewRootCmd creates the top-level "pipedesk" command and registers all
// subcommands.
func NewRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pipedesk",
		Short:         "Lead priority, deal SLA and stage transition service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newMigrateCmd(&configPath),
		newSeedCmd(&configPath),
		newEvalCmd(),
	)
	return root
}

// Execute loads .env if present and runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return NewRootCmd().Execute()
}

func loadConfig(path string, out io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, newLogger(cfg.Logging, out), nil
}

func newLogger(lc config.LoggingConfig, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: parseLevel(lc.Level)}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(out, opts))
	}
	return slog.New(slog.NewJSONHandler(out, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func requireDatabase(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database url not configured (set PIPEDESK_DATABASE_URL)")
	}
	return nil
}
