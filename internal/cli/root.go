package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kolo-save/kolo/internal/config"
	"github.com/kolo-save/kolo/internal/infra"
	"github.com/kolo-save/kolo/internal/logging"
	"github.com/kolo-save/kolo/internal/routes"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "kolo",
	Short: "Kolo savings wallet service",
	Long: `Kolo runs the savings wallet API, the daily savings batch and schema migrations.
Configuration is read from the environment; a .env file is loaded first when present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		return loadEnvFile(envFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env (%s): %w", path, err)
	}
	return nil
}

// stack is the shared state of commands that touch the stores.
type stack struct {
	cfg        config.Config
	logger     *slog.Logger
	components *routes.Components
	closeFns   []func()
}

func openStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt := &stack{cfg: cfg, logger: logging.New(cfg.LogLevel, cfg.LogFormat)}

	deps := routes.Deps{Cfg: cfg, Logger: rt.logger}
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.OperationTimeout)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closeFns = append(rt.closeFns, db.Close)
		deps.DB = db
	} else {
		rt.logger.Warn("DATABASE_URL not set, using in-memory stores")
	}
	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL, cfg.OperationTimeout)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.closeFns = append(rt.closeFns, func() {
			if err := cache.Close(); err != nil {
				rt.logger.Warn("close redis", slog.Any("error", err))
			}
		})
		deps.Cache = cache
	}

	components, err := routes.NewComponents(deps)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.components = components
	rt.closeFns = append(rt.closeFns, func() {
		if err := components.Close(); err != nil {
			rt.logger.Warn("close components", slog.Any("error", err))
		}
	})
	return rt, nil
}

// close releases resources in reverse order of acquisition.
func (rt *stack) close() {
	for i := len(rt.closeFns) - 1; i >= 0; i-- {
		rt.closeFns[i]()
	}
	rt.closeFns = nil
}
