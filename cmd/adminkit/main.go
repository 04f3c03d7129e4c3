package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/adminkit/internal/config"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"

	// adapters de storage (se registran en init)
	_ "github.com/dropDatabas3/adminkit/internal/store/adapters/memory"
	_ "github.com/dropDatabas3/adminkit/internal/store/adapters/pg"
)

var version = "dev"

func main() {
	var (
		envFile    = envOr("ADMINKIT_ENV_FILE", ".env")
		configPath = envOr("ADMINKIT_CONFIG", "")
		cfg        *config.Config
	)

	root := &cobra.Command{
		Use:           "adminkit",
		Short:         "Core admin auto-descubierto: registry, permisos, action tokens y auditoría",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			c, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			cfg = c
			logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "adminkit", Version: version})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env (vacío = no cargar)")
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (vacío = sólo env)")

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCmd(cfgFn),
		newDiscoverCmd(cfgFn),
		newAuditCmd(cfgFn),
		newMigrateCmd(cfgFn),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
