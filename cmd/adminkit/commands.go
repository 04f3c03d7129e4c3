package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/adminkit/internal/config"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	"github.com/dropDatabas3/adminkit/internal/introspect"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/store"
)

// newDiscoverCmd corre el introspector sobre el archivo de declaraciones e
// imprime los descriptores resultantes. No toca el store.
func newDiscoverCmd(cfgFn func() *config.Config) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Imprime los descriptores descubiertos desde las declaraciones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			if path == "" {
				path = cfg.Discovery.DeclarationsPath
			}
			if path == "" {
				return fmt.Errorf("--declarations o discovery.declarations_path es requerido")
			}
			decls, err := schema.LoadDeclarations(path)
			if err != nil {
				return err
			}
			discovered, warnings := introspect.Discover(decls, discoveryOptions(cfg))
			for _, w := range warnings {
				fmt.Fprintln(os.Stderr, "warning:", w.String())
			}
			out := make([]*schema.Descriptor, 0, len(discovered))
			for _, name := range schema.SortedNames(discovered) {
				out = append(out, discovered[name])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&path, "declarations", "", "archivo YAML de declaraciones (default: discovery.declarations_path)")
	return cmd
}

// newAuditCmd consulta el audit log persistido (una entrada JSON por línea).
func newAuditCmd(cfgFn func() *config.Config) *cobra.Command {
	var (
		f            repository.AuditFilter
		since, until string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Consulta el audit log (más recientes primero)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			for _, p := range []struct {
				raw string
				dst *time.Time
			}{{since, &f.Since}, {until, &f.Until}} {
				if p.raw == "" {
					continue
				}
				t, err := time.Parse(time.RFC3339, p.raw)
				if err != nil {
					return fmt.Errorf("fecha inválida %q: %w", p.raw, err)
				}
				*p.dst = t
			}

			ctx := cmd.Context()
			pool := store.NewConnectionPool()
			defer pool.CloseAll()
			conn, err := pool.Get(ctx, adapterConfig(cfg, false))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			for e, err := range conn.Audit().Query(ctx, f) {
				if err != nil {
					return err
				}
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.Entity, "entity", "", "filtrar por entidad")
	cmd.Flags().StringVar(&f.RecordID, "record", "", "filtrar por id de registro")
	cmd.Flags().StringVar(&f.ActorID, "actor", "", "filtrar por user id del actor")
	cmd.Flags().StringVar(&f.Action, "action", "", "filtrar por acción")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339, inclusivo")
	cmd.Flags().StringVar(&until, "until", "", "RFC3339, exclusivo")
	cmd.Flags().IntVar(&f.Limit, "limit", 100, "máximo de entradas (0 = todas)")
	return cmd
}

// newMigrateCmd aplica las migraciones embebidas del adapter postgres.
func newMigrateCmd(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones SQL pendientes (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pool := store.NewConnectionPool()
			defer pool.CloseAll()
			conn, err := pool.Get(ctx, adapterConfig(cfg, true))
			if err != nil {
				return err
			}
			logger.L().Info("migrations up to date", logger.Op("migrate"), logger.String("storage", conn.Name()))
			return nil
		},
	}
}
