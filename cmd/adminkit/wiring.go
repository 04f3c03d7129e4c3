package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/adminkit/internal/app"
	"github.com/dropDatabas3/adminkit/internal/cache"
	"github.com/dropDatabas3/adminkit/internal/config"
	"github.com/dropDatabas3/adminkit/internal/dispatch"
	"github.com/dropDatabas3/adminkit/internal/introspect"
	"github.com/dropDatabas3/adminkit/internal/rate"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/dropDatabas3/adminkit/internal/security/actiontoken"
	"github.com/dropDatabas3/adminkit/internal/store"
)

// resources agrupa lo que hay que cerrar al salir.
type resources struct {
	pool    *store.ConnectionPool
	conn    store.AdapterConnection
	cache   cache.Client
	limiter rate.MultiLimiter
}

func (r *resources) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
	if r.pool != nil {
		_ = r.pool.CloseAll()
	}
}

func adapterConfig(cfg *config.Config, migrate bool) store.AdapterConfig {
	return store.AdapterConfig{
		Name:            cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxOpenConns:    cfg.Storage.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		AutoMigrate:     migrate || cfg.Storage.AutoMigrate,
	}
}

// openStore abre el adapter configurado.
func openStore(ctx context.Context, cfg *config.Config, rt *resources, migrate bool) error {
	rt.pool = store.NewConnectionPool()
	conn, err := rt.pool.Get(ctx, adapterConfig(cfg, migrate))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("store: ping %s: %w", conn.Name(), err)
	}
	rt.conn = conn
	return nil
}

// openCache arma el cache de nonces y el rate limiter sobre el mismo backend.
func openCache(ctx context.Context, cfg *config.Config, rt *resources) error {
	prefix := cfg.Cache.Redis.Prefix
	switch strings.ToLower(cfg.Cache.Kind) {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		c := cache.NewRedisFromClient(rdb, prefix)
		if err := c.Ping(ctx); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("cache: redis: %w", err)
		}
		rt.cache = c
		rt.limiter = rate.NewMulti(func(limit int, window time.Duration) rate.Limiter {
			return rate.NewRedisLimiter(rdb, prefix+":rl:", limit, window)
		})
	default:
		ttl, err := cfg.MemoryCacheTTL()
		if err != nil {
			return err
		}
		c, err := cache.New(cache.Config{Driver: "memory", Prefix: prefix, DefaultTTL: ttl})
		if err != nil {
			return err
		}
		rt.cache = c
		rt.limiter = rate.NewMulti(func(limit int, window time.Duration) rate.Limiter {
			return rate.NewMemoryLimiter(prefix+":rl:", limit, window)
		})
	}
	return nil
}

// buildCore arma el core y corre el discovery inicial.
func buildCore(ctx context.Context, cfg *config.Config, rt *resources) (*app.Core, error) {
	tokens, err := actiontoken.New(actiontoken.Config{
		Secret:     []byte(cfg.Security.ActionTokenSecret),
		DefaultTTL: cfg.Security.ActionTokenTTL,
		MaxTTL:     cfg.Security.ActionTokenMaxTTL,
		Issuer:     "adminkit",
	}, actiontoken.NewCacheNonces(rt.cache, nil))
	if err != nil {
		return nil, err
	}

	core, err := app.New(app.Deps{
		Records: rt.conn.Records(),
		Audit:   rt.conn.Audit(),
		Tokens:  tokens,
		Policy:  cfg.Policy(),
		List: dispatch.Config{
			DefaultPageSize: cfg.List.DefaultPageSize,
			MaxPageSize:     cfg.List.MaxPageSize,
		},
	})
	if err != nil {
		return nil, err
	}

	decls, err := loadDeclarations(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := core.DiscoverModels(ctx, decls, discoveryOptions(cfg)); err != nil {
		return nil, err
	}
	return core, nil
}

func loadDeclarations(cfg *config.Config) ([]schema.Declaration, error) {
	if cfg.Discovery.DeclarationsPath == "" {
		return nil, nil
	}
	return schema.LoadDeclarations(cfg.Discovery.DeclarationsPath)
}

func discoveryOptions(cfg *config.Config) introspect.Options {
	return introspect.Options{
		Include:  cfg.Discovery.Include,
		Exclude:  cfg.Discovery.Exclude,
		MaxDepth: cfg.Discovery.MaxDepth,
	}
}
