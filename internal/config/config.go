package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/adminkit/internal/authz"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver      string `yaml:"driver"` // memory | postgres
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
		Postgres    struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Security struct {
		// Secreto de firma de action tokens. Mínimo 16 bytes; en prod 32+.
		ActionTokenSecret string        `yaml:"action_token_secret"`
		ActionTokenTTL    time.Duration `yaml:"action_token_ttl"`
		ActionTokenMaxTTL time.Duration `yaml:"action_token_max_ttl"`
	} `yaml:"security"`

	Authz struct {
		SuperuserRole string       `yaml:"superuser_role"`
		EditorRoles   []string     `yaml:"editor_roles"`
		Roles         []authz.Role `yaml:"roles"`
	} `yaml:"authz"`

	Discovery struct {
		DeclarationsPath string   `yaml:"declarations_path"`
		Include          []string `yaml:"include"`
		Exclude          []string `yaml:"exclude"`
		MaxDepth         int      `yaml:"max_depth"`
	} `yaml:"discovery"`

	Rate struct {
		Enabled     bool   `yaml:"enabled"`
		Window      string `yaml:"window"`
		MaxRequests int    `yaml:"max_requests"`
		// Cupo separado para create/update/delete/custom.
		MutationMaxRequests int `yaml:"mutation_max_requests"`
	} `yaml:"rate"`

	List struct {
		DefaultPageSize int `yaml:"default_page_size"`
		MaxPageSize     int `yaml:"max_page_size"`
	} `yaml:"list"`
}

// Load lee el YAML (path vacío = sólo defaults + env), aplica defaults y
// overrides de entorno, y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	c.applyEnvOverrides()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// sane defaults
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "adminkit"
	}
	if c.Security.ActionTokenTTL == 0 {
		c.Security.ActionTokenTTL = 10 * time.Minute
	}
	if c.Security.ActionTokenMaxTTL == 0 {
		c.Security.ActionTokenMaxTTL = time.Hour
	}
	if c.Authz.SuperuserRole == "" {
		c.Authz.SuperuserRole = "superuser"
	}
	if len(c.Authz.EditorRoles) == 0 {
		c.Authz.EditorRoles = []string{"editor"}
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.Rate.MaxRequests == 0 {
		c.Rate.MaxRequests = 120
	}
	if c.Rate.MutationMaxRequests == 0 {
		c.Rate.MutationMaxRequests = 30
	}
	if c.List.DefaultPageSize == 0 {
		c.List.DefaultPageSize = 25
	}
	if c.List.MaxPageSize == 0 {
		c.List.MaxPageSize = 100
	}
}

// RateWindow retorna rate.window parseado (0 si es inválido).
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Window)
	return d
}

// IsProd reporta si app.env es prod.
func (c *Config) IsProd() bool {
	return strings.EqualFold(c.App.Env, "prod") || strings.EqualFold(c.App.Env, "production")
}

// Policy arma la policy de permisos configurada.
func (c *Config) Policy() authz.Policy {
	return authz.Policy{
		SuperuserRole: c.Authz.SuperuserRole,
		EditorRoles:   c.Authz.EditorRoles,
		Roles:         c.Authz.Roles,
	}
}

// Validate chequea combinaciones inválidas.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Security.ActionTokenSecret) < 16 {
		errs = append(errs, errors.New("security.action_token_secret must be at least 16 bytes"))
	} else if c.IsProd() && len(c.Security.ActionTokenSecret) < 32 {
		errs = append(errs, errors.New("security.action_token_secret must be at least 32 bytes in prod"))
	}
	if c.Security.ActionTokenTTL > c.Security.ActionTokenMaxTTL {
		errs = append(errs, errors.New("security.action_token_ttl exceeds action_token_max_ttl"))
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "memory":
	case "postgres", "pg", "postgresql":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch strings.ToLower(c.Cache.Kind) {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}
	if _, err := c.MemoryCacheTTL(); err != nil {
		errs = append(errs, err)
	}
	if c.Rate.Enabled {
		if _, err := time.ParseDuration(c.Rate.Window); err != nil {
			errs = append(errs, fmt.Errorf("rate.window: %w", err))
		}
	}
	if c.List.DefaultPageSize > c.List.MaxPageSize {
		errs = append(errs, errors.New("list.default_page_size exceeds list.max_page_size"))
	}
	return errors.Join(errs...)
}

// MemoryCacheTTL parsea cache.memory.default_ttl. Vacío = sin expiración.
func (c *Config) MemoryCacheTTL() (time.Duration, error) {
	if c.Cache.Memory.DefaultTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Cache.Memory.DefaultTTL)
	if err != nil {
		return 0, fmt.Errorf("cache.memory.default_ttl: %w", err)
	}
	if d < 0 {
		return 0, errors.New("cache.memory.default_ttl must not be negative")
	}
	return d, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}
func getEnvCSV(key string) ([]string, bool) {
	if s, ok := getEnvStr(key); ok {
		if strings.TrimSpace(s) == "" {
			return []string{}, true
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, true
	}
	return nil, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// App / log
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}

	// Server
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvDur("SERVER_SHUTDOWN_TIMEOUT"); ok {
		c.Server.ShutdownTimeout = v
	}

	// Storage
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("POSTGRES_CONN_MAX_LIFETIME"); ok {
		c.Storage.Postgres.ConnMaxLifetime = v
	}

	// Cache
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("CACHE_MEMORY_DEFAULT_TTL"); ok {
		c.Cache.Memory.DefaultTTL = v
	}

	// Security
	if v, ok := getEnvStr("ACTION_TOKEN_SECRET"); ok {
		c.Security.ActionTokenSecret = v
	}
	if v, ok := getEnvDur("ACTION_TOKEN_TTL"); ok {
		c.Security.ActionTokenTTL = v
	}
	if v, ok := getEnvDur("ACTION_TOKEN_MAX_TTL"); ok {
		c.Security.ActionTokenMaxTTL = v
	}

	// Authz
	if v, ok := getEnvStr("AUTHZ_SUPERUSER_ROLE"); ok {
		c.Authz.SuperuserRole = v
	}
	if v, ok := getEnvCSV("AUTHZ_EDITOR_ROLES"); ok {
		c.Authz.EditorRoles = v
	}

	// Discovery
	if v, ok := getEnvStr("DISCOVERY_DECLARATIONS_PATH"); ok {
		c.Discovery.DeclarationsPath = v
	}
	if v, ok := getEnvCSV("DISCOVERY_INCLUDE"); ok {
		c.Discovery.Include = v
	}
	if v, ok := getEnvCSV("DISCOVERY_EXCLUDE"); ok {
		c.Discovery.Exclude = v
	}
	if v, ok := getEnvInt("DISCOVERY_MAX_DEPTH"); ok {
		c.Discovery.MaxDepth = v
	}

	// Rate
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvInt("RATE_MAX_REQUESTS"); ok {
		c.Rate.MaxRequests = v
	}
	if v, ok := getEnvInt("RATE_MUTATION_MAX_REQUESTS"); ok {
		c.Rate.MutationMaxRequests = v
	}

	// List
	if v, ok := getEnvInt("LIST_DEFAULT_PAGE_SIZE"); ok {
		c.List.DefaultPageSize = v
	}
	if v, ok := getEnvInt("LIST_MAX_PAGE_SIZE"); ok {
		c.List.MaxPageSize = v
	}
}
