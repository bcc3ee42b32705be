// Package config loads the catalog's settings.
//
// SOURCES (highest priority first):
//  1. Command-line flags bound with BindFlags
//  2. Environment variables with the CATALOG_ prefix (CATALOG_PORT,
//     CATALOG_DB_DRIVER, CATALOG_RATE_LIMIT_RPS, ...). Nested keys use "_"
//     in place of ".".
//  3. A .env file in the working directory, loaded into the environment
//     without overriding variables that are already set
//  4. An optional config file (catalog.yaml in the working directory, or the
//     path given with --config / CATALOG_CONFIG_FILE)
//  5. The defaults below
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CATALOG"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the complete runtime configuration.
type Config struct {
	Port         int             `mapstructure:"port"`
	LogLevel     string          `mapstructure:"log_level"`
	Version      string          `mapstructure:"version"`
	TemplatesDir string          `mapstructure:"templates_dir"` // empty: embedded templates
	StaticDir    string          `mapstructure:"static_dir"`    // empty: embedded assets
	Dev          bool            `mapstructure:"dev"`           // reload templates on change
	MaxFormBytes int64           `mapstructure:"max_form_bytes"`
	TrustProxy   bool            `mapstructure:"trust_proxy"` // take the client IP from X-Forwarded-For / X-Real-IP
	DB           DBConfig        `mapstructure:"db"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"` // sqlite file, or ":memory:"
	DSN    string `mapstructure:"dsn"`  // postgres connection string
}

// RateLimitConfig configures per-client limiting. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("version", "1")
	v.SetDefault("templates_dir", "")
	v.SetDefault("static_dir", "")
	v.SetDefault("dev", false)
	v.SetDefault("max_form_bytes", 1<<20)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("db.driver", DriverSQLite)
	v.SetDefault("db.path", "data/catalog.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("rate_limit.rps", 10.0)
	v.SetDefault("rate_limit.burst", 20)
}

// BindFlags defines the command-line flags on fs and binds them to v.
// Flags only override the other sources when they are set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.Int("port", 8080, "HTTP port to listen on")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("templates-dir", "", "serve templates from this directory instead of the embedded ones")
	fs.String("static-dir", "", "serve static assets from this directory instead of the embedded ones")
	fs.Bool("dev", false, "reload templates when they change (needs --templates-dir)")
	fs.Bool("trust-proxy", false, "trust X-Forwarded-For / X-Real-IP (only behind a reverse proxy)")
	fs.String("db-driver", DriverSQLite, "storage driver (sqlite, postgres)")
	fs.String("db-path", "data/catalog.db", "sqlite database file")
	fs.String("db-dsn", "", "postgres connection string")

	bindings := map[string]string{
		"port":          "port",
		"log_level":     "log-level",
		"templates_dir": "templates-dir",
		"static_dir":    "static-dir",
		"dev":           "dev",
		"trust_proxy":   "trust-proxy",
		"db.driver":     "db-driver",
		"db.path":       "db-path",
		"db.dsn":        "db-dsn",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag --%s: %w", flag, err)
		}
	}
	return nil
}

// Load reads every source into a validated Config. configFile may be empty.
func Load(v *viper.Viper, configFile string) (Config, error) {
	// Values already in the environment win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString("config_file")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// An explicitly named file must exist; the default one is optional.
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range 1-65535", c.Port)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			return errors.New("config: db.path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DB.DSN == "" {
			return errors.New("config: db.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown db.driver %q (want %s or %s)", c.DB.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Dev && c.TemplatesDir == "" {
		return errors.New("config: dev mode needs templates_dir to watch")
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return fmt.Errorf("config: rate_limit.burst must be at least 1, got %d", c.RateLimit.Burst)
	}
	if c.MaxFormBytes < 1 {
		return fmt.Errorf("config: max_form_bytes must be positive, got %d", c.MaxFormBytes)
	}
	return nil
}

// ParseLevel maps a log_level value to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log_level %q", s)
	}
	return level, nil
}
