package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds process settings. Service behaviour lives in the crmsync
// config file.
type Config struct {
	Addr            string        `env:"CRMSYNC_ADDR" envDefault:":8080"`
	ConfigFile      string        `env:"CRMSYNC_CONFIG_FILE"`
	DBDriver        string        `env:"CRMSYNC_DB_DRIVER" envDefault:"memory"`
	DBDSN           string        `env:"CRMSYNC_DB_DSN"`
	Debug           bool          `env:"CRMSYNC_DEBUG"`
	LogLevel        string        `env:"CRMSYNC_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"CRMSYNC_LOG_FORMAT" envDefault:"json"`
	APIKeys         []string      `env:"CRMSYNC_API_KEYS" envSeparator:","`
	TagCacheTTL     time.Duration `env:"CRMSYNC_TAG_CACHE_TTL" envDefault:"5m"`
	ShutdownTimeout time.Duration `env:"CRMSYNC_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseConfig reads the environment, then lets flags override it.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "path to a JSON config file")
	fs.StringVar(&cfg.DBDriver, "db-driver", cfg.DBDriver, "storage backend: memory, sqlite or postgres")
	fs.StringVar(&cfg.DBDSN, "db-dsn", cfg.DBDSN, "database connection string")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable query debugging")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: trace, debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "", DriverMemory:
		c.DBDriver = DriverMemory
	case DriverSQLite, DriverPostgres:
		if strings.TrimSpace(c.DBDSN) == "" {
			return fmt.Errorf("config: db dsn is required for the %s driver", c.DBDriver)
		}
	default:
		return fmt.Errorf("config: unsupported db driver %q", c.DBDriver)
	}
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("config: listen address is required")
	}
	return nil
}

// persistenceConfig satisfies the go-persistence-bun client config.
type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.driver }
func (c persistenceConfig) GetServer() string             { return c.dsn }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return "crmsync" }
