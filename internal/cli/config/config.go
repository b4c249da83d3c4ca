package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/conduit-lang/refproxy/internal/orm/proxyfactory"
	"github.com/conduit-lang/refproxy/internal/orm/store"
)

// ConfigName is the base name of the project configuration file
const ConfigName = "refproxy"

// Config represents the refproxy configuration
type Config struct {
	Proxy ProxyConfig `mapstructure:"proxy"`
	Store StoreConfig `mapstructure:"store"`

	// Root is the directory the configuration was loaded from
	Root string `mapstructure:"-"`
}

// ProxyConfig represents proxy generation configuration
type ProxyConfig struct {
	Dir          string   `mapstructure:"dir"`
	Namespace    string   `mapstructure:"namespace"`
	AutoGenerate bool     `mapstructure:"auto_generate"`
	Sources      []string `mapstructure:"sources"`
}

// StoreConfig represents document store configuration
type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	DSN    string      `mapstructure:"dsn"`
	Prefix string      `mapstructure:"prefix"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig represents Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Load loads the configuration from refproxy.yml or refproxy.yaml in the working directory
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom loads the configuration from refproxy.yml or refproxy.yaml in dir. Values can be
// overridden by REFPROXY_* environment variables, e.g. REFPROXY_PROXY_DIR.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("proxy.dir", "proxies")
	v.SetDefault("proxy.namespace", "proxies")
	v.SetDefault("proxy.auto_generate", false)
	v.SetDefault("proxy.sources", []string{"."})
	v.SetDefault("store.driver", store.DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.prefix", "refproxy")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("REFPROXY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	config.Root = root

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// ProxyDir returns the absolute proxy directory
func (c *Config) ProxyDir() string {
	return c.resolve(c.Proxy.Dir)
}

// SourceDirs returns the absolute source directories
func (c *Config) SourceDirs() []string {
	dirs := make([]string, 0, len(c.Proxy.Sources))
	for _, src := range c.Proxy.Sources {
		dirs = append(dirs, c.resolve(src))
	}
	return dirs
}

// GeneratorConfig builds the proxy generator configuration
func (c *Config) GeneratorConfig(fs afero.Fs, logger *zap.Logger) proxyfactory.Config {
	return proxyfactory.Config{
		Dir:          c.ProxyDir(),
		Namespace:    c.Proxy.Namespace,
		AutoGenerate: c.Proxy.AutoGenerate,
		Fs:           fs,
		Logger:       logger,
	}
}

// StoreOptions builds the document store configuration
func (c *Config) StoreOptions() store.Config {
	cfg := store.DefaultConfig()
	cfg.Driver = c.Store.Driver
	cfg.DSN = c.Store.DSN
	cfg.Prefix = c.Store.Prefix
	cfg.Redis.Addr = c.Store.Redis.Addr
	cfg.Redis.Password = c.Store.Redis.Password
	cfg.Redis.DB = c.Store.Redis.DB
	return cfg
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Root, path)
}

// InProject checks if the current directory holds a refproxy configuration
func InProject() bool {
	for _, name := range []string{ConfigName + ".yml", ConfigName + ".yaml"} {
		if _, err := os.Stat(name); err == nil {
			return true
		}
	}
	return false
}

// GetProjectRoot tries to find the project root by looking for refproxy.yml or go.mod
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, name := range []string{ConfigName + ".yml", ConfigName + ".yaml", "go.mod"} {
			if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a Go project (no %s.yml or go.mod found)", ConfigName)
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Proxy.Dir == "" {
		return fmt.Errorf("proxy.dir must not be empty")
	}
	if len(cfg.Proxy.Sources) == 0 {
		return fmt.Errorf("proxy.sources must name at least one directory")
	}

	switch cfg.Store.Driver {
	case store.DriverMemory, store.DriverRedis:
	case store.DriverSQLite, store.DriverSQLite3, store.DriverPostgres, store.DriverPgx:
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", cfg.Store.Driver)
		}
	default:
		return fmt.Errorf("unknown store.driver: %s", cfg.Store.Driver)
	}

	return (proxyfactory.Config{Dir: cfg.Proxy.Dir, Namespace: cfg.Proxy.Namespace, AutoGenerate: true}).Validate()
}
