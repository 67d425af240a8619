package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileNames are the config file names looked up in a project directory
var FileNames = []string{"relm.yml", "relm.yaml"}

// Config represents the relm project configuration
type Config struct {
	Gateways       map[string]GatewayConfig  `mapstructure:"gateways"`
	AutoRegister   AutoRegisterConfig        `mapstructure:"auto_register"`
	Plugins        map[string]map[string]any `mapstructure:"plugins"`
	InferenceCache InferenceCacheConfig      `mapstructure:"inference_cache"`
	Log            LogConfig                 `mapstructure:"log"`
}

// GatewayConfig represents one gateway entry
type GatewayConfig struct {
	Adapter string         `mapstructure:"adapter"`
	Args    []any          `mapstructure:"args"`
	Options map[string]any `mapstructure:"options"`
}

// AutoRegisterConfig points the loader at component files
type AutoRegisterConfig struct {
	RootDirectory string `mapstructure:"root_directory"`
	Namespace     bool   `mapstructure:"namespace"`
}

// InferenceCacheConfig selects where inferred columns are cached
type InferenceCacheConfig struct {
	Backend  string        `mapstructure:"backend"` // none, memory or redis
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads relm.yml from dir, or the file at path when path is set.
// RELM_* environment variables override file values
// (RELM_INFERENCE_CACHE_BACKEND=redis).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("auto_register.namespace", true)
	v.SetDefault("auto_register.root_directory", "")
	v.SetDefault("inference_cache.backend", "memory")
	v.SetDefault("inference_cache.addr", "localhost:6379")
	v.SetDefault("inference_cache.password", "")
	v.SetDefault("inference_cache.db", 0)
	v.SetDefault("inference_cache.ttl", "10m")
	v.SetDefault("inference_cache.prefix", "relm:inference:")
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("relm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RELM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.AutoRegister.RootDirectory != "" && !filepath.IsAbs(config.AutoRegister.RootDirectory) {
		if used := v.ConfigFileUsed(); used != "" {
			config.AutoRegister.RootDirectory = filepath.Join(filepath.Dir(used), config.AutoRegister.RootDirectory)
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GatewayIDs returns the configured gateway ids in sorted order
func (c *Config) GatewayIDs() []string {
	ids := make([]string, 0, len(c.Gateways))
	for id := range c.Gateways {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InProject checks if dir holds a relm config file
func InProject(dir string) bool {
	for _, name := range FileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// ProjectRoot walks up from dir looking for a relm config file
func ProjectRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if InProject(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a relm project (no relm.yml found)")
		}
		dir = parent
	}
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	for _, id := range cfg.GatewayIDs() {
		if cfg.Gateways[id].Adapter == "" {
			return fmt.Errorf("gateways.%s.adapter is required", id)
		}
	}

	switch cfg.InferenceCache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("inference_cache.backend must be one of none, memory, redis, got: %s", cfg.InferenceCache.Backend)
	}
	if cfg.InferenceCache.TTL < 0 {
		return fmt.Errorf("inference_cache.ttl must not be negative, got: %s", cfg.InferenceCache.TTL)
	}
	return nil
}
