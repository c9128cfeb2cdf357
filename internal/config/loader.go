package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"socialsync/pkg/log"
)

const envPrefix = "SOCIALSYNC"

var (
	// GlobalConfig holds the global configuration instance
	GlobalConfig *Config

	mu     sync.RWMutex
	loaded *viper.Viper
)

// LoadConfig loads configuration from file and environment variables.
// An overlay file config.<env>.yaml next to the base file is merged on top,
// and SOCIALSYNC_* variables override both.
func LoadConfig(configPath string) (*Config, error) {
	v, err := build(configPath)
	if err != nil {
		return nil, err
	}

	config, err := decode(v)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	GlobalConfig = config
	loaded = v
	mu.Unlock()

	return config, nil
}

func build(configPath string) (*viper.Viper, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
		v.AddConfigPath("/etc/socialsync")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Warn("Config file not found, using defaults and environment variables")
		return v, nil
	}

	base := v.ConfigFileUsed()
	log.WithField("file", base).Info("Using config file")

	overlay := filepath.Join(filepath.Dir(base), fmt.Sprintf("config.%s.yaml", Environment()))
	if _, err := os.Stat(overlay); err == nil {
		v.SetConfigFile(overlay)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", overlay, err)
		}
		log.WithField("file", overlay).Info("Merged environment config")
		// watch the base file
		v.SetConfigFile(base)
	}

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// MustLoadConfig loads configuration and panics on error
func MustLoadConfig(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	return config
}

// GetConfig returns the global configuration instance
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()

	if GlobalConfig == nil {
		panic("Config not loaded. Call LoadConfig first.")
	}
	return GlobalConfig
}

// WatchConfig rebuilds the config when the base file changes and hands it to callback.
// A change that fails validation is logged and the previous config stays active.
func WatchConfig(callback func(*Config)) error {
	mu.RLock()
	v := loaded
	mu.RUnlock()

	if v == nil || v.ConfigFileUsed() == "" {
		return fmt.Errorf("config not initialized from a file")
	}
	base := v.ConfigFileUsed()

	v.OnConfigChange(func(e fsnotify.Event) {
		log.WithField("file", e.Name).Info("Config file changed")

		nv, err := build(base)
		if err != nil {
			log.WithError(err).Error("Failed to reload config")
			return
		}
		next, err := decode(nv)
		if err != nil {
			log.WithError(err).Error("Failed to reload config")
			return
		}

		mu.Lock()
		GlobalConfig = next
		mu.Unlock()

		if callback != nil {
			callback(next)
		}
	})
	v.WatchConfig()
	return nil
}

// GetEnv returns environment variable value with fallback
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Environment returns SOCIALSYNC_ENV, defaulting to dev
func Environment() string {
	return GetEnv(envPrefix+"_ENV", "dev")
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Environment()
	return env == "prod" || env == "production"
}
