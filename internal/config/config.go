// Package config loads tarn configuration from YAML files and the
// environment: stage sizing, named datasource references, and operation
// defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConfigName = ".tarn"
	defaultConfigDir  = ".tarn"
)

// Manager handles tarn configuration
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager. An empty configPath
// searches the default locations (~/.tarn/config.yaml, ~/.tarn.yaml).
func NewManager(configPath string) *Manager {
	return &Manager{
		configPath: configPath,
		viper:      viper.New(),
		config:     &Config{},
	}
}

// Load loads the tarn configuration from file. A missing file is not an
// error; the defaults apply.
func (m *Manager) Load() (*Config, error) {
	if m.configPath != "" {
		m.viper.SetConfigFile(m.configPath)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		// Check ~/.tarn/config.yaml, then ~/.tarn.yaml
		m.viper.AddConfigPath(filepath.Join(home, defaultConfigDir))
		m.viper.AddConfigPath(home)
		m.viper.SetConfigName(defaultConfigName)
		m.viper.SetConfigType("yaml")
	}

	m.viper.SetEnvPrefix("TARN")
	m.viper.AutomaticEnv()

	m.config = &Config{}

	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		m.applyDefaults()
		return m.config, nil
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	m.applyDefaults()

	if err := m.validate(); err != nil {
		return nil, err
	}

	return m.config, nil
}

// Save saves the current configuration to file
func (m *Manager) Save() error {
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		configDir := filepath.Join(home, defaultConfigDir)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		m.configPath = filepath.Join(configDir, "config.yaml")
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := m.viper.WriteConfigAs(m.configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// GetStageConfig returns the sizing for a named stage, falling back to
// the configured defaults for unknown names.
func (m *Manager) GetStageConfig(name string) StageConfig {
	if cfg, ok := m.config.Stages[name]; ok {
		if cfg.Workers <= 0 {
			cfg.Workers = m.config.Defaults.Workers
		}
		if cfg.QueueSize <= 0 {
			cfg.QueueSize = m.config.Defaults.QueueSize
		}
		return cfg
	}

	return StageConfig{
		Workers:   m.config.Defaults.Workers,
		QueueSize: m.config.Defaults.QueueSize,
	}
}

// GetDatasourceConfig returns configuration for a specific datasource
func (m *Manager) GetDatasourceConfig(name string) (*DatasourceConfig, bool) {
	if m.config.Datasources == nil {
		return nil, false
	}

	ds, ok := m.config.Datasources[name]
	return &ds, ok
}

// DatasourceProperties renders every configured datasource as the
// named-property bags the datasource registry consumes
func (m *Manager) DatasourceProperties() map[string]map[string]string {
	refs := make(map[string]map[string]string, len(m.config.Datasources))
	for name, ds := range m.config.Datasources {
		refs[name] = ds.Properties()
	}
	return refs
}

// applyDefaults sets default values for configuration
func (m *Manager) applyDefaults() {
	if m.config == nil {
		return
	}

	if m.config.Defaults.Timeout == 0 {
		m.config.Defaults.Timeout = 30 * time.Second
	}

	if m.config.Defaults.Workers == 0 {
		m.config.Defaults.Workers = 4
	}

	if m.config.Defaults.QueueSize == 0 {
		m.config.Defaults.QueueSize = 64
	}

	if m.config.Defaults.OutputFormat == "" {
		m.config.Defaults.OutputFormat = "table"
	}
}

// validate rejects configurations that cannot be acted on
func (m *Manager) validate() error {
	for name, stage := range m.config.Stages {
		if stage.Workers < 0 {
			return fmt.Errorf("stage %q: workers must not be negative", name)
		}
		if stage.QueueSize < 0 {
			return fmt.Errorf("stage %q: queueSize must not be negative", name)
		}
	}

	for name, ds := range m.config.Datasources {
		if ds.URL == "" {
			return fmt.Errorf("datasource %q: url is required", name)
		}
		if ds.LoginTimeout < 0 {
			return fmt.Errorf("datasource %q: loginTimeout must not be negative", name)
		}
	}

	return nil
}
