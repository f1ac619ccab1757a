package config

import (
	"strconv"
	"time"
)

// Config represents the tarn configuration file structure
type Config struct {
	// Stages is a map of stage name to sizing configuration
	Stages map[string]StageConfig `yaml:"stages,omitempty" json:"stages,omitempty"`

	// Datasources is a map of datasource name to reference properties
	Datasources map[string]DatasourceConfig `yaml:"datasources,omitempty" json:"datasources,omitempty"`

	// Defaults contains default settings for operations
	Defaults DefaultsConfig `yaml:"defaults,omitempty" json:"defaults,omitempty"`
}

// StageConfig sizes one execution stage
type StageConfig struct {
	// Workers is the number of worker goroutines
	Workers int `yaml:"workers" json:"workers"`

	// QueueSize is the bounded queue depth
	QueueSize int `yaml:"queueSize" json:"queueSize"`
}

// DatasourceConfig describes one named datasource reference
type DatasourceConfig struct {
	// URL locates the database; its scheme selects the driver
	URL string `yaml:"url" json:"url"`

	// User is the login user
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Password is the login password
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Description is a free-form label
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// LoginTimeout bounds connection establishment, in seconds
	LoginTimeout int `yaml:"loginTimeout,omitempty" json:"loginTimeout,omitempty"`
}

// Properties renders the reference as the named-property bag the
// datasource resolver consumes
func (d DatasourceConfig) Properties() map[string]string {
	props := map[string]string{"url": d.URL}
	if d.User != "" {
		props["user"] = d.User
	}
	if d.Password != "" {
		props["password"] = d.Password
	}
	if d.Description != "" {
		props["description"] = d.Description
	}
	if d.LoginTimeout != 0 {
		props["loginTimeout"] = strconv.Itoa(d.LoginTimeout)
	}
	return props
}

// DefaultsConfig contains default configuration values
type DefaultsConfig struct {
	// Timeout for blocking result retrieval
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Workers is the default stage worker count
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`

	// QueueSize is the default stage queue depth
	QueueSize int `yaml:"queueSize,omitempty" json:"queueSize,omitempty"`

	// OutputFormat is the default output format (table, json, yaml)
	OutputFormat string `yaml:"outputFormat,omitempty" json:"outputFormat,omitempty"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor,omitempty" json:"noColor,omitempty"`
}
