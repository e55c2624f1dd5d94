// Package configuration defines the configuration file format for the
// vaultdb tool and the logic to parse it. Every parameter can be overridden
// through environment variables prefixed with VAULTDB, named after the
// concatenated path of the parameter (e.g. VAULTDB_DATABASE_HOST).
package configuration

import (
	"fmt"
	"io"
	"io/ioutil"
	"time"

	"gopkg.in/yaml.v2"
)

// CurrentVersion is the most recent configuration file version.
const CurrentVersion = Version("0.1")

// Version is the version of a configuration file, in major.minor form.
type Version string

// Configuration is the root configuration object.
type Configuration struct {
	// Version is the version of this configuration file. Required.
	Version Version `yaml:"version"`

	// Log supports setting various parameters related to the logging
	// subsystem.
	Log Log `yaml:"log"`

	// Database holds the connection parameters for the metadata database.
	Database Database `yaml:"database"`

	// Migration configures schema migration generation.
	Migration Migration `yaml:"migration"`

	// Reporting configures error reporting.
	Reporting Reporting `yaml:"reporting"`
}

// Log holds the logging configuration.
type Log struct {
	// Level is the granularity at which log entries are emitted. One of
	// trace, debug, info, warn, error, fatal or panic. Defaults to info.
	Level string `yaml:"level,omitempty"`

	// Formatter overrides the default formatter. One of text or json.
	Formatter string `yaml:"formatter,omitempty"`

	// Output is the destination of log entries, one of stdout or stderr.
	// Defaults to stdout.
	Output string `yaml:"output,omitempty"`

	// Fields is a map of default fields added to every log entry.
	Fields map[string]interface{} `yaml:"fields,omitempty"`
}

// Database holds the connection parameters for the metadata database.
type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// ConnectTimeout is the maximum wait for a connection to be established.
	ConnectTimeout time.Duration `yaml:"connecttimeout"`

	// Pool holds the connection pool settings.
	Pool struct {
		MaxIdle     int           `yaml:"maxidle"`
		MaxOpen     int           `yaml:"maxopen"`
		MaxLifetime time.Duration `yaml:"maxlifetime"`
	} `yaml:"pool"`
}

// Migration configures schema migration generation.
type Migration struct {
	// Target is the name of the registered schema metadata object that the
	// generate command diffs the live database against.
	Target string `yaml:"target"`

	// Path is the directory where generated migration source files are
	// written. Defaults to the migrations package directory.
	Path string `yaml:"path"`
}

// Reporting configures error reporting services.
type Reporting struct {
	Sentry struct {
		Enabled     bool   `yaml:"enabled"`
		DSN         string `yaml:"dsn"`
		Environment string `yaml:"environment"`
	} `yaml:"sentry"`
}

// Defaults applied after parsing and before env overrides are validated.
const (
	defaultDatabaseHost    = "localhost"
	defaultDatabasePort    = 5432
	defaultDatabaseSSLMode = "prefer"
	defaultMigrationTarget = "vault"
	defaultLogLevel        = "info"
	defaultLogOutput       = "stdout"
)

// Parse parses an input configuration yaml document into a Configuration
// object, applying environment variable overrides on top.
//
// Environment variables may be used to override configuration parameters,
// following the scheme below:
//
//	Configuration.Database.Host -> VAULTDB_DATABASE_HOST
//	Configuration.Log.Level -> VAULTDB_LOG_LEVEL
func Parse(rd io.Reader) (*Configuration, error) {
	in, err := ioutil.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	config := new(Configuration)
	if err := yaml.Unmarshal(in, config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := applyEnvOverrides(config, envPrefix); err != nil {
		return nil, err
	}

	if config.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported configuration version %q, expected %q", config.Version, CurrentVersion)
	}

	config.applyDefaults()

	return config, nil
}

func (config *Configuration) applyDefaults() {
	if config.Log.Level == "" {
		config.Log.Level = defaultLogLevel
	}
	if config.Log.Output == "" {
		config.Log.Output = defaultLogOutput
	}
	if config.Database.Host == "" {
		config.Database.Host = defaultDatabaseHost
	}
	if config.Database.Port == 0 {
		config.Database.Port = defaultDatabasePort
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = defaultDatabaseSSLMode
	}
	if config.Migration.Target == "" {
		config.Migration.Target = defaultMigrationTarget
	}
}
