package config

import "time"

// Config is the complete auditctl configuration. Values come from, lowest
// precedence first: built-in defaults, the YAML config file, AUDITCTL_*
// environment variables, then command-line flags.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Upload  UploadConfig  `mapstructure:"upload" yaml:"upload"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// APIConfig points auditctl at an Email Auditor deployment.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	Key     string `mapstructure:"key" yaml:"key"`
	// Session is the web session cookie, needed only by `auditctl key`.
	Session string `mapstructure:"session" yaml:"session"`
	HTTP2   bool   `mapstructure:"http2" yaml:"http2"`
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CAFile  string        `mapstructure:"ca_file" yaml:"ca_file"`
}

// JournalConfig locates the local record of audited files.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// WatchConfig tunes `auditctl watch`.
type WatchConfig struct {
	// Settle is how long a file must stay quiet before it is audited.
	Settle time.Duration `mapstructure:"settle" yaml:"settle"`
	// UsageInterval is the minimum gap between usage refreshes.
	UsageInterval time.Duration `mapstructure:"usage_interval" yaml:"usage_interval"`
}

// UploadConfig bounds files before they are sent.
type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size" yaml:"max_size"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Profile is "simple" (console) or "structured" (JSON to stderr).
	Profile string `mapstructure:"profile" yaml:"profile"`
}
