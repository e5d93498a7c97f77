// Package config loads auditctl configuration through viper and decodes it
// into typed structs.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// AppName names the config and data directories.
	AppName = "auditctl"
	// EnvPrefix prefixes environment overrides, e.g. AUDITCTL_API_KEY.
	EnvPrefix = "AUDITCTL"

	DefaultBaseURL       = "http://localhost:5000"
	DefaultSettle        = 500 * time.Millisecond
	DefaultUsageInterval = 10 * time.Second
	DefaultMaxUploadSize = 16 * 1024 * 1024
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    DefaultJournalPath(),
		},
		Watch: WatchConfig{
			Settle:        DefaultSettle,
			UsageInterval: DefaultUsageInterval,
		},
		Upload: UploadConfig{
			MaxSize: DefaultMaxUploadSize,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Profile: "simple",
		},
	}
}

// SetDefaults registers Defaults on v so every key is known to viper and
// therefore reachable from the environment.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.key", d.API.Key)
	v.SetDefault("api.session", d.API.Session)
	v.SetDefault("api.http2", d.API.HTTP2)
	v.SetDefault("api.timeout", "0s")
	v.SetDefault("api.ca_file", d.API.CAFile)

	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)

	v.SetDefault("watch.settle", d.Watch.Settle.String())
	v.SetDefault("watch.usage_interval", d.Watch.UsageInterval.String())

	v.SetDefault("upload.max_size", d.Upload.MaxSize)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.profile", d.Logging.Profile)
}

// ConfigureEnv maps AUDITCTL_SECTION_KEY variables onto section.key.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by v and validates them.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, fmt.Errorf("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Journal.Path) == "" {
		cfg.Journal.Path = DefaultJournalPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no command can work with.
func (c *Config) Validate() error {
	base := strings.TrimSpace(c.API.BaseURL)
	if base == "" {
		return fmt.Errorf("api.base_url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL: %q", base)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("api.base_url scheme must be http or https: %q", base)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.Watch.Settle <= 0 {
		return fmt.Errorf("watch.settle must be positive")
	}
	if c.Watch.UsageInterval <= 0 {
		return fmt.Errorf("watch.usage_interval must be positive")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}
	return nil
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if configDir == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultJournalPath returns the XDG-compliant path to the journal database.
func DefaultJournalPath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if dataDir == "" {
		return filepath.Join(".", AppName+".db")
	}
	return filepath.Join(dataDir, AppName+".db")
}

// WriteDefaults writes the default configuration as YAML to path. It refuses
// to overwrite an existing file unless force is set.
func WriteDefaults(path string, force bool) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	data, err := Encode(Defaults())
	if err != nil {
		return err
	}

	// #nosec G301 -- config directories use 0755 like other XDG dirs
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Encode renders c as YAML in the config file layout.
func Encode(c Config) ([]byte, error) {
	data, err := yaml.Marshal(newFileConfig(c))
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// Redacted returns a copy of c with credentials masked.
func (c Config) Redacted() Config {
	if c.API.Key != "" {
		c.API.Key = "********"
	}
	if c.API.Session != "" {
		c.API.Session = "********"
	}
	return c
}

// fileConfig mirrors Config with durations as strings so the YAML reads
// "500ms" rather than nanoseconds.
type fileConfig struct {
	API struct {
		BaseURL string `yaml:"base_url"`
		Key     string `yaml:"key"`
		Session string `yaml:"session"`
		HTTP2   bool   `yaml:"http2"`
		Timeout string `yaml:"timeout"`
		CAFile  string `yaml:"ca_file"`
	} `yaml:"api"`
	Journal JournalConfig `yaml:"journal"`
	Watch   struct {
		Settle        string `yaml:"settle"`
		UsageInterval string `yaml:"usage_interval"`
	} `yaml:"watch"`
	Upload  UploadConfig  `yaml:"upload"`
	Logging LoggingConfig `yaml:"logging"`
}

func newFileConfig(c Config) fileConfig {
	var f fileConfig
	f.API.BaseURL = c.API.BaseURL
	f.API.Key = c.API.Key
	f.API.Session = c.API.Session
	f.API.HTTP2 = c.API.HTTP2
	f.API.Timeout = c.API.Timeout.String()
	f.API.CAFile = c.API.CAFile
	f.Journal = c.Journal
	f.Watch.Settle = c.Watch.Settle.String()
	f.Watch.UsageInterval = c.Watch.UsageInterval.String()
	f.Upload = c.Upload
	f.Logging = c.Logging
	return f
}
