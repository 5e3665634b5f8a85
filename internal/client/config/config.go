package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/flagx"
	"github.com/gookit/validate"
	"github.com/spf13/viper"
)

const envPrefix = "VAXTRACK"

// Config holds runtime settings for the vaxtrack client.
type Config struct {
	CacheDSN  string `mapstructure:"cache_dsn" validate:"required"`
	RemoteDSN string `mapstructure:"remote_dsn"`
	// CachePassphrase encrypts cached values at rest when set.
	CachePassphrase string `mapstructure:"cache_passphrase"`

	// Token is a signed session token; when empty UserID is used as is.
	Token       string `mapstructure:"token"`
	TokenSecret string `mapstructure:"token_secret"`
	UserID      string `mapstructure:"user_id"`

	PushEndpoint  string `mapstructure:"push_endpoint" validate:"fullUrl"`
	PushAPIKey    string `mapstructure:"push_api_key"`
	PushQueueSize int    `mapstructure:"push_queue_size" validate:"min:1"`
	DeviceToken   string `mapstructure:"device_token"`

	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval" validate:"required|min:1"`
	SyncInterval        time.Duration `mapstructure:"sync_interval" validate:"required|min:1"`
	PollInterval        time.Duration `mapstructure:"poll_interval" validate:"required|min:1"`

	MirrorSizeMB   int    `mapstructure:"mirror_size_mb" validate:"min:0"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsAddress string `mapstructure:"metrics_address"`
	LogLevel       string `mapstructure:"log_level" validate:"required|in:trace,debug,info,warn,error"`

	// TimeZone is the device location calendar dates are read in: an IANA
	// name, "Local" or "UTC".
	TimeZone string `mapstructure:"time_zone"`
}

// Defaults returns the built-in settings.
func Defaults() map[string]any {
	return map[string]any{
		"cache_dsn":             "vaxtrack.db",
		"remote_dsn":            "",
		"cache_passphrase":      "",
		"token":                 "",
		"token_secret":          "",
		"user_id":               "",
		"push_endpoint":         "",
		"push_api_key":          "",
		"push_queue_size":       64,
		"device_token":          "",
		"online_check_interval": 3 * time.Second,
		"sync_interval":         5 * time.Minute,
		"poll_interval":         2 * time.Second,
		"mirror_size_mb":        8,
		"metrics_enabled":       false,
		"metrics_address":       ":9100",
		"log_level":             "info",
		"time_zone":             "Local",
	}
}

// LoadConfig builds a Config from defaults, the optional config file, the
// environment and the process flags, in that order.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) (*Config, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := flagx.ConfigPath(args); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field rules and the identity settings.
func (c *Config) Validate() error {
	vd := validate.Struct(c)
	if !vd.Validate() {
		return fmt.Errorf("invalid config: %w", vd.Errors)
	}
	if c.Token != "" && c.TokenSecret == "" {
		return fmt.Errorf("invalid config: token_secret is required with token")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves TimeZone. An empty TimeZone means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time_zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}
