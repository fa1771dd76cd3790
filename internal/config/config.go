// Package config loads oasgate settings from defaults, an optional YAML file,
// OASGATE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/erraggy/oasgate/client"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/oaserrors"
	"github.com/erraggy/oasgate/schemaindex"
)

// EnvPrefix prefixes every environment variable, e.g. OASGATE_SERVER_ADDR.
const EnvPrefix = "OASGATE"

// ContentTypeFirstAllowed selects client.FirstAllowedContentType for
// client.content_type; any other value is used as a fixed media type.
const ContentTypeFirstAllowed = "first-allowed"

// Config holds all configuration for oasgate.
type Config struct {
	Contract   string           `mapstructure:"contract"`
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Client     ClientConfig     `mapstructure:"client"`
	Validation ValidationConfig `mapstructure:"validation"`
	MCP        MCPConfig        `mapstructure:"mcp"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ClientConfig holds settings for the call command.
type ClientConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ContentType string        `mapstructure:"content_type"`
}

// ValidationConfig holds index and validator settings.
type ValidationConfig struct {
	MaxBodySize           int64  `mapstructure:"max_body_size"`
	MatchPolicy           string `mapstructure:"match_policy"`
	LegacyNumericCoercion bool   `mapstructure:"legacy_numeric_coercion"`
}

// MCPConfig holds settings for the MCP tool server. Tools may name their own
// contract; loaded contracts are cached per session.
type MCPConfig struct {
	CacheEnabled    bool          `mapstructure:"cache_enabled"`
	CacheMaxSize    int           `mapstructure:"cache_max_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	MaxInlineSize   int64         `mapstructure:"max_inline_size"`
	AllowPrivateIPs bool          `mapstructure:"allow_private_ips"`
	ListLimit       int           `mapstructure:"list_limit"`
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("contract", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.content_type", "application/json")
	v.SetDefault("validation.max_body_size", httpvalidator.DefaultMaxBodySize)
	v.SetDefault("validation.match_policy", schemaindex.MatchDeclarationOrder.String())
	v.SetDefault("validation.legacy_numeric_coercion", false)
	v.SetDefault("mcp.cache_enabled", true)
	v.SetDefault("mcp.cache_max_size", 10)
	v.SetDefault("mcp.cache_ttl", 15*time.Minute)
	v.SetDefault("mcp.max_inline_size", 10<<20)
	v.SetDefault("mcp.allow_private_ips", false)
	v.SetDefault("mcp.list_limit", 100)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(New())
	if err != nil {
		// defaults always decode
		panic(err)
	}
	return cfg
}

// Load reads configFile, or ./oasgate.yaml when configFile is empty and the
// file exists, into v and returns the validated configuration.
// Precedence (highest to lowest): bound flags, environment, file, defaults.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("oasgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, &oaserrors.ConfigError{Option: "config", Value: v.ConfigFileUsed(), Message: "cannot read config file", Cause: err}
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &oaserrors.ConfigError{Message: "cannot decode configuration", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags binds configuration keys to flags of fs. Keys whose flag does
// not exist are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keyToFlag map[string]string) error {
	for key, name := range keyToFlag {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind %s to --%s: %w", key, name, err)
		}
	}
	return nil
}

// Validate checks enumerated and ranged settings.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return &oaserrors.ConfigError{Option: "log.level", Value: c.Log.Level, Message: "must be one of debug, info, warn, error"}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return &oaserrors.ConfigError{Option: "log.format", Value: c.Log.Format, Message: "must be text or json"}
	}
	if _, err := schemaindex.ParseMatchPolicy(c.Validation.MatchPolicy); err != nil {
		return &oaserrors.ConfigError{Option: "validation.match_policy", Value: c.Validation.MatchPolicy, Cause: err}
	}
	if c.Validation.MaxBodySize <= 0 {
		return &oaserrors.ConfigError{Option: "validation.max_body_size", Value: c.Validation.MaxBodySize, Message: "must be positive"}
	}
	if c.Server.ShutdownTimeout < 0 {
		return &oaserrors.ConfigError{Option: "server.shutdown_timeout", Value: c.Server.ShutdownTimeout, Message: "cannot be negative"}
	}
	if c.Client.Timeout < 0 {
		return &oaserrors.ConfigError{Option: "client.timeout", Value: c.Client.Timeout, Message: "cannot be negative"}
	}
	if c.MCP.CacheMaxSize <= 0 {
		return &oaserrors.ConfigError{Option: "mcp.cache_max_size", Value: c.MCP.CacheMaxSize, Message: "must be positive"}
	}
	if c.MCP.MaxInlineSize <= 0 {
		return &oaserrors.ConfigError{Option: "mcp.max_inline_size", Value: c.MCP.MaxInlineSize, Message: "must be positive"}
	}
	if c.MCP.ListLimit <= 0 {
		return &oaserrors.ConfigError{Option: "mcp.list_limit", Value: c.MCP.ListLimit, Message: "must be positive"}
	}
	return nil
}

// MatchPolicy returns the parsed validation.match_policy.
func (c *Config) MatchPolicy() schemaindex.MatchPolicy {
	p, _ := schemaindex.ParseMatchPolicy(c.Validation.MatchPolicy)
	return p
}

// ContentTypePolicy returns the client policy selected by client.content_type.
func (c *Config) ContentTypePolicy() client.ContentTypePolicy {
	switch c.Client.ContentType {
	case ContentTypeFirstAllowed:
		return client.FirstAllowedContentType{}
	case "":
		return client.FixedContentType("application/json")
	}
	return client.FixedContentType(c.Client.ContentType)
}

// ValidatorOptions returns the httpvalidator options the configuration implies.
func (c *Config) ValidatorOptions(logger contract.Logger) []httpvalidator.Option {
	return []httpvalidator.Option{
		httpvalidator.WithLogger(logger),
		httpvalidator.WithMaxBodySize(c.Validation.MaxBodySize),
		httpvalidator.WithLegacyNumericCoercion(c.Validation.LegacyNumericCoercion),
	}
}

// NewLogger builds the slog-backed logger described by the log settings.
func (c *Config) NewLogger(w io.Writer) contract.Logger {
	level, _ := parseLevel(c.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return contract.NewSlogAdapter(slog.New(h))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
