// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package config

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sigil-dev/supportbot/internal/index"
	"github.com/sigil-dev/supportbot/internal/retry"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
)

// EnvPrefix is prepended to every environment override, e.g.
// SUPPORTBOT_EMBEDDING_MODEL.
const EnvPrefix = "SUPPORTBOT"

// Config is the top-level supportbot configuration.
type Config struct {
	Artifacts ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	Corpus    CorpusConfig    `mapstructure:"corpus" yaml:"corpus"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	Bootstrap RetryConfig     `mapstructure:"bootstrap" yaml:"bootstrap"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Sessions  SessionsConfig  `mapstructure:"sessions" yaml:"sessions"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// ArtifactsConfig locates the knowledge-base artifacts.
type ArtifactsConfig struct {
	Dir    string       `mapstructure:"dir" yaml:"dir"`
	OnDisk bool         `mapstructure:"on_disk" yaml:"on_disk"`
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`
}

// RemoteConfig holds per-artifact download sources used when a file is
// missing locally.
type RemoteConfig struct {
	Entries string `mapstructure:"entries" yaml:"entries"`
	Index   string `mapstructure:"index" yaml:"index"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// CorpusConfig names the raw dataset used by the build command.
type CorpusConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
}

// EmbeddingConfig selects the embedding model used at build time.
type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"`
	Model     string        `mapstructure:"model" yaml:"model"`
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key,omitempty"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	Retry     RetryConfig   `mapstructure:"retry" yaml:"retry"`
}

// ModelID returns the persisted model identifier, "provider/model".
func (e EmbeddingConfig) ModelID() string {
	return e.Provider + "/" + e.Model
}

// RetrievalConfig controls query classification.
type RetrievalConfig struct {
	TopK          int     `mapstructure:"top_k" yaml:"top_k"`
	LowThreshold  float64 `mapstructure:"low_threshold" yaml:"low_threshold"`
	HighThreshold float64 `mapstructure:"high_threshold" yaml:"high_threshold"`
}

// RetryConfig is a backoff policy for network calls.
type RetryConfig struct {
	Attempts uint          `mapstructure:"attempts" yaml:"attempts"`
	Delay    time.Duration `mapstructure:"delay" yaml:"delay"`
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// Policy converts the configuration to a retry policy.
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{Attempts: r.Attempts, Delay: r.Delay, MaxDelay: r.MaxDelay}
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string          `mapstructure:"listen" yaml:"listen"`
	CORSOrigins []string        `mapstructure:"cors_origins" yaml:"cors_origins"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig limits API requests per client IP. Zero RPS disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" yaml:"rps"`
	Burst int     `mapstructure:"burst" yaml:"burst"`
}

// SessionsConfig controls chat sessions.
type SessionsConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.on_disk", false)
	v.SetDefault("artifacts.remote.entries", "")
	v.SetDefault("artifacts.remote.index", "")
	v.SetDefault("artifacts.remote.model", "")
	v.SetDefault("corpus.source", "")
	v.SetDefault("embedding.provider", "local")
	v.SetDefault("embedding.model", "hashing-384")
	v.SetDefault("embedding.endpoint", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.cache_ttl", "10m")
	v.SetDefault("embedding.retry.attempts", 3)
	v.SetDefault("embedding.retry.delay", "200ms")
	v.SetDefault("embedding.retry.max_delay", "5s")
	v.SetDefault("retrieval.top_k", 3)
	v.SetDefault("retrieval.low_threshold", 0.3)
	v.SetDefault("retrieval.high_threshold", 0.7)
	v.SetDefault("bootstrap.attempts", 3)
	v.SetDefault("bootstrap.delay", "500ms")
	v.SetDefault("bootstrap.max_delay", "10s")
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.rate_limit.rps", 0)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("sessions.ttl", "30m")
}

// SetupEnv enables SUPPORTBOT_* environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile reads path into v, or when path is empty auto-discovers
// supportbot.yaml in the working directory, ~/.config/supportbot and
// /etc/supportbot. It returns the file used, or "" when none was found.
func ReadFile(v *viper.Viper, path string) (string, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return "", boterr.Errorf(boterr.CodeConfigLoadReadFailure, "reading config %s: %w", path, err)
		}
		return v.ConfigFileUsed(), nil
	}

	// No SetConfigType: with it, viper also tries the bare name, which
	// collides with a ./supportbot binary in the working directory.
	v.SetConfigName("supportbot")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/supportbot")
	v.AddConfigPath("/etc/supportbot")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		return "", boterr.Errorf(boterr.CodeConfigParseInvalidFormat, "reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, boterr.Errorf(boterr.CodeConfigParseInvalidFormat, "unmarshalling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, boterr.Errorf(boterr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}
	return &cfg, nil
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SUPPORTBOT_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		if _, err := ReadFile(v, path); err != nil {
			return nil, err
		}
	}
	return FromViper(v)
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateArtifacts()...)
	errs = append(errs, c.validateEmbedding()...)
	errs = append(errs, c.validateRetrieval()...)
	errs = append(errs, validateRetry("bootstrap", c.Bootstrap)...)
	errs = append(errs, c.validateServer()...)

	if c.Sessions.TTL <= 0 {
		errs = append(errs, invalid("sessions.ttl must be greater than 0, got %s", c.Sessions.TTL))
	}

	return errs
}

func (c *Config) validateArtifacts() []error {
	var errs []error

	if strings.TrimSpace(c.Artifacts.Dir) == "" {
		errs = append(errs, invalid("artifacts.dir must not be empty"))
	}

	remotes := map[string]string{
		"artifacts.remote.entries": c.Artifacts.Remote.Entries,
		"artifacts.remote.index":   c.Artifacts.Remote.Index,
		"artifacts.remote.model":   c.Artifacts.Remote.Model,
	}
	for _, key := range []string{"artifacts.remote.entries", "artifacts.remote.index", "artifacts.remote.model"} {
		if src := remotes[key]; src != "" && !validSource(src) {
			errs = append(errs, invalid("%s must be an http(s) URL, file:// URL or path, got %q", key, src))
		}
	}

	if src := c.Corpus.Source; src != "" && !validSource(src) {
		errs = append(errs, invalid("corpus.source must be an http(s) URL, file:// URL or path, got %q", src))
	}

	return errs
}

func (c *Config) validateEmbedding() []error {
	var errs []error
	e := c.Embedding

	if e.Provider == "" {
		errs = append(errs, invalid("embedding.provider must not be empty"))
	} else if strings.Contains(e.Provider, "/") {
		errs = append(errs, invalid("embedding.provider must not contain '/', got %q", e.Provider))
	}
	if e.Model == "" {
		errs = append(errs, invalid("embedding.model must not be empty"))
	}
	if e.BatchSize <= 0 {
		errs = append(errs, invalid("embedding.batch_size must be greater than 0, got %d", e.BatchSize))
	}
	if e.Timeout <= 0 {
		errs = append(errs, invalid("embedding.timeout must be greater than 0, got %s", e.Timeout))
	}
	if e.CacheTTL < 0 {
		errs = append(errs, invalid("embedding.cache_ttl must not be negative, got %s", e.CacheTTL))
	}
	if e.Endpoint != "" {
		if u, err := url.Parse(e.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, invalid("embedding.endpoint must be an http(s) URL, got %q", e.Endpoint))
		}
	}
	errs = append(errs, validateRetry("embedding.retry", e.Retry)...)

	return errs
}

func (c *Config) validateRetrieval() []error {
	var errs []error
	r := c.Retrieval

	if r.TopK <= 0 || r.TopK > index.MaxK {
		errs = append(errs, invalid("retrieval.top_k must be between 1 and %d, got %d", index.MaxK, r.TopK))
	}
	if r.LowThreshold < 0 || r.HighThreshold > 1 || r.LowThreshold > r.HighThreshold {
		errs = append(errs, invalid(
			"retrieval thresholds must satisfy 0 <= low_threshold <= high_threshold <= 1, got %g and %g",
			r.LowThreshold, r.HighThreshold,
		))
	}

	return errs
}

func validateRetry(prefix string, r RetryConfig) []error {
	var errs []error

	if r.Attempts == 0 {
		errs = append(errs, invalid("%s.attempts must be greater than 0", prefix))
	}
	if r.Delay < 0 {
		errs = append(errs, invalid("%s.delay must not be negative, got %s", prefix, r.Delay))
	}
	if r.MaxDelay < r.Delay {
		errs = append(errs, invalid("%s.max_delay must be at least %s.delay, got %s", prefix, prefix, r.MaxDelay))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if rl := c.Server.RateLimit; rl.RPS < 0 {
		errs = append(errs, invalid("server.rate_limit.rps must not be negative, got %g", rl.RPS))
	} else if rl.RPS > 0 && rl.Burst <= 0 {
		errs = append(errs, invalid("server.rate_limit.burst must be greater than 0 when rps is set, got %d", rl.Burst))
	}

	if c.Server.Listen == "" {
		return append(errs, invalid("server.listen must not be empty"))
	}

	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return append(errs, boterr.Errorf(boterr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q: %w", c.Server.Listen, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, invalid("server.listen port must be a number, got %q", portStr))
	} else if port < 0 || port > 65535 {
		errs = append(errs, invalid("server.listen port must be between 0 and 65535, got %d", port))
	}

	return errs
}

func validSource(src string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "http", "https":
		return u.Host != ""
	case "file", "":
		return true
	default:
		// Windows drive letters parse as a one-letter scheme.
		return len(u.Scheme) == 1
	}
}

func invalid(format string, args ...any) error {
	return boterr.Errorf(boterr.CodeConfigValidateInvalidValue, "config: "+format, args...)
}
