// Package config loads the wayfarer configuration: built-in defaults, then an
// optional YAML file, then WAYFARER_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/wayfarer/internal/logging"
	"github.com/aretw0/wayfarer/pkg/domain"
	"github.com/aretw0/wayfarer/pkg/router"
	"github.com/aretw0/wayfarer/pkg/synth"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WAYFARER_GATEWAY_BACKEND.
const EnvPrefix = "WAYFARER"

// Gateway backends.
const (
	BackendOllama    = "ollama"
	BackendOpenAI    = "openai"
	BackendAnthropic = "anthropic"
	BackendOffline   = "offline"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreFile   = "file"
)

type Config struct {
	Log      LogConfig                    `mapstructure:"log"`
	Registry RegistryConfig               `mapstructure:"registry"`
	Router   RouterConfig                 `mapstructure:"router"`
	Profiles map[string]domain.SLAProfile `mapstructure:"profiles"`
	Engine   EngineConfig                 `mapstructure:"engine"`
	Gateway  GatewayConfig                `mapstructure:"gateway"`
	Store    StoreConfig                  `mapstructure:"store"`
	Synth    SynthConfig                  `mapstructure:"synth"`
	HTTP     HTTPConfig                   `mapstructure:"http"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// RegistryConfig selects the capability catalogue. With neither field set the
// embedded travel catalogue is used.
type RegistryConfig struct {
	Path string `mapstructure:"path"`
	Dir  string `mapstructure:"dir"`
}

type RouterConfig struct {
	router.Config `mapstructure:",squash"`
	CacheSize     int `mapstructure:"cache_size"`
}

type EngineConfig struct {
	MaxParallel       int  `mapstructure:"max_parallel"`
	SerializeSessions bool `mapstructure:"serialize_sessions"`
	Refinement        bool `mapstructure:"refinement"`
}

type GatewayConfig struct {
	Backend         string `mapstructure:"backend"`
	Model           string `mapstructure:"model"`
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	Retries         int    `mapstructure:"retries"`
	FallbackBackend string `mapstructure:"fallback_backend"`
}

type StoreConfig struct {
	Backend string        `mapstructure:"backend"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Dir     string        `mapstructure:"dir"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Privacy PrivacyConfig `mapstructure:"privacy"`
}

// PrivacyConfig controls what reaches the session store.
// Keys are base64-encoded 32 byte AES keys.
type PrivacyConfig struct {
	EncryptionKey    string   `mapstructure:"encryption_key"`
	FallbackKeys     []string `mapstructure:"fallback_keys"`
	MaskKeys         []string `mapstructure:"mask_keys"`
	RedactUtterances bool     `mapstructure:"redact_utterances"`
}

// DecodeKeys returns the active and fallback encryption keys.
// A nil active key means encryption is off.
func (p PrivacyConfig) DecodeKeys() ([]byte, [][]byte, error) {
	if p.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err := decodeKey("store.privacy.encryption_key", p.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	var fallback [][]byte
	for i, k := range p.FallbackKeys {
		key, err := decodeKey(fmt.Sprintf("store.privacy.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(field, encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type SynthConfig struct {
	MaxReplyChars int    `mapstructure:"max_reply_chars"`
	Separator     string `mapstructure:"separator"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads the configuration. An empty path searches for wayfarer.yaml in
// the working directory and in $HOME/.config/wayfarer; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("wayfarer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/wayfarer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for name, p := range cfg.Profiles {
		if p.Name == "" {
			p.Name = name
			cfg.Profiles[name] = p
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late, when the engine is built.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Registry.Path != "" && c.Registry.Dir != "" {
		return fmt.Errorf("registry.path and registry.dir are mutually exclusive")
	}
	switch c.Gateway.Backend {
	case BackendOllama, BackendOpenAI, BackendAnthropic, BackendOffline:
	default:
		return fmt.Errorf("unknown gateway.backend %q", c.Gateway.Backend)
	}
	switch c.Gateway.FallbackBackend {
	case "", BackendOllama, BackendOpenAI, BackendAnthropic, BackendOffline:
	default:
		return fmt.Errorf("unknown gateway.fallback_backend %q", c.Gateway.FallbackBackend)
	}
	switch c.Store.Backend {
	case StoreMemory, StoreRedis, StoreFile:
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Gateway.Retries < 0 {
		return fmt.Errorf("gateway.retries must not be negative")
	}
	if _, _, err := c.Store.Privacy.DecodeKeys(); err != nil {
		return err
	}
	return nil
}

// ProfileList returns the configured SLA profiles.
func (c *Config) ProfileList() []domain.SLAProfile {
	out := make([]domain.SLAProfile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		out = append(out, p)
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("registry.path", "")
	v.SetDefault("registry.dir", "")

	rc := router.DefaultConfig()
	v.SetDefault("router.exact_weight", rc.ExactWeight)
	v.SetDefault("router.partial_weight", rc.PartialWeight)
	v.SetDefault("router.pattern_weight", rc.PatternWeight)
	v.SetDefault("router.continuity_bonus", rc.ContinuityBonus)
	v.SetDefault("router.min_relevance", rc.MinRelevance)
	v.SetDefault("router.cache_size", router.DefaultCacheSize)

	for name, p := range domain.DefaultProfiles() {
		prefix := "profiles." + name + "."
		v.SetDefault(prefix+"name", p.Name)
		v.SetDefault(prefix+"limit", p.Limit)
		v.SetDefault(prefix+"budget", p.Budget)
		v.SetDefault(prefix+"temperature", p.Temperature)
		v.SetDefault(prefix+"max_tokens", p.MaxTokens)
		v.SetDefault(prefix+"expand_hints", p.ExpandHints)
		v.SetDefault(prefix+"skip_session_read", p.SkipSessionRead)
	}

	v.SetDefault("engine.max_parallel", 0)
	v.SetDefault("engine.serialize_sessions", false)
	v.SetDefault("engine.refinement", false)

	v.SetDefault("gateway.backend", BackendOllama)
	v.SetDefault("gateway.model", "")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.retries", 1)
	v.SetDefault("gateway.fallback_backend", "")

	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.redis.prefix", "wayfarer:")
	v.SetDefault("store.redis.ttl", 24*time.Hour)
	v.SetDefault("store.dir", ".wayfarer/sessions")
	v.SetDefault("store.lock_ttl", 30*time.Second)
	v.SetDefault("store.privacy.encryption_key", "")
	v.SetDefault("store.privacy.fallback_keys", []string{})
	v.SetDefault("store.privacy.mask_keys", []string{})
	v.SetDefault("store.privacy.redact_utterances", false)

	v.SetDefault("synth.max_reply_chars", synth.DefaultMaxChars)
	v.SetDefault("synth.separator", synth.DefaultSeparator)

	v.SetDefault("http.addr", ":8080")
}
