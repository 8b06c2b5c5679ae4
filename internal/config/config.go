package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultRequestTimeout = 5 * time.Minute
	defaultRateLimitMax   = 50
	defaultRateLimitWin   = 60 * time.Second
	defaultProfilesPath   = "profiles.yaml"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Profiles  ProfilesConfig  `yaml:"profiles"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
	// RequestTimeout caps the wall-clock duration of a chat request,
	// including the streamed response. Absent means the default; an
	// explicit zero disables the cap.
	RequestTimeout *Duration `yaml:"request_timeout"`
}

// Timeout returns the effective request wall-clock cap. Zero means no cap.
func (s ServerConfig) Timeout() time.Duration {
	if s.RequestTimeout == nil {
		return defaultRequestTimeout
	}
	return time.Duration(*s.RequestTimeout)
}

// RateLimitConfig bounds request throughput per caller and vendor.
type RateLimitConfig struct {
	MaxRequests int      `yaml:"max_requests"`
	Window      Duration `yaml:"window"`
}

// ProfilesConfig locates the caller profile store.
type ProfilesConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig catalogues configured upstream vendors. A nil section
// means the vendor is not served by this gateway.
type ProvidersConfig struct {
	OpenAI     *ProviderConfig `yaml:"openai"`
	Groq       *ProviderConfig `yaml:"groq"`
	OpenRouter *ProviderConfig `yaml:"openrouter"`
	Perplexity *ProviderConfig `yaml:"perplexity"`
	Anthropic  *ProviderConfig `yaml:"anthropic"`
	Google     *ProviderConfig `yaml:"google"`
}

// Configured returns the provider sections that are present, keyed by
// vendor name.
func (p ProvidersConfig) Configured() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig)
	sections := map[string]*ProviderConfig{
		"openai":     p.OpenAI,
		"groq":       p.Groq,
		"openrouter": p.OpenRouter,
		"perplexity": p.Perplexity,
		"anthropic":  p.Anthropic,
		"google":     p.Google,
	}
	for name, section := range sections {
		if section != nil {
			out[name] = *section
		}
	}
	return out
}

// ProviderConfig captures routing info for one vendor. Credentials are
// deliberately absent: API keys live in caller profiles, never in gateway
// configuration.
type ProviderConfig struct {
	BaseURL string  `yaml:"base_url"`
	Headers Headers `yaml:"headers"`
}

// Headers contains additional HTTP headers to send with a provider request.
type Headers map[string]string

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Load reads YAML configuration from disk, fills defaults, and validates
// the result.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.RateLimit.MaxRequests == 0 {
		c.RateLimit.MaxRequests = defaultRateLimitMax
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = Duration(defaultRateLimitWin)
	}
	if strings.TrimSpace(c.Profiles.Path) == "" {
		c.Profiles.Path = defaultProfilesPath
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.Timeout() < 0 {
		return fmt.Errorf("server.request_timeout must not be negative, got %s", c.Server.Timeout())
	}
	if c.RateLimit.MaxRequests < 1 {
		return fmt.Errorf("rate_limit.max_requests must be at least 1, got %d", c.RateLimit.MaxRequests)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", time.Duration(c.RateLimit.Window))
	}
	if strings.TrimSpace(c.Profiles.Path) == "" {
		return fmt.Errorf("profiles.path must be provided")
	}

	configured := c.Providers.Configured()
	if len(configured) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for name, provider := range configured {
		if err := validateProvider(name, provider); err != nil {
			return err
		}
	}

	return nil
}

func validateProvider(name string, provider ProviderConfig) error {
	if strings.TrimSpace(provider.BaseURL) == "" {
		return fmt.Errorf("provider %s: base_url must be provided", name)
	}

	for headerKey := range provider.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("provider %s: header %q is not a valid canonical HTTP header", name, headerKey)
		}
	}

	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}
