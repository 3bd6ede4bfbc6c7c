// Package config loads the toolchat service configuration. The file is YAML
// with environment-variable expansion, read once at startup.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/toolchat/tools"
	"github.com/effective-security/x/configloader"
	"github.com/effective-security/x/values"
)

// DefaultListen is the default server address.
const DefaultListen = ":8080"

// DefaultCacheTTL is the weather cache entry lifetime when not configured.
const DefaultCacheTTL = 10 * time.Minute

// Config is the process configuration.
type Config struct {
	// Listen specifies the address the HTTP server binds to.
	Listen string `json:"listen" yaml:"listen"`
	// Inference configures the language-model endpoint.
	Inference InferenceConfig `json:"inference" yaml:"inference"`
	// Tools lists the invocable tool endpoints. When empty, the built-in
	// weather and math services mounted on this server are registered.
	Tools []tools.Descriptor `json:"tools,omitempty" yaml:"tools,omitempty"`
	// Cache configures the optional Redis cache used by the weather tool
	// and the event broadcast channel.
	Cache CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
	// WeatherUpstream is an optional weather API URL for the built-in
	// weather service; empty selects the deterministic synthesizer.
	WeatherUpstream string `json:"weather_upstream,omitempty" yaml:"weather_upstream,omitempty"`
}

// InferenceConfig holds the inference service credentials and model.
type InferenceConfig struct {
	// Token is required; missing token is fatal at startup.
	Token string `json:"token" yaml:"token"`
	// Model names the chat model; empty selects the client default.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// BaseURL overrides the API endpoint for compatible gateways.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// CacheConfig holds the Redis connection parameters. An empty Addr disables
// the cache; the service degrades gracefully without it.
type CacheConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// TTL is the cache entry lifetime, e.g. "10m".
	TTL string `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	// EventChannel, when set, broadcasts events to this Redis channel.
	EventChannel string `json:"event_channel,omitempty" yaml:"event_channel,omitempty"`
}

// Enabled reports whether a cache backend is configured.
func (c *CacheConfig) Enabled() bool {
	return c.Addr != ""
}

// EntryTTL returns the configured TTL, or the default when unset or invalid.
func (c *CacheConfig) EntryTTL() time.Duration {
	if c.TTL != "" {
		if d, err := time.ParseDuration(c.TTL); err == nil && d > 0 {
			return d
		}
	}
	return DefaultCacheTTL
}

// Load reads the config from file. An empty file name returns the defaults.
func Load(file string) (*Config, error) {
	cfg := new(Config)
	if file != "" {
		err := configloader.UnmarshalAndExpand(file, cfg)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to load config")
		}
	}

	cfg.Listen = values.StringsCoalesce(cfg.Listen, DefaultListen)
	if len(cfg.Tools) == 0 {
		cfg.Tools = DefaultTools("http://localhost" + cfg.Listen)
	}
	return cfg, nil
}

// Validate enforces the required settings.
func (c *Config) Validate() error {
	if c.Inference.Token == "" {
		return errors.New("inference.token is required")
	}
	for _, d := range c.Tools {
		if d.Name == "" || d.Endpoint == "" {
			return errors.Newf("tool entry must have name and endpoint: %+v", d)
		}
	}
	return nil
}

// DefaultTools returns the descriptors for the built-in tool services
// mounted on this server.
func DefaultTools(baseURL string) []tools.Descriptor {
	return []tools.Descriptor{
		{
			Name:        "weather.current",
			Endpoint:    baseURL + "/tools/weather",
			Description: `returns the current weather for a city; args: {"city": "<city name>"}`,
		},
		{
			Name:        "math.calculate",
			Endpoint:    baseURL + "/tools/math",
			Description: `evaluates an arithmetic expression; args: {"expression": "<expression>"}`,
		},
	}
}
