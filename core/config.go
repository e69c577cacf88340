package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	PhoneFormatInternational = "international"
	PhoneFormatNational      = "national"
	PhoneFormatRaw           = "raw"
)

type APIConfig struct {
	Namespace     string `koanf:"namespace" mapstructure:"namespace"`
	KeyHeader     string `koanf:"key_header" mapstructure:"key_header"`
	PluginVersion string `koanf:"plugin_version" mapstructure:"plugin_version"`
	SiteURL       string `koanf:"site_url" mapstructure:"site_url"`
}

type RateLimitConfig struct {
	Enabled bool          `koanf:"enabled" mapstructure:"enabled"`
	Limit   int           `koanf:"limit" mapstructure:"limit"`
	Window  time.Duration `koanf:"window" mapstructure:"window"`
}

type CacheConfig struct {
	TTL        time.Duration `koanf:"ttl" mapstructure:"ttl"`
	MaxEntries int           `koanf:"max_entries" mapstructure:"max_entries"`
}

type PhoneConfig struct {
	Format             string `koanf:"format" mapstructure:"format"`
	DefaultCountryCode string `koanf:"default_country_code" mapstructure:"default_country_code"`
	RequireCountryCode bool   `koanf:"require_country_code" mapstructure:"require_country_code"`
}

type WebhookConfig struct {
	URL           string          `koanf:"url" mapstructure:"url"`
	EnabledEvents map[string]bool `koanf:"enabled_events" mapstructure:"enabled_events"`
	Timeout       time.Duration   `koanf:"timeout" mapstructure:"timeout"`
	Async         bool            `koanf:"async" mapstructure:"async"`
	QueueSize     int             `koanf:"queue_size" mapstructure:"queue_size"`
}

// Enabled reports whether deliveries for kind are switched on.
func (c WebhookConfig) Enabled(kind EventKind) bool {
	if len(c.EnabledEvents) == 0 {
		return false
	}
	return c.EnabledEvents[string(kind)]
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins" mapstructure:"allowed_origins"`
}

type RetentionConfig struct {
	DeliveryLogMaxAge time.Duration `koanf:"delivery_log_max_age" mapstructure:"delivery_log_max_age"`
	SweepInterval     time.Duration `koanf:"sweep_interval" mapstructure:"sweep_interval"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	API         APIConfig       `koanf:"api" mapstructure:"api"`
	RateLimit   RateLimitConfig `koanf:"rate_limit" mapstructure:"rate_limit"`
	Cache       CacheConfig     `koanf:"cache" mapstructure:"cache"`
	Phone       PhoneConfig     `koanf:"phone" mapstructure:"phone"`
	Webhook     WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
	CORS        CORSConfig      `koanf:"cors" mapstructure:"cors"`
	Retention   RetentionConfig `koanf:"retention" mapstructure:"retention"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "crmsync",
		API: APIConfig{
			Namespace:     "nextjs-groundhogg/v1",
			KeyHeader:     "X-GH-API-KEY",
			PluginVersion: "0.1.0-beta",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Limit:   60,
			Window:  time.Minute,
		},
		Cache: CacheConfig{
			TTL:        300 * time.Second,
			MaxEntries: 1000,
		},
		Phone: PhoneConfig{
			Format:             PhoneFormatInternational,
			DefaultCountryCode: "1",
			RequireCountryCode: true,
		},
		Webhook: WebhookConfig{
			EnabledEvents: defaultEnabledEvents(),
			Timeout:       5 * time.Second,
			QueueSize:     256,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Retention: RetentionConfig{
			DeliveryLogMaxAge: 30 * 24 * time.Hour,
			SweepInterval:     24 * time.Hour,
		},
	}
}

func defaultEnabledEvents() map[string]bool {
	out := make(map[string]bool, len(AllEventKinds()))
	for _, kind := range AllEventKinds() {
		out[string(kind)] = true
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.API.KeyHeader) == "" {
		return fmt.Errorf("core: api.key_header is required")
	}
	if c.RateLimit.Enabled && c.RateLimit.Limit <= 0 {
		return fmt.Errorf("core: rate_limit.limit must be positive when enabled")
	}
	if c.RateLimit.Window < 0 {
		return fmt.Errorf("core: rate_limit.window must not be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("core: cache.ttl must not be negative")
	}
	switch strings.TrimSpace(c.Phone.Format) {
	case PhoneFormatInternational, PhoneFormatNational, PhoneFormatRaw:
	default:
		return fmt.Errorf("core: phone.format %q is invalid", c.Phone.Format)
	}
	for _, r := range c.Phone.DefaultCountryCode {
		if r < '0' || r > '9' {
			return fmt.Errorf("core: phone.default_country_code must be digits")
		}
	}
	if raw := strings.TrimSpace(c.Webhook.URL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("core: webhook.url %q is invalid", raw)
		}
	}
	for key := range c.Webhook.EnabledEvents {
		if _, ok := ParseEventKind(key); !ok {
			return fmt.Errorf("core: webhook.enabled_events contains unknown event %q", key)
		}
	}
	if c.Webhook.Timeout < 0 {
		return fmt.Errorf("core: webhook.timeout must not be negative")
	}
	return nil
}
