package core

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type StaticConfigLoader struct {
	Values map[string]any
}

func (l StaticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// FileConfigLoader reads a JSON document. A missing path yields an empty map.
type FileConfigLoader struct {
	Path string
}

func (l FileConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: read config file %q: %w", path, err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("core: decode config file %q: %w", path, err)
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig runs the provider against the defaults and layers runtime
// overrides on top through the resolver.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	api := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.API.Namespace) != "" {
		api["namespace"] = cfg.API.Namespace
	}
	if includeZero || strings.TrimSpace(cfg.API.KeyHeader) != "" {
		api["key_header"] = cfg.API.KeyHeader
	}
	if includeZero || strings.TrimSpace(cfg.API.PluginVersion) != "" {
		api["plugin_version"] = cfg.API.PluginVersion
	}
	if includeZero || strings.TrimSpace(cfg.API.SiteURL) != "" {
		api["site_url"] = cfg.API.SiteURL
	}
	if len(api) > 0 {
		layer["api"] = api
	}

	rateLimit := map[string]any{}
	if includeZero || cfg.RateLimit.Limit > 0 {
		rateLimit["enabled"] = cfg.RateLimit.Enabled
		rateLimit["limit"] = cfg.RateLimit.Limit
	}
	if includeZero || cfg.RateLimit.Window > 0 {
		rateLimit["window"] = cfg.RateLimit.Window
	}
	if len(rateLimit) > 0 {
		layer["rate_limit"] = rateLimit
	}

	cache := map[string]any{}
	if includeZero || cfg.Cache.TTL > 0 {
		cache["ttl"] = cfg.Cache.TTL
	}
	if includeZero || cfg.Cache.MaxEntries > 0 {
		cache["max_entries"] = cfg.Cache.MaxEntries
	}
	if len(cache) > 0 {
		layer["cache"] = cache
	}

	if includeZero || strings.TrimSpace(cfg.Phone.Format) != "" {
		layer["phone"] = map[string]any{
			"format":               cfg.Phone.Format,
			"default_country_code": cfg.Phone.DefaultCountryCode,
			"require_country_code": cfg.Phone.RequireCountryCode,
		}
	}

	webhook := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Webhook.URL) != "" {
		webhook["url"] = cfg.Webhook.URL
	}
	if includeZero || len(cfg.Webhook.EnabledEvents) > 0 {
		events := make(map[string]any, len(cfg.Webhook.EnabledEvents))
		for key, value := range cfg.Webhook.EnabledEvents {
			events[key] = value
		}
		webhook["enabled_events"] = events
	}
	if includeZero || cfg.Webhook.Timeout > 0 {
		webhook["timeout"] = cfg.Webhook.Timeout
	}
	if includeZero || cfg.Webhook.Async {
		webhook["async"] = cfg.Webhook.Async
	}
	if includeZero || cfg.Webhook.QueueSize > 0 {
		webhook["queue_size"] = cfg.Webhook.QueueSize
	}
	if len(webhook) > 0 {
		layer["webhook"] = webhook
	}

	if includeZero || len(cfg.CORS.AllowedOrigins) > 0 {
		layer["cors"] = map[string]any{
			"allowed_origins": append([]string(nil), cfg.CORS.AllowedOrigins...),
		}
	}

	retention := map[string]any{}
	if includeZero || cfg.Retention.DeliveryLogMaxAge > 0 {
		retention["delivery_log_max_age"] = cfg.Retention.DeliveryLogMaxAge
	}
	if includeZero || cfg.Retention.SweepInterval > 0 {
		retention["sweep_interval"] = cfg.Retention.SweepInterval
	}
	if len(retention) > 0 {
		layer["retention"] = retention
	}
	return layer
}
