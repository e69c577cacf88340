package crmsync

import (
	"context"

	"github.com/goliatone/go-crmsync/core"
)

type Config = core.Config

type ConfigProvider = core.ConfigProvider
type OptionsResolver = core.OptionsResolver
type RawConfigLoader = core.RawConfigLoader
type FileConfigLoader = core.FileConfigLoader
type StaticConfigLoader = core.StaticConfigLoader

type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

type Contact = core.Contact
type ContactIdentity = core.ContactIdentity
type EventKind = core.EventKind
type DeliveryLog = core.DeliveryLog

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig layers a JSON config file and runtime overrides over the
// defaults. An empty path skips the file layer.
func LoadConfig(ctx context.Context, path string, runtime Config) (Config, error) {
	return core.LoadConfig(ctx, core.NewCfgxConfigProvider(core.FileConfigLoader{Path: path}), core.GoOptionsResolver{}, runtime)
}
