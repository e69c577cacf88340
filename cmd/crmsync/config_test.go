package main

import (
	"context"
	"flag"
	"fmt"
	"testing"
	"time"
)

func TestParseConfig_EnvThenFlags(t *testing.T) {
	t.Setenv("CRMSYNC_ADDR", ":9090")
	t.Setenv("CRMSYNC_API_KEYS", "gh_one,gh_two")
	t.Setenv("CRMSYNC_LOG_LEVEL", "debug")

	cfg, err := ParseConfig(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-log-level", "warn"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("expected env addr, got %q", cfg.Addr)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected flag to override env, got %q", cfg.LogLevel)
	}
	if len(cfg.APIKeys) != 2 || cfg.APIKeys[1] != "gh_two" {
		t.Fatalf("unexpected api keys %v", cfg.APIKeys)
	}
	if cfg.DBDriver != DriverMemory || cfg.TagCacheTTL != 5*time.Minute {
		t.Fatalf("unexpected defaults %#v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "memory", cfg: Config{Addr: ":8080", DBDriver: "Memory"}},
		{name: "empty driver", cfg: Config{Addr: ":8080"}},
		{name: "sqlite without dsn", cfg: Config{Addr: ":8080", DBDriver: DriverSQLite}, wantErr: true},
		{name: "postgres", cfg: Config{Addr: ":8080", DBDriver: DriverPostgres, DBDSN: "postgres://localhost/crm"}},
		{name: "unknown driver", cfg: Config{Addr: ":8080", DBDriver: "mysql"}, wantErr: true},
		{name: "no addr", cfg: Config{DBDriver: DriverMemory}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	cases := []Config{
		{DBDriver: DriverMemory},
		{DBDriver: DriverSQLite, DBDSN: fmt.Sprintf("file:crmsync-cmd-%d?mode=memory&cache=shared", time.Now().UnixNano())},
	}
	for _, cfg := range cases {
		t.Run(cfg.DBDriver, func(t *testing.T) {
			cfg.Addr = "127.0.0.1:0"
			cfg.LogLevel = "error"
			cfg.LogFormat = "text"
			cfg.TagCacheTTL = time.Minute
			cfg.ShutdownTimeout = time.Second
			cfg.APIKeys = []string{"gh_seeded", " "}

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- Run(ctx, cfg) }()
			time.Sleep(300 * time.Millisecond)
			cancel()

			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("expected clean shutdown, got %v", err)
				}
			case <-time.After(5 * time.Second):
				t.Fatalf("run did not stop after cancel")
			}
		})
	}
}
