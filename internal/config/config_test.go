package config

import (
	"testing"

	"github.com/cardbox/cardbox/internal/storage"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Storage.Provider != "" {
		t.Errorf("Provider = %q, want empty (auto-detect)", cfg.Storage.Provider)
	}
	if cfg.Storage.Local.Path != "cardbox.db" {
		t.Errorf("Local.Path = %q", cfg.Storage.Local.Path)
	}
	if cfg.Log.MaxEntries != 1000 {
		t.Errorf("Log.MaxEntries = %d", cfg.Log.MaxEntries)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CARDBOX_HTTP_ADDR", ":9999")
	t.Setenv("CARDBOX_PROVIDER", "postgres")
	t.Setenv("CARDBOX_REMOTE_DSN", "postgres://u:p@localhost/cards")
	t.Setenv("CARDBOX_LOCAL_PATH", "/tmp/other.db")
	t.Setenv("CARDBOX_LOCAL_VERSION", "1")
	t.Setenv("CARDBOX_LOG_MAX_ENTRIES", "50")
	t.Setenv("CARDBOX_LOG_MIRROR_PATH", "/tmp/cardbox.log")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9999" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Storage.Provider != storage.ProviderPostgres {
		t.Errorf("Provider = %q", cfg.Storage.Provider)
	}
	if cfg.Storage.Remote.DSN != "postgres://u:p@localhost/cards" {
		t.Errorf("Remote.DSN = %q", cfg.Storage.Remote.DSN)
	}
	if cfg.Storage.Local.Path != "/tmp/other.db" {
		t.Errorf("Local.Path = %q", cfg.Storage.Local.Path)
	}
	if cfg.Storage.Local.Version != 1 {
		t.Errorf("Local.Version = %d", cfg.Storage.Local.Version)
	}
	if cfg.Log.MaxEntries != 50 {
		t.Errorf("Log.MaxEntries = %d", cfg.Log.MaxEntries)
	}
	if cfg.Log.MirrorPath != "/tmp/cardbox.log" {
		t.Errorf("Log.MirrorPath = %q", cfg.Log.MirrorPath)
	}
}
