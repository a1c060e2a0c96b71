package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/cardbox/cardbox/internal/storage"
)

// Config is the application configuration, read from environment (CARDBOX_
// prefix) and an optional cardbox.yaml.
type Config struct {
	HTTP struct {
		Addr string
	}
	Storage storage.Config
	Log     struct {
		MaxEntries int
		MirrorPath string
	}
}

// Load reads config from environment and optional cardbox.yaml. The storage
// provider may be left empty: the storage factory then auto-selects a
// backend from the environment (remote DSN, then cloud credentials, then
// the embedded local store).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARDBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigName("cardbox")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional config file

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("local.path", "cardbox.db")
	v.SetDefault("log.max_entries", 1000)

	cfg := &Config{}
	cfg.HTTP.Addr = v.GetString("http.addr")
	cfg.Storage.Provider = storage.Provider(v.GetString("provider"))
	cfg.Storage.Local.Path = v.GetString("local.path")
	cfg.Storage.Local.Version = v.GetInt64("local.version")
	cfg.Storage.Remote.DSN = v.GetString("remote.dsn")
	cfg.Log.MaxEntries = v.GetInt("log.max_entries")
	cfg.Log.MirrorPath = v.GetString("log.mirror_path")

	return cfg, nil
}
