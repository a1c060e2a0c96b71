package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/cardbox/cardbox/internal/logbuf"
)

// Provider selects a storage backend.
type Provider string

const (
	// ProviderLocal is the embedded SQLite store.
	ProviderLocal Provider = "local"
	// ProviderPostgres is the hosted relational store.
	ProviderPostgres Provider = "postgres"
	// ProviderCloud is a reserved slot for a second hosted backend. Not
	// implemented; selecting it fails fast.
	ProviderCloud Provider = "cloud"
)

// Environment variables consulted when no explicit provider is configured.
// The priority order is part of the contract: remote DSN first, then cloud
// credentials, then the embedded local store.
const (
	EnvRemoteDSN = "CARDBOX_REMOTE_DSN"
	EnvCloudURL  = "CARDBOX_CLOUD_URL"
	EnvCloudKey  = "CARDBOX_CLOUD_KEY"
)

// Config selects and parameterizes a backend. An empty Provider means
// auto-detect from the environment.
type Config struct {
	Provider Provider
	Local    LocalConfig
	Remote   RemoteConfig
}

// Factory resolves exactly one CardStorage instance per process. The first
// Instance call constructs the adapter; every later call returns the same
// instance regardless of the config passed, until Reset.
//
// Factory is a constructed object: callers thread it through from startup
// rather than reaching for package-level state.
type Factory struct {
	log    *logbuf.Log
	getenv func(string) string

	mu   sync.Mutex
	inst CardStorage
}

// NewFactory creates a factory that reads the real environment.
func NewFactory(log *logbuf.Log) *Factory {
	return &Factory{log: log, getenv: os.Getenv}
}

// NewFactoryWithEnv creates a factory with an injected environment lookup,
// for tests.
func NewFactoryWithEnv(log *logbuf.Log, getenv func(string) string) *Factory {
	return &Factory{log: log, getenv: getenv}
}

// Instance returns the memoized adapter, constructing it on first call.
// Unknown or not-yet-implemented providers fail fast; there is no silent
// fallback.
func (f *Factory) Instance(cfg *Config) (CardStorage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inst != nil {
		return f.inst, nil
	}

	if cfg == nil {
		cfg = &Config{}
	}
	provider := cfg.Provider
	if provider == "" {
		provider = f.detectProvider()
	}

	inst, err := f.construct(provider, cfg)
	if err != nil {
		return nil, err
	}

	f.log.For("StorageFactory").Info("storage provider selected", map[string]any{
		"provider": string(provider),
	})
	f.inst = inst
	return inst, nil
}

func (f *Factory) construct(provider Provider, cfg *Config) (CardStorage, error) {
	switch provider {
	case ProviderLocal:
		return NewLocalStore(cfg.Local, f.log), nil
	case ProviderPostgres:
		remote := cfg.Remote
		if remote.DSN == "" {
			remote.DSN = f.getenv(EnvRemoteDSN)
		}
		if remote.DSN == "" {
			return nil, fmt.Errorf("postgres provider requires a DSN (%s)", EnvRemoteDSN)
		}
		return NewRemoteStore(remote, f.log), nil
	case ProviderCloud:
		return nil, fmt.Errorf("storage provider %q is not implemented", provider)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

// detectProvider picks the default backend for a fresh deployment: the
// remote relational store if its DSN is present, else the cloud backend if
// its credentials are present, else the embedded local store.
func (f *Factory) detectProvider() Provider {
	if f.getenv(EnvRemoteDSN) != "" {
		return ProviderPostgres
	}
	if f.getenv(EnvCloudURL) != "" && f.getenv(EnvCloudKey) != "" {
		return ProviderCloud
	}
	return ProviderLocal
}

// Reset closes and clears the memoized instance. Used by tests and when
// switching providers at runtime.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inst != nil {
		if err := f.inst.Close(); err != nil {
			f.log.For("StorageFactory").Warn("close on reset failed", map[string]any{
				"error": err.Error(),
			})
		}
		f.inst = nil
	}
}
