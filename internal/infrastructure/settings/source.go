package settings

import (
	"fmt"

	"github.com/zzkuner/fileonline/internal/config"
	"github.com/zzkuner/fileonline/internal/domain/repository"
)

// Settings sources accepted in STORAGE_SETTINGS_SOURCE.
const (
	SourceEnv      = "env"
	SourcePostgres = "postgres"
)

// Build assembles the provider chain for cfg. With the postgres source the
// operator row wins, the environment descriptor covers a missing row, and
// the result is cached for cfg.Storage.SettingsTTL. store may be nil for the
// env source.
func Build(cfg *config.Config, store repository.BackendProvider) (repository.BackendProvider, error) {
	envDesc, err := FromConfig(cfg.Storage, cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("invalid default storage backend: %w", err)
	}
	env := NewStaticProvider(envDesc)

	switch cfg.Storage.SettingsSource {
	case SourceEnv:
		return env, nil
	case SourcePostgres:
		if store == nil {
			return nil, fmt.Errorf("settings source %q needs a settings store", SourcePostgres)
		}
		return NewCachedProvider(WithFallback(store, env), cfg.Storage.SettingsTTL), nil
	default:
		return nil, fmt.Errorf("unknown settings source %q", cfg.Storage.SettingsSource)
	}
}
