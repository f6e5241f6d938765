package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

// SettingsRepository reads the operator-managed storage backend descriptor.
// The table holds at most one row; the admin tooling that writes it lives
// outside these services.
type SettingsRepository struct {
	db DBTX
}

// NewSettingsRepository creates a new SettingsRepository instance.
func NewSettingsRepository(db DBTX) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Current implements repository.BackendProvider. It returns
// ErrBackendNotConfigured when no row exists.
func (r *SettingsRepository) Current(ctx context.Context) (model.StorageBackend, error) {
	const query = `
		SELECT backend, local_root, endpoint, region, access_key, secret_key, bucket, use_ssl, public_domain
		FROM storage_settings
		WHERE id = 1
	`
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableStorageSettings).Inc()

	var (
		desc    model.StorageBackend
		backend string
	)
	err := r.db.QueryRow(ctx, query).Scan(
		&backend,
		&desc.LocalRoot,
		&desc.Endpoint,
		&desc.Region,
		&desc.AccessKey,
		&desc.SecretKey,
		&desc.Bucket,
		&desc.UseSSL,
		&desc.PublicDomain,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StorageBackend{}, repository.ErrBackendNotConfigured
		}
		return model.StorageBackend{}, fmt.Errorf("failed to read storage settings: %w", err)
	}

	// An unrecognized kind is passed through so descriptor validation
	// rejects it instead of a fallback silently taking over.
	desc.Kind = model.BackendKind(backend)
	if kind, err := model.ParseBackendKind(backend); err == nil {
		desc.Kind = kind
	}
	return desc, nil
}

// Compile-time verification that SettingsRepository implements repository.BackendProvider.
var _ repository.BackendProvider = (*SettingsRepository)(nil)
