package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

// ErrInvalidTTL is returned by URLFor for a non-positive ttl.
var ErrInvalidTTL = errors.New("url ttl must be positive")

// Adapter implements repository.ObjectStore. The backend descriptor is
// resolved on every call, so a settings change applies to the next operation
// without restarting the process.
type Adapter struct {
	provider  repository.BackendProvider
	signer    URLSigner
	newRemote func(model.StorageBackend) (*RemoteBackend, error)

	mu         sync.Mutex
	remoteDesc model.StorageBackend
	remote     *RemoteBackend
}

// Compile-time verification that Adapter implements repository.ObjectStore.
var _ repository.ObjectStore = (*Adapter)(nil)

// NewAdapter creates an Adapter. signer issues gateway URLs for local objects.
func NewAdapter(provider repository.BackendProvider, signer URLSigner) *Adapter {
	return &Adapter{
		provider:  provider,
		signer:    signer,
		newRemote: NewRemoteBackend,
	}
}

// Backend resolves the backend currently in effect.
func (a *Adapter) Backend(ctx context.Context) (Backend, error) {
	desc, err := a.provider.Current(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrBackendNotConfigured) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: resolve backend: %w", repository.ErrStorageUnavailable, err)
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrBackendNotConfigured, err)
	}

	switch desc.Kind {
	case model.BackendLocal:
		return NewLocalBackend(desc.LocalRoot, a.signer)
	default:
		return a.remoteFor(desc)
	}
}

// remoteFor reuses the client built for the previous descriptor when nothing
// changed. A changed descriptor replaces it.
func (a *Adapter) remoteFor(desc model.StorageBackend) (*RemoteBackend, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.remote != nil && a.remoteDesc == desc {
		return a.remote, nil
	}
	b, err := a.newRemote(desc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStorageUnavailable, err)
	}
	a.remote = b
	a.remoteDesc = desc
	return b, nil
}

func (a *Adapter) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	b, err := a.Backend(ctx)
	if err != nil {
		return "", err
	}
	err = b.Put(ctx, key, body, size, contentType)
	record(metrics.StorageOpPut, b.Kind(), err)
	if err != nil {
		return "", err
	}
	return key, nil
}

func (a *Adapter) URLFor(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}
	b, err := a.Backend(ctx)
	if err != nil {
		return "", err
	}
	u, err := b.URL(ctx, key, ttl)
	record(metrics.StorageOpURL, b.Kind(), err)
	return u, err
}

func (a *Adapter) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}
	rc, err := b.Open(ctx, key)
	record(metrics.StorageOpOpen, b.Kind(), err)
	return rc, err
}

func (a *Adapter) Delete(ctx context.Context, key string) error {
	b, err := a.Backend(ctx)
	if err != nil {
		return err
	}
	err = b.Delete(ctx, key)
	record(metrics.StorageOpDelete, b.Kind(), err)
	return err
}

func record(op string, kind model.BackendKind, err error) {
	status := metrics.StatusSuccess
	if err != nil && !errors.Is(err, repository.ErrObjectNotFound) {
		status = metrics.StatusError
	}
	metrics.StorageOperationsTotal.WithLabelValues(op, kind.String(), status).Inc()
}
