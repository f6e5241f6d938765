// Package settings resolves the active storage backend descriptor.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zzkuner/fileonline/internal/config"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
)

// StaticProvider always returns the same descriptor.
type StaticProvider struct {
	desc model.StorageBackend
}

// NewStaticProvider returns a provider for a fixed descriptor.
func NewStaticProvider(desc model.StorageBackend) *StaticProvider {
	return &StaticProvider{desc: desc}
}

// FromConfig builds the default descriptor from environment configuration.
func FromConfig(storage config.StorageConfig, s3 config.MinIOConfig) (model.StorageBackend, error) {
	kind, err := model.ParseBackendKind(storage.Backend)
	if err != nil {
		return model.StorageBackend{}, err
	}
	desc := model.StorageBackend{Kind: kind, LocalRoot: storage.LocalRoot}
	if kind == model.BackendRemote {
		desc = model.StorageBackend{
			Kind:         kind,
			Endpoint:     s3.Endpoint,
			Region:       s3.Region,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
			Bucket:       s3.Bucket,
			UseSSL:       s3.UseSSL,
			PublicDomain: s3.PublicDomain,
		}
	}
	return desc, desc.Validate()
}

func (p *StaticProvider) Current(context.Context) (model.StorageBackend, error) {
	return p.desc, nil
}

// FallbackProvider consults primary and uses fallback when primary has no
// descriptor configured. Other primary errors are returned as is.
type FallbackProvider struct {
	primary  repository.BackendProvider
	fallback repository.BackendProvider
}

// WithFallback chains two providers.
func WithFallback(primary, fallback repository.BackendProvider) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback}
}

func (p *FallbackProvider) Current(ctx context.Context) (model.StorageBackend, error) {
	desc, err := p.primary.Current(ctx)
	if errors.Is(err, repository.ErrBackendNotConfigured) {
		return p.fallback.Current(ctx)
	}
	return desc, err
}

// CachedProvider memoizes the upstream descriptor for ttl. Concurrent
// refreshes share one upstream call. When a refresh fails the previous
// descriptor keeps being served for up to staleFactor*ttl past its expiry,
// after which the error surfaces. A ttl of zero disables caching.
type CachedProvider struct {
	upstream repository.BackendProvider
	ttl      time.Duration
	now      func() time.Time
	group    singleflight.Group

	mu        sync.RWMutex
	desc      model.StorageBackend
	fetchedAt time.Time
	valid     bool
}

const staleFactor = 12

// NewCachedProvider wraps upstream with a ttl cache.
func NewCachedProvider(upstream repository.BackendProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{upstream: upstream, ttl: ttl, now: time.Now}
}

func (p *CachedProvider) Current(ctx context.Context) (model.StorageBackend, error) {
	if p.ttl <= 0 {
		return p.upstream.Current(ctx)
	}

	p.mu.RLock()
	desc, age, valid := p.desc, p.now().Sub(p.fetchedAt), p.valid
	p.mu.RUnlock()
	if valid && age < p.ttl {
		return desc, nil
	}

	v, err, _ := p.group.Do("current", func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		if valid && age < p.ttl*(staleFactor+1) {
			slog.Warn("serving stale storage backend",
				slog.Duration("age", age),
				slog.String("error", err.Error()),
			)
			return desc, nil
		}
		return model.StorageBackend{}, err
	}
	return v.(model.StorageBackend), nil
}

func (p *CachedProvider) refresh(ctx context.Context) (model.StorageBackend, error) {
	desc, err := p.upstream.Current(ctx)
	if err != nil {
		return model.StorageBackend{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.desc != desc {
		slog.Info("storage backend changed",
			slog.String("from", p.desc.Kind.String()),
			slog.String("to", desc.Kind.String()),
		)
	}
	p.desc = desc
	p.fetchedAt = p.now()
	p.valid = true
	return desc, nil
}

var (
	_ repository.BackendProvider = (*StaticProvider)(nil)
	_ repository.BackendProvider = (*FallbackProvider)(nil)
	_ repository.BackendProvider = (*CachedProvider)(nil)
)
