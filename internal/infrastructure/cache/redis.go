package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/infrastructure/metrics"
)

const (
	// jobCacheKeyPrefix is the prefix for file status keys in Redis.
	jobCacheKeyPrefix = "file-status:"
)

// jobJSON is the JSON representation of a TranscodeJob for caching.
// Using explicit struct avoids coupling to domain model's JSON tags.
type jobJSON struct {
	ID            string `json:"id"`
	FileID        string `json:"file_id"`
	SourceKey     string `json:"source_key"`
	Status        string `json:"status"`
	ProcessedPath string `json:"processed_path,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// RedisJobCache implements JobCache using Redis as the backing store.
type RedisJobCache struct {
	client *redis.Client
}

// NewRedisJobCache creates a new Redis-backed job cache.
func NewRedisJobCache(client *redis.Client) *RedisJobCache {
	return &RedisJobCache{
		client: client,
	}
}

// Get retrieves a file's latest job from Redis.
// Returns nil, nil on cache miss.
func (c *RedisJobCache) Get(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	data, err := c.client.Get(ctx, c.buildKey(fileID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			observe(metrics.CacheOpGet, metrics.CacheStatusMiss)
			return nil, nil // Cache miss
		}
		observe(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("redis get: %w", err)
	}

	job, err := c.deserialize(data)
	if err != nil {
		observe(metrics.CacheOpGet, metrics.CacheStatusError)
		return nil, fmt.Errorf("deserialize job: %w", err)
	}

	observe(metrics.CacheOpGet, metrics.CacheStatusHit)
	return job, nil
}

// Set stores a job under its file ID with the specified TTL.
func (c *RedisJobCache) Set(ctx context.Context, job *model.TranscodeJob, ttl time.Duration) error {
	data, err := c.serialize(job)
	if err != nil {
		return fmt.Errorf("serialize job: %w", err)
	}

	if err := c.client.Set(ctx, c.buildKey(job.FileID), data, ttl).Err(); err != nil {
		observe(metrics.CacheOpSet, metrics.CacheStatusError)
		return fmt.Errorf("redis set: %w", err)
	}

	observe(metrics.CacheOpSet, metrics.CacheStatusSuccess)
	return nil
}

// Delete removes a file's cached job.
func (c *RedisJobCache) Delete(ctx context.Context, fileID uuid.UUID) error {
	if err := c.client.Del(ctx, c.buildKey(fileID)).Err(); err != nil {
		observe(metrics.CacheOpDelete, metrics.CacheStatusError)
		return fmt.Errorf("redis del: %w", err)
	}

	observe(metrics.CacheOpDelete, metrics.CacheStatusSuccess)
	return nil
}

func (c *RedisJobCache) buildKey(fileID uuid.UUID) string {
	return jobCacheKeyPrefix + fileID.String()
}

func (c *RedisJobCache) serialize(job *model.TranscodeJob) ([]byte, error) {
	v := jobJSON{
		ID:            job.ID.String(),
		FileID:        job.FileID.String(),
		SourceKey:     job.SourceKey,
		Status:        string(job.Status),
		ProcessedPath: job.ProcessedPath,
		ErrorMessage:  job.ErrorMessage,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339Nano),
	}
	return json.Marshal(v)
}

func (c *RedisJobCache) deserialize(data []byte) (*model.TranscodeJob, error) {
	var v jobJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(v.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job ID: %w", err)
	}

	fileID, err := uuid.Parse(v.FileID)
	if err != nil {
		return nil, fmt.Errorf("parse file ID: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	updatedAt, err := time.Parse(time.RFC3339Nano, v.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &model.TranscodeJob{
		ID:            id,
		FileID:        fileID,
		SourceKey:     v.SourceKey,
		Status:        model.Status(v.Status),
		ProcessedPath: v.ProcessedPath,
		ErrorMessage:  v.ErrorMessage,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

func observe(op, status string) {
	metrics.CacheOperationsTotal.WithLabelValues(op, status, metrics.CacheTypeRedis).Inc()
}

// Compile-time verification that RedisJobCache implements JobCache.
var _ JobCache = (*RedisJobCache)(nil)
