package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/usecase"
)

// mockFileService provides a configurable mock for FileService.
type mockFileService struct {
	uploadFn    func(ctx context.Context, input usecase.UploadInput) (*usecase.UploadOutput, error)
	getStatusFn func(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)
	reprocessFn func(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error)
	linkFn      func(ctx context.Context, key string, ttl time.Duration) (*usecase.Link, error)
	revokeFn    func(ctx context.Context, path string, expires int64) error
	deleteFn    func(ctx context.Context, key string) error
}

func (m *mockFileService) Upload(ctx context.Context, input usecase.UploadInput) (*usecase.UploadOutput, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, input)
	}
	return nil, nil
}

func (m *mockFileService) GetStatus(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	if m.getStatusFn != nil {
		return m.getStatusFn(ctx, fileID)
	}
	return nil, nil
}

func (m *mockFileService) Reprocess(ctx context.Context, fileID uuid.UUID) (*model.TranscodeJob, error) {
	if m.reprocessFn != nil {
		return m.reprocessFn(ctx, fileID)
	}
	return nil, nil
}

func (m *mockFileService) Link(ctx context.Context, key string, ttl time.Duration) (*usecase.Link, error) {
	if m.linkFn != nil {
		return m.linkFn(ctx, key, ttl)
	}
	return nil, nil
}

func (m *mockFileService) Revoke(ctx context.Context, path string, expires int64) error {
	if m.revokeFn != nil {
		return m.revokeFn(ctx, path, expires)
	}
	return nil
}

func (m *mockFileService) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}
