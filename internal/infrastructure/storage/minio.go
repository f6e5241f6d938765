package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
)

// maxPresignExpiry is the longest validity S3 accepts for a presigned URL.
const maxPresignExpiry = 7 * 24 * time.Hour

// unknownSizePartSize is the part size, and the most buffered in memory, for
// puts of unknown length.
const unknownSizePartSize = 16 << 20

// objectReader abstracts minio.Object for testability.
// *minio.Object satisfies this interface.
type objectReader interface {
	io.ReadCloser
	Stat() (minio.ObjectInfo, error)
}

// minioClient defines the interface for MinIO operations.
// This abstraction allows for easier unit testing with mocks.
type minioClient interface {
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedHeadObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// minioClientAdapter wraps *minio.Client to implement minioClient interface.
// This is necessary because *minio.Client.GetObject returns *minio.Object,
// but our interface returns objectReader for testability.
type minioClientAdapter struct {
	client *minio.Client
}

func (a *minioClientAdapter) PresignedGetObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedGetObject(ctx, bucketName, objectName, expiry, reqParams)
}

func (a *minioClientAdapter) PresignedHeadObject(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error) {
	return a.client.PresignedHeadObject(ctx, bucketName, objectName, expiry, reqParams)
}

func (a *minioClientAdapter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return a.client.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (a *minioClientAdapter) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (objectReader, error) {
	return a.client.GetObject(ctx, bucketName, objectName, opts)
}

func (a *minioClientAdapter) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return a.client.RemoveObject(ctx, bucketName, objectName, opts)
}

// RemoteBackend stores objects in an S3-compatible bucket.
type RemoteBackend struct {
	client       minioClient
	bucket       string
	publicDomain string
	useSSL       bool
}

// Compile-time verification that RemoteBackend implements Backend.
var _ Backend = (*RemoteBackend)(nil)

// NewRemoteBackend creates a MinIO client for the descriptor. No request is
// made; connectivity problems surface on the first operation.
func NewRemoteBackend(desc model.StorageBackend) (*RemoteBackend, error) {
	region := desc.Region
	if region == "" {
		// An explicit region avoids a bucket location lookup on presign.
		region = "us-east-1"
	}
	client, err := minio.New(desc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(desc.AccessKey, desc.SecretKey, ""),
		Secure: desc.UseSSL,
		Region: region,

		// One attempt per call. Callers own the retry policy.
		MaxRetries: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return newRemoteBackendWithClient(&minioClientAdapter{client: client}, desc), nil
}

// newRemoteBackendWithClient creates a RemoteBackend with a given minioClient implementation.
// This is used for dependency injection in tests.
func newRemoteBackendWithClient(client minioClient, desc model.StorageBackend) *RemoteBackend {
	return &RemoteBackend{
		client:       client,
		bucket:       desc.Bucket,
		publicDomain: desc.PublicDomain,
		useSSL:       desc.UseSSL,
	}
}

func (b *RemoteBackend) Kind() model.BackendKind {
	return model.BackendRemote
}

// Put stores the object with a single PutObject call. Bodies of at most
// 16 MiB go up as one PUT; larger ones are split into parts by the client
// library. A body of unknown size is buffered up to one part to find out
// which case applies.
func (b *RemoteBackend) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	opts := minio.PutObjectOptions{ContentType: contentType}
	if size < 0 {
		head, err := io.ReadAll(io.LimitReader(body, unknownSizePartSize+1))
		if err != nil {
			return fmt.Errorf("read object body: %w", err)
		}
		if len(head) <= unknownSizePartSize {
			size = int64(len(head))
			body = bytes.NewReader(head)
		} else {
			body = io.MultiReader(bytes.NewReader(head), body)
			opts.PartSize = unknownSizePartSize
		}
	}
	_, err := b.client.PutObject(ctx, b.bucket, key, body, size, opts)
	if err != nil {
		return fmt.Errorf("%w: failed to upload object: %w", repository.ErrStorageUnavailable, err)
	}
	return nil
}

// Open retrieves an object from the bucket.
// Caller is responsible for closing the returned ReadCloser.
func (b *RemoteBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get object: %w", repository.ErrStorageUnavailable, err)
	}

	// Verify the object exists by checking its stat.
	// GetObject returns a lazy reader that doesn't fail until read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close() // Best effort close on error path
		if isNoSuchKey(err) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: failed to stat object: %w", repository.ErrStorageUnavailable, err)
	}

	return obj, nil
}

// Delete removes an object. A missing key is treated as already deleted.
func (b *RemoteBackend) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNoSuchKey(err) {
		return fmt.Errorf("%w: failed to delete object: %w", repository.ErrStorageUnavailable, err)
	}
	return nil
}

// URL returns a direct unsigned URL when a public domain is configured and a
// presigned GET URL otherwise.
func (b *RemoteBackend) URL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if b.publicDomain != "" {
		return b.publicURL(key), nil
	}
	return b.PresignedGetURL(ctx, key, ttl)
}

// PresignedGetURL always signs, regardless of the public domain override.
// The delivery gateway uses it to proxy range requests.
func (b *RemoteBackend) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return b.presign(ctx, key, ttl, b.client.PresignedGetObject)
}

// PresignedHeadURL is PresignedGetURL for HEAD. The method is part of the
// signature, so a GET URL cannot be reused for HEAD.
func (b *RemoteBackend) PresignedHeadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return b.presign(ctx, key, ttl, b.client.PresignedHeadObject)
}

type presignFunc func(ctx context.Context, bucketName, objectName string, expiry time.Duration, reqParams url.Values) (*url.URL, error)

func (b *RemoteBackend) presign(ctx context.Context, key string, ttl time.Duration, sign presignFunc) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("presign ttl must be positive")
	}
	if ttl > maxPresignExpiry {
		ttl = maxPresignExpiry
	}
	presignedURL, err := sign(ctx, b.bucket, key, ttl, make(url.Values))
	if err != nil {
		return "", fmt.Errorf("%w: failed to generate presigned URL: %w", repository.ErrStorageUnavailable, err)
	}
	return presignedURL.String(), nil
}

func (b *RemoteBackend) publicURL(key string) string {
	base := strings.TrimRight(b.publicDomain, "/")
	if !strings.Contains(base, "://") {
		scheme := "http"
		if b.useSSL {
			scheme = "https"
		}
		base = scheme + "://" + base
	}
	return base + "/" + (&url.URL{Path: key}).EscapedPath()
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
