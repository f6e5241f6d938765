package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zzkuner/fileonline/internal/capability"
	"github.com/zzkuner/fileonline/internal/domain/model"
	"github.com/zzkuner/fileonline/internal/domain/repository"
)

// URLSigner issues capability URLs for locally stored objects.
type URLSigner interface {
	Issue(path string, ttl time.Duration) (capability.SignedURL, error)
}

// LocalBackend stores objects as files under a root directory.
type LocalBackend struct {
	root   string
	signer URLSigner
}

// Compile-time verification that LocalBackend implements Backend.
var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend creates a backend rooted at root. The directory is created
// on first write.
func NewLocalBackend(root string, signer URLSigner) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve root: %w", repository.ErrStorageIO, err)
	}
	return &LocalBackend{root: abs, signer: signer}, nil
}

func (b *LocalBackend) Kind() model.BackendKind {
	return model.BackendLocal
}

// Root returns the absolute storage root.
func (b *LocalBackend) Root() string {
	return b.root
}

// Path maps key to a canonical filesystem path inside the root. Symlinks are
// resolved for the existing part of the path, so a link pointing outside the
// root is rejected like a ".." segment.
func (b *LocalBackend) Path(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}

	joined := filepath.Join(b.root, filepath.FromSlash(key))
	if !within(b.root, joined) {
		return "", repository.ErrPathTraversal
	}

	realRoot, err := canonical(b.root)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalize root: %w", repository.ErrStorageIO, err)
	}
	realPath, err := canonical(joined)
	if err != nil {
		return "", fmt.Errorf("%w: canonicalize path: %w", repository.ErrStorageIO, err)
	}
	if !within(realRoot, realPath) {
		return "", repository.ErrPathTraversal
	}
	return realPath, nil
}

// Put writes body to a temporary file next to the target and renames it into
// place, so readers never observe a partially written object.
func (b *LocalBackend) Put(ctx context.Context, key string, body io.Reader, _ int64, _ string) error {
	path, err := b.Path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create directories: %w", repository.ErrStorageIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", repository.ErrStorageIO, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName) // Best-effort cleanup; original error takes precedence
		}
	}()

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: body}); err != nil {
		_ = tmp.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: write object: %w", repository.ErrStorageIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close object: %w", repository.ErrStorageIO, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("%w: chmod object: %w", repository.ErrStorageIO, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: commit object: %w", repository.ErrStorageIO, err)
	}
	committed = true
	return nil
}

// Open returns the object file. The returned *os.File supports Seek, which the
// delivery gateway relies on for range reads.
func (b *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.OpenFile(ctx, key)
}

// OpenFile opens the object as a regular file.
func (b *LocalBackend) OpenFile(ctx context.Context, key string) (*os.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := b.Path(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: open object: %w", repository.ErrStorageIO, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat object: %w", repository.ErrStorageIO, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, repository.ErrObjectNotFound
	}
	return f, nil
}

// Delete removes the object file. A missing file is already deleted.
func (b *LocalBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.Path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: delete object: %w", repository.ErrStorageIO, err)
	}
	return nil
}

// URL returns a signed gateway URL for key.
func (b *LocalBackend) URL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	signed, err := b.signer.Issue(key, ttl)
	if err != nil {
		return "", fmt.Errorf("issue capability: %w", err)
	}
	return signed.URL, nil
}

// within reports whether p is strictly inside root.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// canonical resolves symlinks in the longest existing prefix of p.
func canonical(p string) (string, error) {
	var rest []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		rest = append([]string{filepath.Base(cur)}, rest...)
		cur = parent
	}
}

// contextReader aborts a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
