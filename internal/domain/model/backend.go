package model

import (
	"errors"
	"strings"
)

// BackendKind selects where object bytes live.
type BackendKind string

const (
	BackendLocal  BackendKind = "local"
	BackendRemote BackendKind = "remote"
)

func (k BackendKind) IsValid() bool {
	return k == BackendLocal || k == BackendRemote
}

func (k BackendKind) String() string {
	return string(k)
}

// ParseBackendKind accepts the operator-facing spellings of a backend kind.
func ParseBackendKind(s string) (BackendKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local", "fs", "filesystem":
		return BackendLocal, nil
	case "remote", "s3", "minio":
		return BackendRemote, nil
	default:
		return "", ErrUnknownBackendKind
	}
}

// StorageBackend is a snapshot of the active backend configuration. It is
// re-resolved on every storage operation and must be treated as read-only.
// The struct is comparable so it can key a client cache.
type StorageBackend struct {
	Kind BackendKind

	// LocalRoot is the storage root for the local backend.
	LocalRoot string

	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicDomain, when set, means the bucket is publicly readable under this
	// domain and URLs are returned unsigned.
	PublicDomain string
}

var (
	ErrUnknownBackendKind = errors.New("unknown storage backend kind")
	ErrIncompleteBackend  = errors.New("storage backend descriptor is incomplete")
)

// Validate reports whether the descriptor carries what its kind needs.
func (b StorageBackend) Validate() error {
	switch b.Kind {
	case BackendLocal:
		if b.LocalRoot == "" {
			return ErrIncompleteBackend
		}
	case BackendRemote:
		if b.Endpoint == "" || b.Bucket == "" {
			return ErrIncompleteBackend
		}
	default:
		return ErrUnknownBackendKind
	}
	return nil
}
