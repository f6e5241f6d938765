// Package capability issues and verifies signed, expiring object references.
//
// A token is the triple (path, expires, signature) where signature is the
// hex-encoded HMAC-SHA256 of "path:expires" under a process-wide secret.
// Tokens are stateless; the optional Denylist is the only way to revoke one
// before it expires.
package capability

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// QueryToken and QueryExpires are the query parameters carrying a token.
	QueryToken   = "token"
	QueryExpires = "expires"

	// RoutePrefix is the gateway route signed URLs point at.
	RoutePrefix = "/objects/"

	minSecretLength = 32
)

var (
	ErrTokenMissing = errors.New("capability token missing")
	ErrTokenExpired = errors.New("capability token expired")
	ErrTokenInvalid = errors.New("capability token invalid")
	ErrTokenRevoked = errors.New("capability token revoked")

	ErrWeakSecret            = errors.New("signing secret too short")
	ErrInvalidTTL            = errors.New("token ttl must be positive")
	ErrRevocationUnsupported = errors.New("no denylist configured")
	ErrDenylistUnavailable   = errors.New("denylist unavailable")
)

// Denylist records revoked (path, expires) pairs until they would expire anyway.
type Denylist interface {
	Revoke(ctx context.Context, path string, expires int64) error
	IsRevoked(ctx context.Context, path string, expires int64) (bool, error)
}

// SignedURL is an issued capability.
type SignedURL struct {
	URL       string
	Path      string
	Expires   int64
	Signature string
}

// ExpiresAt returns the expiry as a time.
func (u SignedURL) ExpiresAt() time.Time {
	return time.Unix(u.Expires, 0)
}

// Signer mints and validates capability tokens. It is safe for concurrent use.
type Signer struct {
	secret   []byte
	baseURL  string
	denylist Denylist
	now      func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithDenylist makes Verify consult dl before accepting a token.
func WithDenylist(dl Denylist) Option {
	return func(s *Signer) { s.denylist = dl }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// New creates a Signer. baseURL is the externally reachable origin of the
// delivery gateway, e.g. "https://files.example.com".
func New(secret, baseURL string, opts ...Option) (*Signer, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	s := &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs path for ttl and returns the gateway URL carrying the token.
func (s *Signer) Issue(path string, ttl time.Duration) (SignedURL, error) {
	if ttl <= 0 {
		return SignedURL{}, ErrInvalidTTL
	}
	path = normalize(path)
	expires := s.now().Add(ttl).Unix()
	sig := s.Sign(path, expires)

	q := url.Values{}
	q.Set(QueryExpires, strconv.FormatInt(expires, 10))
	q.Set(QueryToken, sig)

	return SignedURL{
		URL:       s.baseURL + RoutePrefix + escapePath(path) + "?" + q.Encode(),
		Path:      path,
		Expires:   expires,
		Signature: sig,
	}, nil
}

// Sign returns the hex signature for path and expires.
func (s *Signer) Sign(path string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(normalize(path) + ":" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a presented token for path. It returns nil when valid,
// ErrTokenMissing, ErrTokenInvalid (bad signature or malformed expiry),
// ErrTokenExpired, or ErrTokenRevoked. The signature is checked before the
// expiry so a forged token never reports as merely expired.
func (s *Signer) Verify(ctx context.Context, path, expires, signature string) error {
	if expires == "" || signature == "" {
		return ErrTokenMissing
	}
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed expiry", ErrTokenInvalid)
	}

	// Compare the encoded form so a case change in the hex is a mismatch too.
	if !hmac.Equal([]byte(signature), []byte(s.Sign(path, exp))) {
		return ErrTokenInvalid
	}

	if s.now().Unix() > exp {
		return ErrTokenExpired
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, normalize(path), exp)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDenylistUnavailable, err)
		}
		if revoked {
			return ErrTokenRevoked
		}
	}
	return nil
}

// Revoke denylists a token until its natural expiry.
func (s *Signer) Revoke(ctx context.Context, path string, expires int64) error {
	if s.denylist == nil {
		return ErrRevocationUnsupported
	}
	if s.now().Unix() > expires {
		return nil
	}
	return s.denylist.Revoke(ctx, normalize(path), expires)
}

func normalize(path string) string {
	return strings.TrimLeft(path, "/")
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
