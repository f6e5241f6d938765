package storage

import (
	"strings"

	"github.com/zzkuner/fileonline/internal/domain/repository"
)

// ValidateKey rejects keys that are empty, absolute, contain NUL or
// backslashes, or have "." / ".." segments. The check is purely lexical so it
// holds for every backend.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsAny(key, "\x00\\") {
		return repository.ErrInvalidKey
	}
	for _, seg := range strings.Split(key, "/") {
		switch seg {
		case "..":
			return repository.ErrPathTraversal
		case "", ".":
			return repository.ErrInvalidKey
		}
	}
	return nil
}
