package delivery

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// errUnsatisfiable means the Range header is well formed but selects no
// byte of the object.
var errUnsatisfiable = errors.New("range not satisfiable")

// byteRange is an inclusive [start, end] span.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

func (r byteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, size)
}

// parseRange interprets a single-range "bytes=" header against an object of
// size bytes. It returns nil without error when the whole object should be
// served: no header, a syntactically invalid header, another unit, or a
// multi-range request.
func parseRange(header string, size int64) (*byteRange, error) {
	rng, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(rng, ",") {
		return nil, nil
	}
	first, last, ok := strings.Cut(strings.TrimSpace(rng), "-")
	if !ok {
		return nil, nil
	}

	// bytes=-N (last N bytes)
	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n < 0 {
			return nil, nil
		}
		if n == 0 || size == 0 {
			return nil, errUnsatisfiable
		}
		n = min(n, size)
		return &byteRange{start: size - n, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}

	end := size - 1
	if last != "" {
		end, err = strconv.ParseInt(last, 10, 64)
		if err != nil || end < start {
			return nil, nil
		}
		end = min(end, size-1)
	}

	if start >= size {
		return nil, errUnsatisfiable
	}
	return &byteRange{start: start, end: end}, nil
}
