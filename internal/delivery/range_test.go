package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	const size = 1000

	tests := []struct {
		name    string
		header  string
		want    *byteRange
		wantErr error
	}{
		{"no header", "", nil, nil},
		{"closed range", "bytes=0-99", &byteRange{0, 99}, nil},
		{"single byte", "bytes=500-500", &byteRange{500, 500}, nil},
		{"last byte", "bytes=999-999", &byteRange{999, 999}, nil},
		{"end clamped", "bytes=900-5000", &byteRange{900, 999}, nil},
		{"open range", "bytes=100-", &byteRange{100, 999}, nil},
		{"suffix range", "bytes=-100", &byteRange{900, 999}, nil},
		{"suffix larger than object", "bytes=-5000", &byteRange{0, 999}, nil},
		{"start past end", "bytes=1000-1001", nil, errUnsatisfiable},
		{"open start past end", "bytes=2000-", nil, errUnsatisfiable},
		{"zero suffix", "bytes=-0", nil, errUnsatisfiable},
		{"reversed", "bytes=10-5", nil, nil},
		{"garbage", "bytes=abc-def", nil, nil},
		{"other unit", "items=0-5", nil, nil},
		{"missing dash", "bytes=100", nil, nil},
		{"multi range served whole", "bytes=0-1,5-6", nil, nil},
		{"negative start", "bytes=--5", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRange(tt.header, size)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRange_EmptyObject(t *testing.T) {
	_, err := parseRange("bytes=0-", 0)
	assert.ErrorIs(t, err, errUnsatisfiable)

	_, err = parseRange("bytes=-1", 0)
	assert.ErrorIs(t, err, errUnsatisfiable)

	got, err := parseRange("", 0)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestByteRange_ContentRange(t *testing.T) {
	r := byteRange{start: 10, end: 19}
	assert.Equal(t, int64(10), r.length())
	assert.Equal(t, "bytes 10-19/100", r.contentRange(100))
}
