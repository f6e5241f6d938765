package transcoder

import (
	"context"
	"errors"
)

// ManifestName is the file name of the generated HLS playlist.
const ManifestName = "playlist.m3u8"

var (
	// ErrTranscodeFailed is returned when the encoder exits non-zero or
	// produces no usable output.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrTranscodeTimeout is returned when the context deadline expires
	// before the encoder finishes.
	ErrTranscodeTimeout = errors.New("transcode timed out")
)

// HLSOutput contains the result of an HLS transcoding operation.
type HLSOutput struct {
	// ManifestPath is the path to the generated .m3u8 manifest file.
	ManifestPath string
	// SegmentPaths contains paths to all generated .ts segment files.
	SegmentPaths []string
}

// Files returns every segment followed by the manifest, the order in which
// they must be published so the playlist never references a missing segment.
func (o *HLSOutput) Files() []string {
	files := make([]string, 0, len(o.SegmentPaths)+1)
	files = append(files, o.SegmentPaths...)
	return append(files, o.ManifestPath)
}

// Transcoder defines the interface for video transcoding operations.
type Transcoder interface {
	// TranscodeToHLS converts an input video file to HLS format.
	// It generates a .m3u8 manifest and .ts segment files in outputDir,
	// which must exist. The caller bounds the run time through ctx.
	TranscodeToHLS(ctx context.Context, inputPath, outputDir string) (*HLSOutput, error)
}
