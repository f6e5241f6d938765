package transcoder

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultFFmpegConfig(t *testing.T) {
	cfg := DefaultFFmpegConfig()

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"FFmpegPath", cfg.FFmpegPath, "ffmpeg"},
		{"VideoHeight", cfg.VideoHeight, 720},
		{"VideoCodec", cfg.VideoCodec, "libx264"},
		{"VideoProfile", cfg.VideoProfile, "baseline"},
		{"VideoLevel", cfg.VideoLevel, "3.0"},
		{"VideoPreset", cfg.VideoPreset, "fast"},
		{"AudioCodec", cfg.AudioCodec, "aac"},
		{"HLSSegmentDuration", cfg.HLSSegmentDuration, 6},
		{"HLSPlaylistType", cfg.HLSPlaylistType, "vod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, expected %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFFmpegTranscoder_ValidateInput(t *testing.T) {
	transcoder := NewFFmpegTranscoder(DefaultFFmpegConfig())

	t.Run("non-existent file returns error", func(t *testing.T) {
		err := transcoder.validateInput("/non/existent/file.mp4")
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("directory returns error", func(t *testing.T) {
		tmpDir := t.TempDir()
		err := transcoder.validateInput(tmpDir)
		if err == nil {
			t.Error("expected error when input is a directory")
		}
	})

	t.Run("existing file succeeds", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "test.mp4")
		if err := os.WriteFile(tmpFile, []byte("dummy"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := transcoder.validateInput(tmpFile)
		if err != nil {
			t.Errorf("unexpected error for existing file: %v", err)
		}
	})
}

func TestFFmpegTranscoder_ValidateOutputDir(t *testing.T) {
	transcoder := NewFFmpegTranscoder(DefaultFFmpegConfig())

	t.Run("non-existent directory returns error", func(t *testing.T) {
		err := transcoder.validateOutputDir("/non/existent/dir")
		if err == nil {
			t.Error("expected error for non-existent directory")
		}
	})

	t.Run("file instead of directory returns error", func(t *testing.T) {
		tmpFile := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(tmpFile, []byte("dummy"), 0644); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := transcoder.validateOutputDir(tmpFile)
		if err == nil {
			t.Error("expected error when output is a file")
		}
	})

	t.Run("existing directory succeeds", func(t *testing.T) {
		tmpDir := t.TempDir()
		err := transcoder.validateOutputDir(tmpDir)
		if err != nil {
			t.Errorf("unexpected error for existing directory: %v", err)
		}
	})
}

func TestFFmpegTranscoder_BuildFFmpegArgs(t *testing.T) {
	cfg := DefaultFFmpegConfig()
	transcoder := NewFFmpegTranscoder(cfg)

	inputPath := "/input/video.mp4"
	manifestPath := "/output/playlist.m3u8"
	segmentPattern := "/output/segment%03d.ts"

	args := transcoder.buildFFmpegArgs(inputPath, manifestPath, segmentPattern)

	expectedArgs := []string{
		"-hide_banner",
		"-nostdin",
		"-i", "/input/video.mp4",
		"-vf", "scale=-2:720",
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-pix_fmt", "yuv420p",
		"-preset", "fast",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", "6",
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", "/output/segment%03d.ts",
		"-y",
		"/output/playlist.m3u8",
	}

	if len(args) != len(expectedArgs) {
		t.Fatalf("arg count mismatch: got %d, expected %d", len(args), len(expectedArgs))
	}

	for i, expected := range expectedArgs {
		if args[i] != expected {
			t.Errorf("arg[%d]: got %q, expected %q", i, args[i], expected)
		}
	}
}

func TestFFmpegTranscoder_BuildFFmpegArgs_CustomConfig(t *testing.T) {
	cfg := FFmpegConfig{
		FFmpegPath:         "/usr/local/bin/ffmpeg",
		VideoHeight:        1080,
		VideoCodec:         "libx265",
		VideoProfile:       "main",
		VideoLevel:         "4.1",
		VideoPreset:        "slow",
		AudioCodec:         "opus",
		HLSSegmentDuration: 10,
		HLSPlaylistType:    "event",
	}
	transcoder := NewFFmpegTranscoder(cfg)

	args := transcoder.buildFFmpegArgs("/in.mp4", "/out/playlist.m3u8", "/out/seg_%03d.ts")

	// Verify custom values follow their flags
	tests := []struct {
		name     string
		flag     string
		expected string
	}{
		{"scale filter uses custom height", "-vf", "scale=-2:1080"},
		{"video codec", "-c:v", "libx265"},
		{"profile", "-profile:v", "main"},
		{"level", "-level", "4.1"},
		{"preset", "-preset", "slow"},
		{"audio codec", "-c:a", "opus"},
		{"hls_time", "-hls_time", "10"},
		{"hls_playlist_type", "-hls_playlist_type", "event"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := argAfter(args, tt.flag); got != tt.expected {
				t.Errorf("got %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestFFmpegTranscoder_BuildFFmpegArgs_SourceResolution(t *testing.T) {
	cfg := DefaultFFmpegConfig()
	cfg.VideoHeight = 0

	args := NewFFmpegTranscoder(cfg).buildFFmpegArgs("/in.mp4", "/out/playlist.m3u8", "/out/segment%03d.ts")

	for _, a := range args {
		if a == "-vf" {
			t.Fatal("expected no scale filter when VideoHeight is 0")
		}
	}
}

func TestFFmpegTranscoder_CollectSegments(t *testing.T) {
	transcoder := NewFFmpegTranscoder(DefaultFFmpegConfig())

	t.Run("collects ts files", func(t *testing.T) {
		tmpDir := t.TempDir()

		// Create mock segment files out of order
		segmentFiles := []string{"segment002.ts", "segment000.ts", "segment001.ts"}
		for _, name := range segmentFiles {
			path := filepath.Join(tmpDir, name)
			if err := os.WriteFile(path, []byte("dummy"), 0644); err != nil {
				t.Fatalf("failed to create segment file: %v", err)
			}
		}

		// Create non-segment files that should be ignored
		mustWriteFile(t, filepath.Join(tmpDir, "playlist.m3u8"), []byte("dummy"))
		mustWriteFile(t, filepath.Join(tmpDir, "other.txt"), []byte("dummy"))

		segments, err := transcoder.collectSegments(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(segments) != 3 {
			t.Fatalf("expected 3 segments, got %d", len(segments))
		}
		if filepath.Base(segments[0]) != "segment000.ts" {
			t.Errorf("segments not sorted: %v", segments)
		}
	})

	t.Run("returns error when no segments found", func(t *testing.T) {
		tmpDir := t.TempDir()

		// Create only non-ts files
		mustWriteFile(t, filepath.Join(tmpDir, "playlist.m3u8"), []byte("dummy"))

		_, err := transcoder.collectSegments(tmpDir)
		if err == nil {
			t.Error("expected error when no segments found")
		}
	})

	t.Run("ignores subdirectories", func(t *testing.T) {
		tmpDir := t.TempDir()

		// Create a segment file
		mustWriteFile(t, filepath.Join(tmpDir, "segment000.ts"), []byte("dummy"))

		// Create a subdirectory (should be ignored)
		os.Mkdir(filepath.Join(tmpDir, "subdir"), 0755)

		segments, err := transcoder.collectSegments(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(segments) != 1 {
			t.Errorf("expected 1 segment, got %d", len(segments))
		}
	})
}

func TestFFmpegTranscoder_TranscodeToHLS_ValidationErrors(t *testing.T) {
	transcoder := NewFFmpegTranscoder(DefaultFFmpegConfig())
	ctx := context.Background()

	t.Run("returns error for non-existent input", func(t *testing.T) {
		outputDir := t.TempDir()
		_, err := transcoder.TranscodeToHLS(ctx, "/non/existent/input.mp4", outputDir)
		if err == nil {
			t.Error("expected error for non-existent input")
		}
	})

	t.Run("returns error for non-existent output directory", func(t *testing.T) {
		// Create a temporary input file
		inputFile := filepath.Join(t.TempDir(), "input.mp4")
		mustWriteFile(t, inputFile, []byte("dummy"))

		_, err := transcoder.TranscodeToHLS(ctx, inputFile, "/non/existent/output")
		if err == nil {
			t.Error("expected error for non-existent output directory")
		}
	})
}

func TestFFmpegTranscoder_TranscodeToHLS_ContextCancellation(t *testing.T) {
	// Use a non-existent ffmpeg path to make the command fail
	cfg := DefaultFFmpegConfig()
	cfg.FFmpegPath = "/non/existent/ffmpeg"
	transcoder := NewFFmpegTranscoder(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	inputFile := filepath.Join(t.TempDir(), "input.mp4")
	mustWriteFile(t, inputFile, []byte("dummy"))
	outputDir := t.TempDir()

	_, err := transcoder.TranscodeToHLS(ctx, inputFile, outputDir)
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestFFmpegTranscoder_TranscodeToHLS_NonZeroExit(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, "echo 'moov atom not found' >&2\nexit 1")
	cfg := DefaultFFmpegConfig()
	cfg.FFmpegPath = ffmpeg

	inputFile := filepath.Join(t.TempDir(), "input.mp4")
	mustWriteFile(t, inputFile, []byte("not a video"))

	_, err := NewFFmpegTranscoder(cfg).TranscodeToHLS(context.Background(), inputFile, t.TempDir())
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Fatalf("expected ErrTranscodeFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "moov atom not found") {
		t.Errorf("expected stderr tail in error, got %v", err)
	}
}

func TestFFmpegTranscoder_TranscodeToHLS_NoSegments(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, "exit 0")
	cfg := DefaultFFmpegConfig()
	cfg.FFmpegPath = ffmpeg

	inputFile := filepath.Join(t.TempDir(), "input.mp4")
	mustWriteFile(t, inputFile, []byte("dummy"))

	_, err := NewFFmpegTranscoder(cfg).TranscodeToHLS(context.Background(), inputFile, t.TempDir())
	if !errors.Is(err, ErrTranscodeFailed) {
		t.Errorf("expected ErrTranscodeFailed, got %v", err)
	}
}

func TestFFmpegTranscoder_TranscodeToHLS_Timeout(t *testing.T) {
	ffmpeg := fakeFFmpeg(t, "exec sleep 10")
	cfg := DefaultFFmpegConfig()
	cfg.FFmpegPath = ffmpeg

	inputFile := filepath.Join(t.TempDir(), "input.mp4")
	mustWriteFile(t, inputFile, []byte("dummy"))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewFFmpegTranscoder(cfg).TranscodeToHLS(ctx, inputFile, t.TempDir())
	if !errors.Is(err, ErrTranscodeTimeout) {
		t.Fatalf("expected ErrTranscodeTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("process not killed promptly: %v", elapsed)
	}
}

func TestTailBuffer(t *testing.T) {
	b := &tailBuffer{limit: 5}
	b.Write([]byte("abc"))
	b.Write([]byte("defgh"))

	if got := b.String(); got != "defgh" {
		t.Errorf("String() = %q, want %q", got, "defgh")
	}
}

func TestFFmpegTranscoder_Integration(t *testing.T) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not in PATH")
	}
	if testing.Short() {
		t.Skip("skipping ffmpeg integration test in short mode")
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "input.mp4")
	gen := exec.Command(ffmpeg, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=320x240:rate=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=3",
		"-c:v", "libx264", "-c:a", "aac", "-shortest", "-y", input)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate sample video: %v: %s", err, out)
	}

	cfg := DefaultFFmpegConfig()
	cfg.FFmpegPath = ffmpeg
	cfg.VideoHeight = 240
	tr := NewFFmpegTranscoder(cfg)

	t.Run("valid video", func(t *testing.T) {
		outDir := t.TempDir()
		out, err := tr.TranscodeToHLS(context.Background(), input, outDir)
		if err != nil {
			t.Fatalf("TranscodeToHLS() unexpected error = %v", err)
		}
		manifest, err := os.ReadFile(out.ManifestPath)
		if err != nil {
			t.Fatalf("read manifest: %v", err)
		}
		if !strings.Contains(string(manifest), "segment000.ts") {
			t.Errorf("manifest does not list a segment:\n%s", manifest)
		}
		if !strings.Contains(string(manifest), "#EXT-X-ENDLIST") {
			t.Errorf("manifest missing ENDLIST:\n%s", manifest)
		}
	})

	t.Run("corrupt input", func(t *testing.T) {
		corrupt := filepath.Join(t.TempDir(), "corrupt.mp4")
		if err := os.WriteFile(corrupt, []byte("definitely not an mp4"), 0644); err != nil {
			t.Fatalf("failed to write corrupt input: %v", err)
		}

		_, err := tr.TranscodeToHLS(context.Background(), corrupt, t.TempDir())
		if !errors.Is(err, ErrTranscodeFailed) {
			t.Errorf("expected ErrTranscodeFailed, got %v", err)
		}
	})
}

// fakeFFmpeg writes a shell script standing in for the ffmpeg binary.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write fake ffmpeg: %v", err)
	}
	return path
}

func argAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func mustWriteFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
