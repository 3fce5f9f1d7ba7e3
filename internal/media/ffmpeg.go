package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrTranscode is wrapped by every error returned from FFmpegTranscoder.
var ErrTranscode = errors.New("transcode failed")

// DefaultTranscodeTimeout bounds a single ffmpeg remux.
const DefaultTranscodeTimeout = 5 * time.Minute

// fastStartSuffix is inserted before the extension of the remuxed output.
const fastStartSuffix = ".processing"

// FFmpegTranscoder implements Transcoder using the ffmpeg CLI.
type FFmpegTranscoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	runner     Runner
	timeout    time.Duration
}

// TranscoderOption configures an FFmpegTranscoder.
type TranscoderOption func(*FFmpegTranscoder)

// WithTranscodeRunner sets the runner used to spawn ffmpeg.
func WithTranscodeRunner(r Runner) TranscoderOption {
	return func(t *FFmpegTranscoder) {
		if r != nil {
			t.runner = r
		}
	}
}

// WithTranscodeTimeout bounds each ffmpeg run. Non-positive values are ignored.
func WithTranscodeTimeout(d time.Duration) TranscoderOption {
	return func(t *FFmpegTranscoder) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewFFmpegTranscoder creates a new FFmpegTranscoder.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegTranscoder(ffmpegPath string, opts ...TranscoderOption) *FFmpegTranscoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	t := &FFmpegTranscoder{
		ffmpegPath: ffmpegPath,
		runner:     NewExecRunner(),
		timeout:    DefaultTranscodeTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FastStart implements Transcoder.FastStart.
//
// The output path is derived from the input path, so two concurrent calls for
// the same input write to the same file. Callers give each upload its own
// working directory.
func (t *FFmpegTranscoder) FastStart(ctx context.Context, inputPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	outputPath := FastStartPath(inputPath)

	args := []string{
		"-y",            // Overwrite output file
		"-i", inputPath, // Input file
		"-c", "copy", // Copy streams without re-encoding
		"-movflags", "faststart", // Move the moov atom to the front
		"-f", "mp4", // Force output container
		outputPath,
	}

	if _, err := t.runner.Run(ctx, t.ffmpegPath, args...); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscode, err)
	}

	return outputPath, nil
}

// FastStartPath returns the output path FastStart writes for inputPath.
func FastStartPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + fastStartSuffix + ext
}
