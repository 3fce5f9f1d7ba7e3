// Package media inspects and rewrites uploaded video files by driving the
// ffprobe and ffmpeg command line tools.
package media

import "context"

// Aspect is the orientation tag derived from a video's stream geometry.
// It is used as a storage key namespace.
type Aspect string

const (
	// AspectLandscape is the tag assigned to 9:16 streams.
	AspectLandscape Aspect = "landscape"
	// AspectPortrait is the tag assigned to 16:9 streams.
	AspectPortrait Aspect = "portrait"
	// AspectOther is the tag for every other ratio.
	AspectOther Aspect = "other"
)

// String returns the tag value.
func (a Aspect) String() string {
	return string(a)
}

// Prober classifies a local media file by inspecting its container metadata.
type Prober interface {
	// Classify reads the first video stream of the file at path and returns
	// its aspect classification. Failures wrap ErrProbe.
	Classify(ctx context.Context, path string) (Aspect, error)
}

// Transcoder rewrites media files for progressive playback.
type Transcoder interface {
	// FastStart remuxes the file at inputPath so its index sits at the front
	// of the container. Codec streams are copied, not re-encoded. It returns
	// the path of a new output file and never modifies the input.
	// Failures wrap ErrTranscode.
	FastStart(ctx context.Context, inputPath string) (outputPath string, err error)
}
