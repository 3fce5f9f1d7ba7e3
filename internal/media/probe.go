package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Static errors for probe operations.
var (
	// ErrProbe is wrapped by every error returned from FFprobeProber.
	ErrProbe = errors.New("probe failed")
	// ErrNoVideoStream is returned when ffprobe reports no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
	// ErrInvalidDimensions is returned when the stream width or height is missing or not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
)

// DefaultProbeTimeout bounds a single ffprobe run.
const DefaultProbeTimeout = 30 * time.Second

// aspectTolerance is the allowed distance from an exact 16:9 or 9:16 ratio.
const aspectTolerance = 0.01

// FFprobeProber implements Prober using the ffprobe CLI.
type FFprobeProber struct {
	ffprobePath string
	runner      Runner
	timeout     time.Duration
}

// ProberOption configures an FFprobeProber.
type ProberOption func(*FFprobeProber)

// WithProbeRunner sets the runner used to spawn ffprobe.
func WithProbeRunner(r Runner) ProberOption {
	return func(p *FFprobeProber) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithProbeTimeout bounds each ffprobe run. Non-positive values are ignored.
func WithProbeTimeout(d time.Duration) ProberOption {
	return func(p *FFprobeProber) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewFFprobeProber creates a new FFprobeProber.
// If ffprobePath is empty, it defaults to "ffprobe" (found via PATH).
func NewFFprobeProber(ffprobePath string, opts ...ProberOption) *FFprobeProber {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	p := &FFprobeProber{
		ffprobePath: ffprobePath,
		runner:      NewExecRunner(),
		timeout:     DefaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ffprobeOutput is the subset of `ffprobe -print_format json -show_streams`
// that the prober reads.
type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     *int   `json:"width"`
		Height    *int   `json:"height"`
	} `json:"streams"`
}

// Classify implements Prober.Classify.
func (p *FFprobeProber) Classify(ctx context.Context, path string) (Aspect, error) {
	width, height, err := p.Dimensions(ctx, path)
	if err != nil {
		return "", err
	}
	return ClassifyAspect(width, height), nil
}

// Dimensions returns the width and height of the first video stream.
func (p *FFprobeProber) Dimensions(ctx context.Context, path string) (width, height int, err error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "v:0",
		path,
	}

	out, err := p.runner.Run(ctx, p.ffprobePath, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrProbe, err)
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, 0, fmt.Errorf("%w: parse ffprobe output: %w", ErrProbe, err)
	}
	if len(probe.Streams) == 0 {
		return 0, 0, fmt.Errorf("%w: %w", ErrProbe, ErrNoVideoStream)
	}

	stream := probe.Streams[0]
	if stream.Width == nil || stream.Height == nil || *stream.Width <= 0 || *stream.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %w", ErrProbe, ErrInvalidDimensions)
	}

	return *stream.Width, *stream.Height, nil
}

// ClassifyAspect maps stream geometry to an Aspect.
//
// A 16:9 ratio is tagged AspectPortrait and a 9:16 ratio AspectLandscape.
// The tags are reversed relative to their usual meaning; objects already
// stored under these prefixes depend on the current assignment.
func ClassifyAspect(width, height int) Aspect {
	if width <= 0 || height <= 0 {
		return AspectOther
	}

	ratio := float64(width) / float64(height)
	switch {
	case math.Abs(ratio-16.0/9.0) <= aspectTolerance:
		return AspectPortrait
	case math.Abs(ratio-9.0/16.0) <= aspectTolerance:
		return AspectLandscape
	default:
		return AspectOther
	}
}
