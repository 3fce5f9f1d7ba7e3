package ingest

import (
	"errors"
	"log/slog"
	"time"

	"github.com/maauso/tubely-api/internal/media"
)

// Stage is a step of the video ingest pipeline.
type Stage int

// Pipeline stages, in order.
const (
	StageReceived Stage = iota
	StageValidated
	StageStaged
	StageClassified
	StageTranscoded
	StageUploaded
	StageRecordUpdated
	StageSigned
)

var stageNames = map[Stage]string{
	StageReceived:      "received",
	StageValidated:     "validated",
	StageStaged:        "staged",
	StageClassified:    "classified",
	StageTranscoded:    "transcoded",
	StageUploaded:      "uploaded",
	StageRecordUpdated: "record_updated",
	StageSigned:        "signed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// pipeline tracks the progress of one upload and logs each transition.
type pipeline struct {
	logger  *slog.Logger
	current Stage
	started time.Time
}

func newPipeline(logger *slog.Logger) *pipeline {
	return &pipeline{logger: logger, current: StageReceived, started: time.Now()}
}

// step runs fn to enter stage. On failure the pipeline stops in its current
// stage and the error is returned as a *StageError naming stage.
func (p *pipeline) step(stage Stage, fn func() error) error {
	if err := fn(); err != nil {
		attrs := []any{
			slog.String("stage", stage.String()),
			slog.String("last_completed", p.current.String()),
			slog.String("error", err.Error()),
		}
		var procErr *media.ProcessError
		if errors.As(err, &procErr) {
			attrs = append(attrs,
				slog.String("process", procErr.Name),
				slog.Int("exit_code", procErr.ExitCode()),
			)
		}
		if isClientError(err) {
			p.logger.Info("upload rejected", attrs...)
		} else {
			p.logger.Error("upload failed", append(attrs, slog.Bool("retryable", IsRetryable(err)))...)
		}
		return &StageError{Stage: stage, Err: err}
	}

	p.current = stage
	p.logger.Debug("stage complete",
		slog.String("stage", stage.String()),
		slog.Duration("elapsed", time.Since(p.started)),
	)
	return nil
}
