package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/maauso/tubely-api/internal/video"
)

// Static errors for client-caused failures.
var (
	// ErrBadRequest is returned for a malformed, oversized or wrongly typed
	// upload.
	ErrBadRequest = errors.New("bad request")
	// ErrForbidden is returned when the caller does not own the target video.
	ErrForbidden = errors.New("forbidden")
)

// StageError records the pipeline stage at which an upload failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err was caused by a timeout, so the same
// request may succeed if sent again.
func IsRetryable(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// isClientError reports whether err was caused by the request rather than a
// collaborator.
func isClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, video.ErrNotFound)
}
