package video

import (
	"context"
	"errors"
)

// Static errors for repository operations.
var (
	// ErrNotFound is returned when a video cannot be found by ID.
	ErrNotFound = errors.New("video not found")
	// ErrAlreadyExists is returned when creating a video whose ID is taken.
	ErrAlreadyExists = errors.New("video already exists")
)

// Repository defines the interface for video persistence.
type Repository interface {
	// Create inserts a new video.
	// Returns ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, v *Video) error

	// FindByID retrieves a video by its unique identifier.
	// Returns ErrNotFound if the video does not exist.
	FindByID(ctx context.Context, id string) (*Video, error)

	// Save replaces the stored video with v.
	// Returns ErrNotFound if the video does not exist.
	Save(ctx context.Context, v *Video) error

	// ListByUser returns the videos owned by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Video, error)
}
