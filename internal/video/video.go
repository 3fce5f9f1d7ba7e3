// Package video provides the Video record for uploaded media and the
// repository port used to persist it, with adapters for memory, SQLite,
// Postgres and DynamoDB.
package video

import (
	"time"

	"github.com/google/uuid"
)

// Video is the persisted record for one uploaded video.
type Video struct {
	// ID is the unique identifier for this video.
	ID string
	// UserID is the owning user.
	UserID string
	// Title is the display title.
	Title string
	// Description is free-form text supplied by the owner.
	Description string
	// ThumbnailURL is the public path of the thumbnail image, if any.
	ThumbnailURL string
	// VideoURL holds the object storage key of the processed video while
	// persisted. Read paths replace it with a signed URL before returning it
	// to clients.
	VideoURL string
	// CreatedAt is when the record was created.
	CreatedAt time.Time
	// UpdatedAt is when the record was last updated.
	UpdatedAt time.Time
}

// New creates a new Video owned by userID with a generated ID.
func New(userID, title, description string) *Video {
	return NewWithID(uuid.NewString(), userID, title, description)
}

// NewWithID creates a new Video with the specified ID.
// Useful for testing or when ID needs to be externally generated.
func NewWithID(id, userID, title, description string) *Video {
	now := time.Now().UTC()
	return &Video{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsOwnedBy reports whether userID owns the video.
func (v *Video) IsOwnedBy(userID string) bool {
	return userID != "" && v.UserID == userID
}

// HasVideo reports whether a processed video has been stored.
func (v *Video) HasVideo() bool {
	return v.VideoURL != ""
}

// SetVideoKey records the storage key of the processed video.
func (v *Video) SetVideoKey(key string) {
	v.VideoURL = key
	v.UpdatedAt = time.Now().UTC()
}

// SetThumbnailURL records the public path of the thumbnail.
func (v *Video) SetThumbnailURL(url string) {
	v.ThumbnailURL = url
	v.UpdatedAt = time.Now().UTC()
}

// Clone creates a copy of the video for safe reads.
func (v *Video) Clone() *Video {
	c := *v
	return &c
}
