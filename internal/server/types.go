// Package server provides the HTTP server for the Tubely API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/tubely-api/internal/video"
)

// CreateVideoRequest is the HTTP request body for creating a video record.
type CreateVideoRequest struct {
	// Title is the display title.
	Title string `json:"title" validate:"required,max=200"`
	// Description is optional free-form text.
	Description string `json:"description" validate:"max=5000"`
}

// VideoResponse is the HTTP representation of a video.
// VideoURL is a time-limited signed URL, present once a video is uploaded.
type VideoResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	VideoURL     string    `json:"video_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
	// Retryable reports whether repeating the request may succeed.
	Retryable bool `json:"retryable"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func toVideoResponse(v *video.Video) VideoResponse {
	return VideoResponse{
		ID:           v.ID,
		UserID:       v.UserID,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.ThumbnailURL,
		VideoURL:     v.VideoURL,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
}
