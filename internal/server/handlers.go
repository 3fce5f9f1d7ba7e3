package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/tubely-api/internal/auth"
	"github.com/maauso/tubely-api/internal/ingest"
	"github.com/maauso/tubely-api/internal/video"
)

// Form field names for uploads.
const (
	videoFormField     = "video"
	thumbnailFormField = "thumbnail"
)

const (
	// multipartOverhead is the slack allowed on top of a file limit for
	// multipart boundaries and headers.
	multipartOverhead = 1 << 20
)

// VideoService is the use-case surface the handlers depend on.
type VideoService interface {
	CreateVideo(ctx context.Context, userID, title, description string) (*video.Video, error)
	GetVideo(ctx context.Context, userID, id string) (*video.Video, error)
	ListVideos(ctx context.Context, userID string) ([]*video.Video, error)
	UploadVideo(ctx context.Context, in ingest.UploadVideoInput) (*video.Video, error)
	UploadThumbnail(ctx context.Context, in ingest.UploadThumbnailInput) (*video.Video, error)
}

// Compile-time check that ingest.Service satisfies VideoService.
var _ VideoService = (*ingest.Service)(nil)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service           VideoService
	validator         *validator.Validate
	logger            *slog.Logger
	maxVideoBytes     int64
	maxThumbnailBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxVideoBytes caps the request body of video uploads.
func WithMaxVideoBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxVideoBytes = n
		}
	}
}

// WithMaxThumbnailBytes caps the request body of thumbnail uploads.
func WithMaxThumbnailBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxThumbnailBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service VideoService, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:           service,
		validator:         validator.New(),
		logger:            logger,
		maxVideoBytes:     ingest.DefaultMaxVideoBytes,
		maxThumbnailBytes: ingest.DefaultMaxThumbnailBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateVideo handles POST /api/videos requests.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON", false)
		return
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR", false)
		return
	}

	v, err := h.service.CreateVideo(r.Context(), userID, req.Title, req.Description)
	if err != nil {
		h.writeServiceError(w, err, "failed to create video")
		return
	}

	writeJSON(w, http.StatusCreated, toVideoResponse(v))
}

// ListVideos handles GET /api/videos requests.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	videos, err := h.service.ListVideos(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list videos")
		return
	}

	resp := make([]VideoResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, toVideoResponse(v))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetVideo handles GET /api/videos/{videoID} requests.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	v, err := h.service.GetVideo(r.Context(), userID, videoID)
	if err != nil {
		h.writeServiceError(w, err, "failed to get video")
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

// UploadVideo handles POST /api/video_upload/{videoID} requests.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	upload, ok := h.filePart(w, r, videoFormField, h.maxVideoBytes)
	if !ok {
		return
	}

	v, err := h.service.UploadVideo(r.Context(), ingest.UploadVideoInput{
		VideoID: videoID,
		UserID:  userID,
		Upload:  upload,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to upload video")
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

// UploadThumbnail handles POST /api/thumbnail_upload/{videoID} requests.
func (h *Handlers) UploadThumbnail(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	videoID, ok := h.videoID(w, r)
	if !ok {
		return
	}

	upload, ok := h.filePart(w, r, thumbnailFormField, h.maxThumbnailBytes)
	if !ok {
		return
	}

	v, err := h.service.UploadThumbnail(r.Context(), ingest.UploadThumbnailInput{
		VideoID: videoID,
		UserID:  userID,
		Upload:  upload,
	})
	if err != nil {
		h.writeServiceError(w, err, "failed to upload thumbnail")
		return
	}

	writeJSON(w, http.StatusOK, toVideoResponse(v))
}

// videoID reads and validates the {videoID} path parameter.
func (h *Handlers) videoID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("videoID")
	if err := h.validator.Var(id, "required,uuid"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid video ID", "INVALID_VIDEO_ID", false)
		return "", false
	}
	return id, true
}

// filePart streams the named file part of a multipart request as an Upload.
// The body is not buffered; the service reads the part only after it has
// authorized the request. Requests whose declared length exceeds maxBytes
// are rejected without reading the body.
func (h *Handlers) filePart(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (ingest.Upload, bool) {
	limit := maxBytes + multipartOverhead
	if r.ContentLength > limit {
		writeError(w, http.StatusBadRequest, "file too large", "FILE_TOO_LARGE", false)
		return ingest.Upload{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM", false)
		return ingest.Upload{}, false
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "missing form file "+field, "MISSING_FILE", false)
			return ingest.Upload{}, false
		}
		if err != nil {
			if isBodyTooLarge(err) {
				writeError(w, http.StatusBadRequest, "file too large", "FILE_TOO_LARGE", false)
				return ingest.Upload{}, false
			}
			writeError(w, http.StatusBadRequest, "invalid multipart form", "INVALID_FORM", false)
			return ingest.Upload{}, false
		}
		if part.FormName() != field || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		return ingest.Upload{
			MediaType: part.Header.Get("Content-Type"),
			Size:      ingest.UnknownSize,
			Body:      part,
		}, true
	}
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// writeServiceError maps use-case errors to HTTP responses. Client errors
// are reported verbatim; everything else is logged and reported generically.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error, message string) {
	switch {
	case isBodyTooLarge(err):
		writeError(w, http.StatusBadRequest, "file too large", "FILE_TOO_LARGE", false)
	case errors.Is(err, ingest.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST", false)
	case errors.Is(err, ingest.ErrForbidden):
		writeError(w, http.StatusForbidden, "you do not own this video", "FORBIDDEN", false)
	case errors.Is(err, video.ErrNotFound):
		writeError(w, http.StatusNotFound, "video not found", "VIDEO_NOT_FOUND", false)
	default:
		h.logger.Error(message, slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, message, "INTERNAL_ERROR", ingest.IsRetryable(err))
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string, retryable bool) {
	writeJSON(w, status, ErrorResponse{
		Error:     message,
		Code:      code,
		Retryable: retryable,
	})
}
