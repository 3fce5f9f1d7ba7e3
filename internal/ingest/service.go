// Package ingest orchestrates video and thumbnail uploads: it validates the
// request, stages bytes in a private workspace, classifies and remuxes the
// video, stores it under a classification key and returns the record with a
// signed URL.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/tubely-api/internal/media"
	"github.com/maauso/tubely-api/internal/storage"
	"github.com/maauso/tubely-api/internal/token"
	"github.com/maauso/tubely-api/internal/video"
)

// Defaults for Service limits.
const (
	DefaultUploadTimeout        = 2 * time.Minute
	DefaultSignedURLTTL         = time.Hour
	DefaultMaxVideoBytes        = 1 << 30
	DefaultMaxThumbnailBytes    = 10 << 20
	DefaultMaxConcurrentUploads = 2
	DefaultAssetsURLPrefix      = "/assets/"
)

// videoContentType is the Content-Type of stored videos.
const videoContentType = "video/mp4"

// Accepted media types and the file extension each is stored with.
var (
	videoTypes = map[string]string{
		videoContentType: "mp4",
	}
	thumbnailTypes = map[string]string{
		"image/png":  "png",
		"image/jpeg": "jpeg",
	}
)

// UnknownSize marks an Upload whose length is only known once read.
const UnknownSize int64 = -1

// Upload is an inbound file.
type Upload struct {
	// MediaType is the declared Content-Type. Parameters are ignored.
	MediaType string
	// Size is the declared size in bytes, or UnknownSize when the sender
	// streams the body without declaring one.
	Size int64
	// Body streams the file content.
	Body io.Reader
}

// UploadVideoInput contains the parameters of UploadVideo.
type UploadVideoInput struct {
	VideoID string
	UserID  string
	Upload  Upload
}

// UploadThumbnailInput contains the parameters of UploadThumbnail.
type UploadThumbnailInput struct {
	VideoID string
	UserID  string
	Upload  Upload
}

// Dependencies are the collaborators a Service drives.
type Dependencies struct {
	Videos     video.Repository
	Prober     media.Prober
	Transcoder media.Transcoder
	Workspaces storage.WorkspaceProvider
	Objects    storage.ObjectStore
	Assets     storage.FileStore
	Logger     *slog.Logger
}

// Service implements the upload and read use cases for videos.
type Service struct {
	videos     video.Repository
	prober     media.Prober
	transcoder media.Transcoder
	workspaces storage.WorkspaceProvider
	objects    storage.ObjectStore
	assets     storage.FileStore
	logger     *slog.Logger

	uploadTimeout     time.Duration
	signedURLTTL      time.Duration
	maxVideoBytes     int64
	maxThumbnailBytes int64
	assetsURLPrefix   string
	// slots limits the number of pipelines running at once.
	slots chan struct{}
}

// Option configures a Service.
type Option func(*Service)

// WithUploadTimeout bounds the object store write.
func WithUploadTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.uploadTimeout = d
		}
	}
}

// WithSignedURLTTL sets the validity window of returned video URLs.
func WithSignedURLTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.signedURLTTL = d
		}
	}
}

// WithMaxVideoBytes sets the video size ceiling.
func WithMaxVideoBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxVideoBytes = n
		}
	}
}

// WithMaxThumbnailBytes sets the thumbnail size ceiling.
func WithMaxThumbnailBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxThumbnailBytes = n
		}
	}
}

// WithMaxConcurrentUploads sets how many video pipelines may run at once.
func WithMaxConcurrentUploads(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.slots = make(chan struct{}, n)
		}
	}
}

// WithAssetsURLPrefix sets the public path under which thumbnails are served.
func WithAssetsURLPrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.assetsURLPrefix = strings.TrimSuffix(prefix, "/") + "/"
		}
	}
}

// NewService creates a Service from deps.
func NewService(deps Dependencies, opts ...Option) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		videos:            deps.Videos,
		prober:            deps.Prober,
		transcoder:        deps.Transcoder,
		workspaces:        deps.Workspaces,
		objects:           deps.Objects,
		assets:            deps.Assets,
		logger:            logger,
		uploadTimeout:     DefaultUploadTimeout,
		signedURLTTL:      DefaultSignedURLTTL,
		maxVideoBytes:     DefaultMaxVideoBytes,
		maxThumbnailBytes: DefaultMaxThumbnailBytes,
		assetsURLPrefix:   DefaultAssetsURLPrefix,
		slots:             make(chan struct{}, DefaultMaxConcurrentUploads),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateVideo creates an empty video record owned by userID.
func (s *Service) CreateVideo(ctx context.Context, userID, title, description string) (*video.Video, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrForbidden)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrBadRequest)
	}

	v := video.New(userID, title, description)
	if err := s.videos.Create(ctx, v); err != nil {
		s.logger.Error("failed to create video",
			slog.String("video_id", v.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("create video: %w", err)
	}

	s.logger.Info("video created",
		slog.String("video_id", v.ID),
		slog.String("user_id", userID),
	)
	return v, nil
}

// GetVideo returns the caller's video with a freshly signed URL.
func (s *Service) GetVideo(ctx context.Context, userID, id string) (*video.Video, error) {
	v, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.signed(ctx, v)
}

// ListVideos returns the caller's videos, newest first, with signed URLs.
func (s *Service) ListVideos(ctx context.Context, userID string) ([]*video.Video, error) {
	videos, err := s.videos.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	result := make([]*video.Video, 0, len(videos))
	for _, v := range videos {
		sv, err := s.signed(ctx, v)
		if err != nil {
			return nil, err
		}
		result = append(result, sv)
	}
	return result, nil
}

// UploadVideo runs the ingest pipeline for one video upload and returns the
// updated record with its key replaced by a signed URL. Nothing is written
// until the upload passes validation, and the record is updated only after
// the object store write succeeds.
func (s *Service) UploadVideo(ctx context.Context, in UploadVideoInput) (*video.Video, error) {
	logger := s.logger.With(
		slog.String("video_id", in.VideoID),
		slog.String("user_id", in.UserID),
	)
	p := newPipeline(logger)

	var (
		rec       *video.Video
		ext       string
		workspace *storage.Workspace
		staged    string
		aspect    media.Aspect
		processed string
		key       string
		result    *video.Video
	)

	if err := p.step(StageValidated, func() error {
		var err error
		if ext, err = checkUpload(in.Upload, videoTypes, s.maxVideoBytes); err != nil {
			return err
		}
		rec, err = s.findOwned(ctx, in.UserID, in.VideoID)
		return err
	}); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx)
	if err != nil {
		return nil, &StageError{Stage: StageStaged, Err: err}
	}
	defer release()

	if err := p.step(StageStaged, func() error {
		var err error
		if workspace, err = s.workspaces.NewWorkspace(ctx, "upload"); err != nil {
			return err
		}
		staged, err = saveLimited(ctx, workspace, "upload."+ext, in.Upload.Body, s.maxVideoBytes)
		return err
	}); err != nil {
		closeWorkspace(logger, workspace)
		return nil, err
	}
	defer closeWorkspace(logger, workspace)

	if err := p.step(StageClassified, func() error {
		var err error
		aspect, err = s.prober.Classify(ctx, staged)
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.step(StageTranscoded, func() error {
		var err error
		processed, err = s.transcoder.FastStart(ctx, staged)
		return err
	}); err != nil {
		return nil, err
	}

	if err := p.step(StageUploaded, func() error {
		var err error
		if key, err = storage.VideoKey(aspect.String(), ext); err != nil {
			return err
		}
		return s.putFile(ctx, workspace, processed, key)
	}); err != nil {
		return nil, err
	}

	if err := p.step(StageRecordUpdated, func() error {
		// Reload so changes made while the pipeline ran are not overwritten.
		latest, err := s.findOwned(ctx, in.UserID, in.VideoID)
		if err != nil {
			logger.Error("stored object is not referenced by any record",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("reload video: %w", err)
		}
		rec = latest
		rec.SetVideoKey(key)
		if err := s.videos.Save(ctx, rec); err != nil {
			logger.Error("stored object is not referenced by any record",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("update video: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.step(StageSigned, func() error {
		var err error
		result, err = s.signed(ctx, rec)
		return err
	}); err != nil {
		return nil, err
	}

	logger.Info("video uploaded",
		slog.String("key", key),
		slog.String("aspect", aspect.String()),
	)
	return result, nil
}

// UploadThumbnail stores an image under the assets root and points the
// video's thumbnail at it.
func (s *Service) UploadThumbnail(ctx context.Context, in UploadThumbnailInput) (*video.Video, error) {
	logger := s.logger.With(
		slog.String("video_id", in.VideoID),
		slog.String("user_id", in.UserID),
	)

	ext, err := checkUpload(in.Upload, thumbnailTypes, s.maxThumbnailBytes)
	if err != nil {
		return nil, err
	}
	rec, err := s.findOwned(ctx, in.UserID, in.VideoID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(in.Upload.Body, s.maxThumbnailBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	if int64(len(data)) > s.maxThumbnailBytes {
		return nil, fmt.Errorf("%w: thumbnail exceeds %d bytes", ErrBadRequest, s.maxThumbnailBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrBadRequest)
	}

	declared, _, _ := mime.ParseMediaType(in.Upload.MediaType)
	if detected := mimetype.Detect(data); !detected.Is(declared) {
		return nil, fmt.Errorf("%w: content is %s, declared %s", ErrBadRequest, detected.String(), declared)
	}

	name, err := token.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate thumbnail name: %w", err)
	}
	name += "." + ext

	if _, err := s.assets.Save(ctx, name, bytes.NewReader(data)); err != nil {
		logger.Error("failed to save thumbnail", slog.String("error", err.Error()))
		return nil, fmt.Errorf("save thumbnail: %w", err)
	}

	rec.SetThumbnailURL(path.Join(s.assetsURLPrefix, name))
	if err := s.videos.Save(ctx, rec); err != nil {
		logger.Error("failed to update video", slog.String("error", err.Error()))
		return nil, fmt.Errorf("update video: %w", err)
	}

	logger.Info("thumbnail uploaded", slog.String("thumbnail_url", rec.ThumbnailURL))
	return s.signed(ctx, rec)
}

func (s *Service) findOwned(ctx context.Context, userID, id string) (*video.Video, error) {
	v, err := s.videos.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !v.IsOwnedBy(userID) {
		return nil, fmt.Errorf("%w: video %s belongs to another user", ErrForbidden, id)
	}
	return v, nil
}

// signed returns a copy of v whose VideoURL is a signed URL for the stored
// key. Records without a video are returned unchanged.
func (s *Service) signed(ctx context.Context, v *video.Video) (*video.Video, error) {
	c := v.Clone()
	if !c.HasVideo() {
		return c, nil
	}
	url, err := s.objects.PresignGet(ctx, c.VideoURL, s.signedURLTTL)
	if err != nil {
		return nil, err
	}
	c.VideoURL = url
	return c, nil
}

func (s *Service) acquire(ctx context.Context) (func(), error) {
	select {
	case s.slots <- struct{}{}:
		return func() { <-s.slots }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for upload slot: %w", ctx.Err())
	}
}

func (s *Service) putFile(ctx context.Context, ws *storage.Workspace, filePath, key string) error {
	f, err := ws.Open(ctx, filePath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	return s.objects.PutObject(ctx, key, f, videoContentType)
}

// checkUpload validates the declared type and size of u against allowed and
// returns the file extension for its type.
func checkUpload(u Upload, allowed map[string]string, maxBytes int64) (string, error) {
	mediaType, _, err := mime.ParseMediaType(u.MediaType)
	if err != nil {
		return "", fmt.Errorf("%w: invalid media type %q", ErrBadRequest, u.MediaType)
	}
	ext, ok := allowed[mediaType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported media type %s", ErrBadRequest, mediaType)
	}
	if u.Size == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrBadRequest)
	}
	if u.Size > maxBytes {
		return "", fmt.Errorf("%w: upload of %d bytes exceeds %d", ErrBadRequest, u.Size, maxBytes)
	}
	if u.Body == nil {
		return "", fmt.Errorf("%w: missing body", ErrBadRequest)
	}
	return ext, nil
}

// saveLimited writes body to name in store, failing with ErrBadRequest if it
// is larger than maxBytes regardless of the declared size.
func saveLimited(ctx context.Context, store storage.FileStore, name string, body io.Reader, maxBytes int64) (string, error) {
	counter := &countingReader{r: io.LimitReader(body, maxBytes+1)}
	p, err := store.Save(ctx, name, counter)
	if err != nil {
		return "", err
	}
	if counter.n > maxBytes {
		return "", fmt.Errorf("%w: upload exceeds %d bytes", ErrBadRequest, maxBytes)
	}
	if counter.n == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrBadRequest)
	}
	return p, nil
}

func closeWorkspace(logger *slog.Logger, ws *storage.Workspace) {
	if ws == nil {
		return
	}
	if err := ws.Close(); err != nil {
		logger.Warn("failed to remove workspace", slog.String("error", err.Error()))
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
