package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/tubely-api/internal/auth"
	"github.com/maauso/tubely-api/internal/ingest"
	"github.com/maauso/tubely-api/internal/media"
	"github.com/maauso/tubely-api/internal/storage"
	"github.com/maauso/tubely-api/internal/video"
)

const testVideoID = "3f1c1a52-8f7e-4a53-9a3e-0c1d2b3a4f5e"

// mockVideoService implements VideoService for testing.
type mockVideoService struct {
	mock.Mock
}

func (m *mockVideoService) CreateVideo(ctx context.Context, userID, title, description string) (*video.Video, error) {
	args := m.Called(ctx, userID, title, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*video.Video), args.Error(1)
}

func (m *mockVideoService) GetVideo(ctx context.Context, userID, id string) (*video.Video, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*video.Video), args.Error(1)
}

func (m *mockVideoService) ListVideos(ctx context.Context, userID string) ([]*video.Video, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*video.Video), args.Error(1)
}

func (m *mockVideoService) UploadVideo(ctx context.Context, in ingest.UploadVideoInput) (*video.Video, error) {
	body, _ := io.ReadAll(in.Upload.Body)
	args := m.Called(ctx, in.VideoID, in.UserID, in.Upload.MediaType, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*video.Video), args.Error(1)
}

func (m *mockVideoService) UploadThumbnail(ctx context.Context, in ingest.UploadThumbnailInput) (*video.Video, error) {
	body, _ := io.ReadAll(in.Upload.Body)
	args := m.Called(ctx, in.VideoID, in.UserID, in.Upload.MediaType, string(body))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*video.Video), args.Error(1)
}

type testServer struct {
	router http.Handler
	svc    *mockVideoService
	jwt    *auth.JWT
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, cfg Config, opts ...HandlerOption) *testServer {
	t.Helper()
	svc := &mockVideoService{}
	jwt, err := auth.NewJWT("test-secret")
	require.NoError(t, err)

	h := NewHandlers(svc, testLogger(), opts...)
	return &testServer{
		router: NewRouter(h, jwt, testLogger(), cfg),
		svc:    svc,
		jwt:    jwt,
	}
}

func (s *testServer) do(t *testing.T, req *http.Request, userID string) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		token, err := s.jwt.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, target, field, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="upload"`, field))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func sampleVideo(userID string) *video.Video {
	v := video.NewWithID(testVideoID, userID, "title", "desc")
	v.VideoURL = "https://bucket.s3.amazonaws.com/videos/portrait/tok.mp4?X-Amz-Expires=3600"
	return v
}

func TestHealth(t *testing.T) {
	h := NewHandlers(&mockVideoService{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
}

func TestAuth_Required(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	t.Run("missing token", func(t *testing.T) {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil), "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		resp := decodeError(t, rec)
		assert.Equal(t, "UNAUTHORIZED", resp.Code)
		assert.Equal(t, "missing bearer token", resp.Error)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := s.do(t, req, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid bearer token", decodeError(t, rec).Error)
	})

	s.svc.AssertNotCalled(t, "ListVideos", mock.Anything, mock.Anything)
}

func TestCreateVideo_Success(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	created := video.NewWithID(testVideoID, "user-1", "My clip", "about")
	s.svc.On("CreateVideo", mock.Anything, "user-1", "My clip", "about").Return(created, nil)

	body, _ := json.Marshal(CreateVideoRequest{Title: "My clip", Description: "about"})
	req := httptest.NewRequest(http.MethodPost, "/api/videos", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusCreated, rec.Code)
	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, testVideoID, resp.ID)
	assert.Equal(t, "user-1", resp.UserID)
	assert.Empty(t, resp.VideoURL)
}

func TestCreateVideo_InvalidJSON(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/videos", bytes.NewReader([]byte("invalid json")))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decodeError(t, rec).Code)
}

func TestCreateVideo_ValidationError(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	body, _ := json.Marshal(CreateVideoRequest{Description: "no title"})
	req := httptest.NewRequest(http.MethodPost, "/api/videos", bytes.NewReader(body))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, resp.Error, "Title")
	s.svc.AssertNotCalled(t, "CreateVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListVideos(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	s.svc.On("ListVideos", mock.Anything, "user-1").Return([]*video.Video{sampleVideo("user-1")}, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil), "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Contains(t, resp[0].VideoURL, "X-Amz-Expires=3600")
}

func TestListVideos_Empty(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	s.svc.On("ListVideos", mock.Anything, "user-1").Return([]*video.Video{}, nil)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil), "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetVideo(t *testing.T) {
	tests := []struct {
		name     string
		video    *video.Video
		err      error
		wantCode int
		wantErr  string
	}{
		{"success", sampleVideo("user-1"), nil, http.StatusOK, ""},
		{"not found", nil, video.ErrNotFound, http.StatusNotFound, "VIDEO_NOT_FOUND"},
		{"forbidden", nil, fmt.Errorf("%w: not yours", ingest.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"signing failure", nil, storage.ErrSigning, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, DefaultConfig())
			s.svc.On("GetVideo", mock.Anything, "user-1", testVideoID).Return(tt.video, tt.err)

			rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/videos/"+testVideoID, nil), "user-1")

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
			}
		})
	}
}

func TestGetVideo_InvalidID(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/videos/not-a-uuid", nil), "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_VIDEO_ID", decodeError(t, rec).Code)
}

func TestUploadVideo_Success(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	s.svc.On("UploadVideo", mock.Anything, testVideoID, "user-1", "video/mp4", "mp4-bytes").
		Return(sampleVideo("user-1"), nil)

	req := multipartRequest(t, "/api/video_upload/"+testVideoID, "video", "video/mp4", []byte("mp4-bytes"))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.VideoURL, "videos/portrait/")
	s.svc.AssertExpectations(t)
}

func TestUploadVideo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      int
		wantErrCode   string
		wantRetryable bool
	}{
		{
			name:        "bad request",
			err:         &ingest.StageError{Stage: ingest.StageValidated, Err: fmt.Errorf("%w: unsupported media type video/quicktime", ingest.ErrBadRequest)},
			wantCode:    http.StatusBadRequest,
			wantErrCode: "BAD_REQUEST",
		},
		{
			name:        "forbidden",
			err:         &ingest.StageError{Stage: ingest.StageValidated, Err: ingest.ErrForbidden},
			wantCode:    http.StatusForbidden,
			wantErrCode: "FORBIDDEN",
		},
		{
			name:        "not found",
			err:         &ingest.StageError{Stage: ingest.StageValidated, Err: video.ErrNotFound},
			wantCode:    http.StatusNotFound,
			wantErrCode: "VIDEO_NOT_FOUND",
		},
		{
			name:        "transcode failure",
			err:         &ingest.StageError{Stage: ingest.StageTranscoded, Err: fmt.Errorf("%w: ffmpeg exited 1: moov atom not found", media.ErrTranscode)},
			wantCode:    http.StatusInternalServerError,
			wantErrCode: "INTERNAL_ERROR",
		},
		{
			name:          "probe timeout",
			err:           &ingest.StageError{Stage: ingest.StageClassified, Err: fmt.Errorf("%w: %w", media.ErrProbe, context.DeadlineExceeded)},
			wantCode:      http.StatusInternalServerError,
			wantErrCode:   "INTERNAL_ERROR",
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, DefaultConfig())
			s.svc.On("UploadVideo", mock.Anything, testVideoID, "user-1", mock.Anything, mock.Anything).Return(nil, tt.err)

			req := multipartRequest(t, "/api/video_upload/"+testVideoID, "video", "video/mp4", []byte("x"))
			rec := s.do(t, req, "user-1")

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantErrCode, resp.Code)
			assert.Equal(t, tt.wantRetryable, resp.Retryable)
			if tt.wantCode == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "ffmpeg", "internal details must not leak")
			}
		})
	}
}

func TestUploadVideo_MissingFile(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	req := multipartRequest(t, "/api/video_upload/"+testVideoID, "wrong_field", "video/mp4", []byte("x"))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, rec).Code)
}

func TestUploadVideo_NotMultipart(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/video_upload/"+testVideoID, bytes.NewReader([]byte("raw")))
	req.Header.Set("Content-Type", "video/mp4")
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_FORM", decodeError(t, rec).Code)
}

func TestUploadVideo_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, DefaultConfig(), WithMaxVideoBytes(1))

	req := multipartRequest(t, "/api/video_upload/"+testVideoID, "video", "video/mp4", bytes.Repeat([]byte("x"), multipartOverhead+10))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.svc.AssertNotCalled(t, "UploadVideo", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// uploadStub is a VideoService whose UploadVideo behavior is supplied per test.
type uploadStub struct {
	mockVideoService
	upload func(ctx context.Context, in ingest.UploadVideoInput) (*video.Video, error)
}

func (s *uploadStub) UploadVideo(ctx context.Context, in ingest.UploadVideoInput) (*video.Video, error) {
	return s.upload(ctx, in)
}

func newStubServer(t *testing.T, svc VideoService, opts ...HandlerOption) *testServer {
	t.Helper()
	jwt, err := auth.NewJWT("test-secret")
	require.NoError(t, err)
	h := NewHandlers(svc, testLogger(), opts...)
	return &testServer{router: NewRouter(h, jwt, testLogger(), DefaultConfig()), jwt: jwt}
}

// countingBody records how many bytes of a request body were consumed.
type countingBody struct {
	r io.Reader
	n int64
}

func (c *countingBody) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingBody) Close() error { return nil }

func TestUploadVideo_NonOwnerBodyIsNotRead(t *testing.T) {
	var gotUpload ingest.Upload
	svc := &uploadStub{upload: func(_ context.Context, in ingest.UploadVideoInput) (*video.Video, error) {
		gotUpload = in.Upload
		return nil, &ingest.StageError{Stage: ingest.StageValidated, Err: ingest.ErrForbidden}
	}}
	s := newStubServer(t, svc)

	payload := bytes.Repeat([]byte("x"), 11<<20)
	req := multipartRequest(t, "/api/video_upload/"+testVideoID, "video", "video/mp4", payload)
	body := &countingBody{r: req.Body}
	req.Body = body

	rec := s.do(t, req, "intruder")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
	assert.Equal(t, "video/mp4", gotUpload.MediaType)
	assert.Equal(t, ingest.UnknownSize, gotUpload.Size)
	assert.Less(t, body.n, int64(multipartOverhead), "only part headers should have been read")
}

func TestUploadVideo_StreamsPartToService(t *testing.T) {
	var got []byte
	svc := &uploadStub{upload: func(_ context.Context, in ingest.UploadVideoInput) (*video.Video, error) {
		var err error
		got, err = io.ReadAll(in.Upload.Body)
		if err != nil {
			return nil, err
		}
		return sampleVideo(in.UserID), nil
	}}
	s := newStubServer(t, svc)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "ignored"))
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
	header.Set("Content-Type", "video/mp4")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte("mp4-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/video_upload/"+testVideoID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp4-bytes", string(got))
}

func TestUploadVideo_UndeclaredLengthTooLarge(t *testing.T) {
	svc := &uploadStub{upload: func(_ context.Context, in ingest.UploadVideoInput) (*video.Video, error) {
		if _, err := io.Copy(io.Discard, in.Upload.Body); err != nil {
			return nil, &ingest.StageError{Stage: ingest.StageStaged, Err: fmt.Errorf("write file: %w", err)}
		}
		return sampleVideo(in.UserID), nil
	}}
	s := newStubServer(t, svc, WithMaxVideoBytes(1))

	req := multipartRequest(t, "/api/video_upload/"+testVideoID, "video", "video/mp4", bytes.Repeat([]byte("x"), 2*multipartOverhead))
	req.ContentLength = -1
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decodeError(t, rec).Code)
}

func TestUploadThumbnail_Success(t *testing.T) {
	s := newTestServer(t, DefaultConfig())
	v := sampleVideo("user-1")
	v.ThumbnailURL = "/assets/tok.png"
	s.svc.On("UploadThumbnail", mock.Anything, testVideoID, "user-1", "image/png", "png-bytes").Return(v, nil)

	req := multipartRequest(t, "/api/thumbnail_upload/"+testVideoID, "thumbnail", "image/png", []byte("png-bytes"))
	rec := s.do(t, req, "user-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp VideoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "/assets/tok.png", resp.ThumbnailURL)
}

func TestAssets_Served(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "tok.png"), []byte("png-bytes"), 0o600))

	cfg := DefaultConfig()
	cfg.AssetsRoot = root
	s := newTestServer(t, cfg)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/assets/tok.png", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png-bytes", rec.Body.String())
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t, Config{AllowedOrigins: []string{"https://example.com"}})

	// Test with allowed origin
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := s.do(t, req, "")

	assert.Equal(t, "https://example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	// Test OPTIONS preflight
	req = httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "https://example.com")
	rec = s.do(t, req, "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	// Create a handler that panics
	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	handler := RecoveryMiddleware(testLogger())(panicHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()

	// Should not panic
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Less(t, time.Since(start), time.Second)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
}
