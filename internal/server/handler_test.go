package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/capstone/vsl/internal/dictionary"
	"github.com/capstone/vsl/internal/indexsync"
	"github.com/capstone/vsl/internal/inference"
	mock_dictionary "github.com/capstone/vsl/internal/mocks/dictionary"
	mock_inference "github.com/capstone/vsl/internal/mocks/inference"
	mock_search "github.com/capstone/vsl/internal/mocks/search"
	"github.com/capstone/vsl/internal/pipeline"
	"github.com/capstone/vsl/internal/search"
)

type testMocks struct {
	gesture *mock_inference.MockGestureRecognizer
	accent  *mock_inference.MockAccentCorrector
	repo    *mock_dictionary.MockRepository
	index   *mock_search.MockIndex
}

func newTestServer(t *testing.T) (*httptest.Server, testMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := testMocks{
		gesture: mock_inference.NewMockGestureRecognizer(ctrl),
		accent:  mock_inference.NewMockAccentCorrector(ctrl),
		repo:    mock_dictionary.NewMockRepository(ctrl),
		index:   mock_search.NewMockIndex(ctrl),
	}
	synchronizer := indexsync.New(m.repo, m.index, indexsync.Options{QueueCapacity: 10})
	h, err := NewHandler(pipeline.New(m.gesture, m.accent), synchronizer)
	require.NoError(t, err)

	server := httptest.NewServer(h.Routes())
	t.Cleanup(server.Close)
	return server, m
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, method, url, contentType string, body io.Reader) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var got envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return resp.StatusCode, got
}

const framesBody = `{"frames":[{"landmarks":[{"x":0.1,"y":0.2,"z":0.3}]}],"current_text":"xin"}`

func TestHandler_ProcessGesture(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		setupMocks  func(m testMocks)
		wantStatus  int
		wantMessage string
		wantResult  *pipeline.Result
	}{
		{
			name: "success",
			body: framesBody,
			setupMocks: func(m testMocks) {
				m.gesture.EXPECT().
					RecognizeFrames(gomock.Any(), []inference.Frame{{Landmarks: []inference.Landmark{{X: 0.1, Y: 0.2, Z: 0.3}}}}, "xin").
					Return("coogiaso", nil)
				m.accent.EXPECT().AddAccents(gomock.Any(), "coogiaso", "xin").Return("cô giáo", nil)
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Gesture recognition completed successfully",
			wantResult: &pipeline.Result{
				RawText:       "coogiaso",
				CorrectedText: "cô giáo",
				Status:        pipeline.StatusSuccess,
				Message:       "Gesture recognition completed successfully",
			},
		},
		{
			name:        "empty frames",
			body:        `{"frames":[]}`,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "frames cannot be empty",
		},
		{
			name:        "frame without landmarks",
			body:        `{"frames":[{"landmarks":[]}]}`,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "landmarks must contain at least 1 item",
		},
		{
			name:        "invalid json",
			body:        `{"frames":`,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid JSON body",
		},
		{
			name: "gesture service failure",
			body: framesBody,
			setupMocks: func(m testMocks) {
				m.gesture.EXPECT().RecognizeFrames(gomock.Any(), gomock.Any(), "xin").Return("", errors.New("connection refused"))
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Gesture Recognition Model error: Gesture recognition service is unavailable",
			wantResult: &pipeline.Result{
				Status:      pipeline.StatusFailure,
				FailedStage: pipeline.StageGesture,
				Message:     "Gesture recognition service is unavailable",
			},
		},
		{
			name: "accent service failure keeps raw text",
			body: framesBody,
			setupMocks: func(m testMocks) {
				m.gesture.EXPECT().RecognizeFrames(gomock.Any(), gomock.Any(), "xin").Return("coogiaso", nil)
				m.accent.EXPECT().AddAccents(gomock.Any(), "coogiaso", "xin").Return("", errors.New("timeout"))
			},
			wantStatus:  http.StatusServiceUnavailable,
			wantMessage: "Accent Correction Model error: Accent correction service is unavailable",
			wantResult: &pipeline.Result{
				RawText:     "coogiaso",
				Status:      pipeline.StatusPartialFailure,
				FailedStage: pipeline.StageCorrection,
				Message:     "Accent correction service is unavailable",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, m := newTestServer(t)
			tt.setupMocks(m)

			status, got := doRequest(t, http.MethodPost, server.URL+"/api/gesture/process", "application/json", strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantStatus == http.StatusOK, got.Success)
			assert.Equal(t, tt.wantMessage, got.Message)
			if tt.wantResult != nil {
				var result pipeline.Result
				require.NoError(t, json.Unmarshal(got.Data, &result))
				assert.Equal(t, *tt.wantResult, result)
			}
		})
	}
}

func TestHandler_ProcessVideo(t *testing.T) {
	t.Run("uploads the video and passes current text", func(t *testing.T) {
		server, m := newTestServer(t)
		m.gesture.EXPECT().RecognizeVideo(gomock.Any(), gomock.Any(), "clip.mp4").
			DoAndReturn(func(ctx context.Context, video io.Reader, fileName string) (string, error) {
				content, err := io.ReadAll(video)
				require.NoError(t, err)
				assert.Equal(t, "video-bytes", string(content))
				return "camon", nil
			})
		m.accent.EXPECT().AddAccents(gomock.Any(), "camon", "xin chào").Return("cảm ơn", nil)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		part, err := writer.CreateFormFile("file", "clip.mp4")
		require.NoError(t, err)
		_, _ = part.Write([]byte("video-bytes"))
		require.NoError(t, writer.WriteField("current_text", "xin chào"))
		require.NoError(t, writer.Close())

		status, got := doRequest(t, http.MethodPost, server.URL+"/api/gesture/video", writer.FormDataContentType(), &body)
		assert.Equal(t, http.StatusOK, status)
		var result pipeline.Result
		require.NoError(t, json.Unmarshal(got.Data, &result))
		assert.Equal(t, "cảm ơn", result.CorrectedText)
	})

	t.Run("missing file", func(t *testing.T) {
		server, _ := newTestServer(t)

		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		require.NoError(t, writer.WriteField("current_text", "xin"))
		require.NoError(t, writer.Close())

		status, got := doRequest(t, http.MethodPost, server.URL+"/api/gesture/video", writer.FormDataContentType(), &body)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Video file is required", got.Message)
	})
}

func TestHandler_SearchDictionary(t *testing.T) {
	entries := []dictionary.Entry{
		{ID: 1, Word: "cô", Definition: "aunt", MediaRef: "https://cdn.example.com/1.mp4"},
		{ID: 2, Word: "cô giáo", Definition: "teacher", MediaRef: "https://cdn.example.com/2.mp4"},
	}

	tests := []struct {
		name        string
		query       string
		setupMocks  func(m testMocks)
		wantStatus  int
		wantMessage string
		wantData    []entryResponse
	}{
		{
			name:        "blank query returns an empty list",
			query:       "%20",
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusOK,
			wantMessage: "Please provide a search query",
			wantData:    []entryResponse{},
		},
		{
			name:  "index results",
			query: "co%20giao",
			setupMocks: func(m testMocks) {
				m.index.EXPECT().Search(gomock.Any(), "co giao", 50).Return([]search.Hit{{ID: 2, Score: 3}, {ID: 1, Score: 1}}, nil)
				m.repo.EXPECT().FindByIDs(gomock.Any(), []int64{2, 1}).Return(entries, nil)
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Found 2 results",
			wantData: []entryResponse{
				{ID: 2, Word: "cô giáo", Definition: "teacher", VideoURL: "https://cdn.example.com/2.mp4"},
				{ID: 1, Word: "cô", Definition: "aunt", VideoURL: "https://cdn.example.com/1.mp4"},
			},
		},
		{
			name:  "index down falls back to the store",
			query: "gi%C3%A1o",
			setupMocks: func(m testMocks) {
				m.index.EXPECT().Search(gomock.Any(), "giáo", 50).Return(nil, errors.New("connection refused"))
				m.repo.EXPECT().SearchContains(gomock.Any(), "giáo", 50).Return(entries[1:], nil)
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Found 1 results",
			wantData: []entryResponse{
				{ID: 2, Word: "cô giáo", Definition: "teacher", VideoURL: "https://cdn.example.com/2.mp4"},
			},
		},
		{
			name:  "store failure",
			query: "x",
			setupMocks: func(m testMocks) {
				m.index.EXPECT().Search(gomock.Any(), "x", 50).Return(nil, errors.New("connection refused"))
				m.repo.EXPECT().SearchContains(gomock.Any(), "x", 50).Return(nil, errors.New("db down"))
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to search dictionary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, m := newTestServer(t)
			tt.setupMocks(m)

			status, got := doRequest(t, http.MethodGet, server.URL+"/api/dictionary/search?query="+tt.query, "", nil)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, got.Message)
			if tt.wantData != nil {
				var data []entryResponse
				require.NoError(t, json.Unmarshal(got.Data, &data))
				assert.Equal(t, tt.wantData, data)
			}
		})
	}
}

func TestHandler_WriteEntry(t *testing.T) {
	validBody := `{"word":"cô giáo","definition":"teacher","video_url":"https://cdn.example.com/2.mp4"}`

	tests := []struct {
		name        string
		method      string
		path        string
		body        string
		setupMocks  func(m testMocks)
		wantStatus  int
		wantMessage string
	}{
		{
			name:   "create",
			method: http.MethodPost,
			path:   "/api/dictionary",
			body:   validBody,
			setupMocks: func(m testMocks) {
				m.repo.EXPECT().Save(gomock.Any(), &dictionary.Entry{Word: "cô giáo", Definition: "teacher", MediaRef: "https://cdn.example.com/2.mp4"}).
					DoAndReturn(func(ctx context.Context, e *dictionary.Entry) error {
						e.ID = 2
						e.Version = 1
						return nil
					})
			},
			wantStatus:  http.StatusCreated,
			wantMessage: "Dictionary entry created",
		},
		{
			name:        "create without video",
			method:      http.MethodPost,
			path:        "/api/dictionary",
			body:        `{"word":"cô giáo"}`,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "video_url is a required field",
		},
		{
			name:        "create with invalid url",
			method:      http.MethodPost,
			path:        "/api/dictionary",
			body:        `{"word":"cô giáo","video_url":"not a url"}`,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "video_url must be a valid URL",
		},
		{
			name:   "update",
			method: http.MethodPut,
			path:   "/api/dictionary/2",
			body:   validBody,
			setupMocks: func(m testMocks) {
				m.repo.EXPECT().Save(gomock.Any(), gomock.Any()).
					DoAndReturn(func(ctx context.Context, e *dictionary.Entry) error {
						assert.Equal(t, int64(2), e.ID)
						e.Version = 4
						return nil
					})
			},
			wantStatus:  http.StatusOK,
			wantMessage: "Dictionary entry updated",
		},
		{
			name:   "update missing entry",
			method: http.MethodPut,
			path:   "/api/dictionary/99",
			body:   validBody,
			setupMocks: func(m testMocks) {
				m.repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(fmt.Errorf("update dictionary id=99: %w", dictionary.ErrNotFound))
			},
			wantStatus:  http.StatusNotFound,
			wantMessage: "Dictionary entry 99 not found",
		},
		{
			name:        "update with invalid id",
			method:      http.MethodPut,
			path:        "/api/dictionary/abc",
			body:        validBody,
			setupMocks:  func(m testMocks) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "id must be a positive integer",
		},
		{
			name:   "store failure",
			method: http.MethodPost,
			path:   "/api/dictionary",
			body:   validBody,
			setupMocks: func(m testMocks) {
				m.repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("db down"))
			},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Failed to save dictionary entry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, m := newTestServer(t)
			tt.setupMocks(m)

			status, got := doRequest(t, tt.method, server.URL+tt.path, "application/json", strings.NewReader(tt.body))
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMessage, got.Message)
		})
	}
}

func TestHandler_Health(t *testing.T) {
	server, _ := newTestServer(t)

	status, got := doRequest(t, http.MethodGet, server.URL+"/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	var stats indexsync.Stats
	require.NoError(t, json.Unmarshal(got.Data, &stats))
	assert.Equal(t, 10, stats.QueueCapacity)
}

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), []string{"http://localhost:3000"})

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{name: "preflight from allowed origin", method: http.MethodOptions, origin: "http://localhost:3000", wantStatus: http.StatusNoContent, wantOrigin: "http://localhost:3000"},
		{name: "request from other origin", method: http.MethodGet, origin: "http://evil.example.com", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/dictionary/search", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
