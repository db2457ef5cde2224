package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelgen/reelgen/src/internal/adapters/memory"
	"github.com/reelgen/reelgen/src/internal/config"
	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/services"
)

type fixedStrategy struct {
	result *domain.AnalysisResult
	err    error
}

func (s fixedStrategy) Name() string { return "fixed" }

func (s fixedStrategy) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	return s.result, s.err
}

type fixedReviser struct {
	revised string
	err     error
}

func (r fixedReviser) RevisePlan(ctx context.Context, analysis, plan, request string) (string, error) {
	return r.revised, r.err
}

type testEnv struct {
	server   *apiServer
	router   *mux.Router
	users    *memory.InMemoryUserRepo
	sessions *memory.InMemorySessionRepo
	store    *memory.InMemoryObjectStore
}

func newTestEnv(t *testing.T, strategy fixedStrategy, reviser fixedReviser) *testEnv {
	t.Helper()

	users := memory.NewUserRepo()
	sessions := memory.NewSessionRepo()
	store := memory.NewObjectStore("http://test-storage")

	server := &apiServer{
		users:     users,
		sessions:  sessions,
		store:     store,
		analyzer:  services.NewAnalyzerChain(strategy),
		planner:   services.NewPlanner(sessions, reviser),
		generator: services.NewGenerator(sessions, store, nil, nil, time.Millisecond),
		tempDir:   t.TempDir(),
	}

	router := mux.NewRouter()
	server.routes(router, NewAuthMiddleware(users, config.OIDCConfig{}))

	return &testEnv{server: server, router: router, users: users, sessions: sessions, store: store}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(t *testing.T, path string, v interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPing(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pong", rec.Body.String())
}

func TestCreateUserIsIdempotentPerEmail(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})

	rec := env.do(postForm("/api/create-user", url.Values{"email": {"a@example.com"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody(t, rec)
	assert.Equal(t, "User created successfully", first["message"])

	rec = env.do(postForm("/api/create-user", url.Values{"email": {"a@example.com"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody(t, rec)
	assert.Equal(t, "User already exists", second["message"])
	assert.Equal(t, first["user_id"], second["user_id"])
}

func TestCreateUserRequiresEmail(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	rec := env.do(postForm("/api/create-user", url.Values{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// multipartUpload builds an upload-video request. Part content types matter:
// the handler validates them before touching anything else.
func multipartUpload(t *testing.T, fields map[string]string, files map[string][2]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, w.WriteField(name, value))
	}
	for field, file := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="upload"`)
		h.Set("Content-Type", file[0])
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(file[1]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-video", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUploadVideoRequiresVideoFile(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	rec := env.do(multipartUpload(t, map[string]string{"user_id": "u1"}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Video file is required", decodeBody(t, rec)["detail"])
}

func TestUploadVideoRejectsWrongContentType(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	rec := env.do(multipartUpload(t,
		map[string]string{"user_id": "u1"},
		map[string][2]string{"video_file": {"text/plain", "not a video"}},
	))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid video file type", decodeBody(t, rec)["detail"])
}

func TestUploadVideoRejectsLongClipBeforeAnyWork(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{err: errors.New("should not be called")}, fixedReviser{})
	rec := env.do(multipartUpload(t,
		map[string]string{"user_id": "u1", "duration_seconds": "90"},
		map[string][2]string{"video_file": {"video/mp4", "bytes"}},
	))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Video must be 60 seconds or shorter", decodeBody(t, rec)["detail"])

	keys, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys, "nothing should reach object storage")
}

func TestUploadVideoCreatesAnalyzedSession(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{result: &domain.AnalysisResult{Analysis: "energetic short", Plan: "the plan"}}, fixedReviser{})
	rec := env.do(multipartUpload(t,
		map[string]string{"user_id": "u1", "duration_seconds": "30"},
		map[string][2]string{
			"video_file":      {"video/mp4", "video-bytes"},
			"character_image": {"image/jpeg", "image-bytes"},
		},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var session domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, domain.StatusAnalyzed, session.Status)
	assert.Equal(t, "energetic short", session.Analysis)
	assert.Equal(t, "the plan", session.Plan)
	assert.NotEmpty(t, session.SessionID)
	assert.WithinDuration(t, time.Now().Add(domain.SessionTTL), session.ExpiresAt, time.Minute)

	assert.True(t, env.store.Has(domain.SampleVideoKey(session.SessionID)))
	assert.True(t, env.store.Has(domain.CharacterImageKey(session.SessionID)))

	stored, err := env.sessions.GetBySessionID(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.UserID)
}

func TestUploadVideoAnalysisFailureLeavesNoTrace(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{err: errors.New("model down")}, fixedReviser{})
	rec := env.do(multipartUpload(t,
		map[string]string{"user_id": "u1"},
		map[string][2]string{"video_file": {"video/mp4", "video-bytes"}},
	))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	sessions, err := env.sessions.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, sessions, "no session record on total analysis failure")

	keys, err := env.store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, keys, "uploaded artifacts must be cleaned up")
}

func TestModifyPlan(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{revised: "better plan"})
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Plan:      "plan",
		Status:    domain.StatusAnalyzed,
	}))

	rec := env.do(postJSON(t, "/api/modify-plan", map[string]string{
		"session_id":           "s1",
		"modification_request": "make it shorter",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "better plan", body["modified_plan"])
}

func TestModifyPlanUnknownSession(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{revised: "x"})
	rec := env.do(postJSON(t, "/api/modify-plan", map[string]string{
		"session_id":           "nope",
		"modification_request": "anything",
	}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Analysis not found", decodeBody(t, rec)["detail"])
}

func TestGenerateVideoLifecycle(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Plan:      "plan",
		Status:    domain.StatusAnalyzed,
		ExpiresAt: time.Now().Add(domain.SessionTTL),
	}))

	rec := env.do(postJSON(t, "/api/generate-video", map[string]string{
		"session_id":    "s1",
		"approved_plan": "approved plan",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Video generation started", body["message"])
	assert.Equal(t, "s1", body["session_id"])

	// Poll until the simulated pipeline finishes.
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = env.do(httptest.NewRequest(http.MethodGet, "/api/generation-status/s1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		status := decodeBody(t, rec)
		if status["status"] == string(domain.StatusCompleted) {
			assert.Equal(t, float64(100), status["progress"])
			assert.NotEmpty(t, status["video_url"])
			break
		}
		require.True(t, time.Now().Before(deadline), "generation never completed")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGenerateVideoDuplicateRejected(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	// Long tick so the first job stays in flight.
	env.server.generator = services.NewGenerator(env.sessions, env.store, nil, nil, time.Minute)
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Plan:      "plan",
		Status:    domain.StatusAnalyzed,
	}))

	rec := env.do(postJSON(t, "/api/generate-video", map[string]string{"session_id": "s1", "approved_plan": "p"}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(postJSON(t, "/api/generate-video", map[string]string{"session_id": "s1", "approved_plan": "p"}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGenerateVideoValidation(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Status:    domain.StatusAnalyzed,
	}))

	rec := env.do(postJSON(t, "/api/generate-video", map[string]string{"session_id": "missing", "approved_plan": "p"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(postJSON(t, "/api/generate-video", map[string]string{"session_id": "s1", "approved_plan": "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerationStatusUnknownSession(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/generation-status/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserVideosOrderingAndTruncation(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	ctx := context.Background()

	longAnalysis := strings.Repeat("x", 250)
	base := time.Now()
	require.NoError(t, env.sessions.Save(ctx, &domain.Session{
		SessionID: "older", UserID: "u1", Analysis: longAnalysis,
		Status: domain.StatusAnalyzed, CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, env.sessions.Save(ctx, &domain.Session{
		SessionID: "newer", UserID: "u1", Analysis: "short",
		Status: domain.StatusCompleted, CreatedAt: base,
	}))
	require.NoError(t, env.sessions.Save(ctx, &domain.Session{
		SessionID: "other-user", UserID: "u2",
		Status: domain.StatusAnalyzed, CreatedAt: base,
	}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/user-videos/u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Videos []struct {
			SessionID string `json:"session_id"`
			Analysis  string `json:"analysis"`
		} `json:"videos"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Videos, 2)
	assert.Equal(t, "newer", body.Videos[0].SessionID)
	assert.Equal(t, "older", body.Videos[1].SessionID)
	assert.Equal(t, "short", body.Videos[0].Analysis)
	assert.Equal(t, longAnalysis[:200]+"...", body.Videos[1].Analysis)
}

func TestGetAnalysis(t *testing.T) {
	env := newTestEnv(t, fixedStrategy{}, fixedReviser{})
	require.NoError(t, env.sessions.Save(context.Background(), &domain.Session{
		SessionID: "s1",
		Analysis:  "the analysis",
		Plan:      "the plan",
		Status:    domain.StatusAnalyzed,
	}))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/analysis/s1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var session domain.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "the analysis", session.Analysis)
	assert.Equal(t, "the plan", session.Plan)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/analysis/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Analysis not found", decodeBody(t, rec)["detail"])
}
