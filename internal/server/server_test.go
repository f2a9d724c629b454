package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/skillpiler/internal/analysis"
	"github.com/amishk599/skillpiler/internal/auth"
	"github.com/amishk599/skillpiler/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeService struct {
	submitted []model.AnalysisRequest
	submitErr error
	jobs      map[string]model.AnalysisJob
	series    map[string][]model.TimeSeriesPoint
	months    int
}

func (f *fakeService) Submit(_ context.Context, req model.AnalysisRequest) (model.AnalysisJob, error) {
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return model.AnalysisJob{}, f.submitErr
	}
	return model.AnalysisJob{JobID: "job-1", Username: req.GitHubUsername, Status: model.StatusPending, CreatedAt: time.Now()}, nil
}

func (f *fakeService) Status(_ context.Context, jobID string) (model.AnalysisJob, error) {
	job, ok := f.jobs[jobID]
	if !ok {
		return model.AnalysisJob{}, model.ErrNotFound
	}
	return job, nil
}

func (f *fakeService) FetchResult(ctx context.Context, jobID string) (model.AnalysisResult, error) {
	job, err := f.Status(ctx, jobID)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	if job.Result == nil {
		return model.AnalysisResult{}, &model.JobNotCompletedError{JobID: jobID, Status: job.Status}
	}
	return *job.Result, nil
}

func (f *fakeService) TimeSeries(_ context.Context, username string, months int) ([]model.TimeSeriesPoint, error) {
	f.months = months
	points, ok := f.series[username]
	if !ok {
		return nil, model.ErrNotFound
	}
	return points, nil
}

type fakeAuth struct {
	loginErr error
	sessions map[string]string
	ghTokens map[string]string
}

func (f *fakeAuth) LoginURL() (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "https://github.com/login/oauth/authorize?state=abc", nil
}

func (f *fakeAuth) Callback(_ context.Context, code, state string) (model.Token, error) {
	if state != "abc" {
		return model.Token{}, auth.ErrInvalidState
	}
	return model.Token{AccessToken: "session", TokenType: "bearer", Scope: "repo"}, nil
}

func (f *fakeAuth) Status(token string) model.AuthStatus {
	login, ok := f.sessions[token]
	if !ok {
		return model.AuthStatus{}
	}
	return model.AuthStatus{IsAuthenticated: true, Username: login, Scopes: []string{"repo"}}
}

func (f *fakeAuth) Authenticate(token string) (string, []string, error) {
	login, ok := f.sessions[token]
	if !ok {
		return "", nil, model.ErrUnauthorized
	}
	return login, []string{"repo"}, nil
}

func (f *fakeAuth) GitHubToken(login string) (string, bool) {
	t, ok := f.ghTokens[login]
	return t, ok
}

func newTestServer(svc *fakeService, a *fakeAuth) *Server {
	if a == nil {
		a = &fakeAuth{}
	}
	return New(svc, a, Options{CORSOrigins: []string{"http://localhost:4000"}}, discardLogger())
}

func do(t *testing.T, s *Server, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)

	rec := do(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Skill Piler API"}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyze(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/analyze", `{"github_username":" octocat ","access_token":"smuggled"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job model.AnalysisJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, "job-1", job.JobID)
	assert.Equal(t, model.StatusPending, job.Status)

	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "octocat", svc.submitted[0].GitHubUsername)
	assert.Empty(t, svc.submitted[0].AccessToken)
}

func TestAnalyze_Validation(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)

	rec := do(t, s, http.MethodPost, "/api/v1/analyze", `{"github_username":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "GitHubUsername is required", detail(t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/analyze", `{"github_username":"`+strings.Repeat("a", 40)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/analyze", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", detail(t, rec))
}

func TestAnalyze_PrivateRequiresSession(t *testing.T) {
	svc := &fakeService{}
	a := &fakeAuth{
		sessions: map[string]string{"good": "octocat", "orphan": "ghost"},
		ghTokens: map[string]string{"octocat": "gho_token"},
	}
	s := newTestServer(svc, a)
	body := `{"github_username":"octocat","include_private":true}`

	rec := do(t, s, http.MethodPost, "/api/v1/analyze", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/analyze", body, "Authorization", "Bearer orphan")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/analyze", body, "Authorization", "Bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "gho_token", svc.submitted[0].AccessToken)
}

func TestAnalyze_PrivateOnlyForOwnAccount(t *testing.T) {
	svc := &fakeService{}
	a := &fakeAuth{
		sessions: map[string]string{"alice-session": "alice"},
		ghTokens: map[string]string{"alice": "gho_alice"},
	}
	s := newTestServer(svc, a)

	rec := do(t, s, http.MethodPost, "/api/v1/analyze",
		`{"github_username":"bob","include_private":true}`, "Authorization", "Bearer alice-session")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "your own account")
	assert.Empty(t, svc.submitted)

	rec = do(t, s, http.MethodPost, "/api/v1/analyze",
		`{"github_username":"Alice","include_private":true}`, "Authorization", "Bearer alice-session")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "gho_alice", svc.submitted[0].AccessToken)

	rec = do(t, s, http.MethodPost, "/api/v1/analyze",
		`{"github_username":"bob"}`, "Authorization", "Bearer alice-session")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, svc.submitted, 2)
	assert.Empty(t, svc.submitted[1].AccessToken)
}

func TestAnalyze_ServiceErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{analysis.ErrQueueFull, http.StatusServiceUnavailable},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s := newTestServer(&fakeService{submitErr: tc.err}, nil)
		rec := do(t, s, http.MethodPost, "/api/v1/analyze", `{"github_username":"octocat"}`)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}

func TestStatusAndResult(t *testing.T) {
	svc := &fakeService{jobs: map[string]model.AnalysisJob{
		"running": {JobID: "running", Status: model.StatusProcessing},
		"done": {JobID: "done", Status: model.StatusCompleted, Result: &model.AnalysisResult{
			Username:  "octocat",
			Languages: []model.LanguageIntensity{{Language: "Go", Intensity: 100}},
		}},
	}}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/analyze/running", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"processing"`)

	rec = do(t, s, http.MethodGet, "/api/v1/analyze/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found", detail(t, rec))

	rec = do(t, s, http.MethodGet, "/api/v1/analyze/running/result", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job running is not completed (status: processing)", detail(t, rec))

	rec = do(t, s, http.MethodGet, "/api/v1/analyze/done/result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "Go", result.Languages[0].Language)
}

func TestTimeSeries(t *testing.T) {
	svc := &fakeService{series: map[string][]model.TimeSeriesPoint{
		"octocat": {{Date: "2024-06", Intensities: map[string]float64{"Go": 100}}},
	}}
	s := newTestServer(svc, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/analyze/timeseries/octocat?months=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, svc.months)
	assert.JSONEq(t,
		`{"username":"octocat","time_series_data":[{"date":"2024-06","languages":[{"language":"Go","intensity":100}]}]}`,
		rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/analyze/timeseries/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No time series data found for user nobody", detail(t, rec))

	rec = do(t, s, http.MethodGet, "/api/v1/analyze/timeseries/octocat?months=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRoutes(t *testing.T) {
	a := &fakeAuth{sessions: map[string]string{"session": "octocat"}}
	s := newTestServer(&fakeService{}, a)

	rec := do(t, s, http.MethodGet, "/api/v1/login", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "login_url")

	rec = do(t, s, http.MethodPost, "/api/v1/callback", `{"code":"c","state":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"access_token":"session","token_type":"bearer","scope":"repo"}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/callback", `{"code":"c","state":"stale"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/callback", `{"code":"c"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "State is required", detail(t, rec))

	rec = do(t, s, http.MethodGet, "/api/v1/status", "", "Authorization", "Bearer session")
	assert.JSONEq(t, `{"is_authenticated":true,"username":"octocat","scopes":["repo"]}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/v1/status", "")
	assert.JSONEq(t, `{"is_authenticated":false}`, rec.Body.String())
}

func TestLogin_NotConfigured(t *testing.T) {
	s := newTestServer(&fakeService{}, &fakeAuth{loginErr: auth.ErrNotConfigured})

	rec := do(t, s, http.MethodGet, "/api/v1/login", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)

	rec := do(t, s, http.MethodOptions, "/api/v1/analyze", "", "Origin", "http://localhost:4000")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:4000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodOptions, "/api/v1/analyze", "", "Origin", "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	s := newTestServer(&fakeService{}, nil)
	s.engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	rec := do(t, s, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", detail(t, rec))
}
