// Package client talks to the Skill Piler HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/skillpiler/internal/model"
)

const DefaultBaseURL = "http://localhost:4001/api/v1"

// Ensure Client implements model.AnalysisService.
var _ model.AnalysisService = (*Client)(nil)

// Client is an AnalysisService backed by the REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	logger  *slog.Logger
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// WithToken returns a copy of the client that sends token as a bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Submit starts an analysis job.
func (c *Client) Submit(ctx context.Context, req model.AnalysisRequest) (model.AnalysisJob, error) {
	var job model.AnalysisJob
	if err := c.do(ctx, http.MethodPost, "/analyze", req, &job); err != nil {
		return model.AnalysisJob{}, fmt.Errorf("submit analysis for %s: %w", req.GitHubUsername, err)
	}
	return job, nil
}

// Status fetches the current handle of a job.
func (c *Client) Status(ctx context.Context, jobID string) (model.AnalysisJob, error) {
	var job model.AnalysisJob
	if err := c.do(ctx, http.MethodGet, "/analyze/"+url.PathEscape(jobID), nil, &job); err != nil {
		return model.AnalysisJob{}, fmt.Errorf("job status for %s: %w", jobID, err)
	}
	return job, nil
}

// FetchResult fetches the result of a completed job.
func (c *Client) FetchResult(ctx context.Context, jobID string) (model.AnalysisResult, error) {
	var result model.AnalysisResult
	if err := c.do(ctx, http.MethodGet, "/analyze/"+url.PathEscape(jobID)+"/result", nil, &result); err != nil {
		return model.AnalysisResult{}, fmt.Errorf("job result for %s: %w", jobID, err)
	}
	return result, nil
}

type timeSeriesResponse struct {
	TimeSeriesData []model.TimeSeriesPoint `json:"time_series_data"`
}

// TimeSeries fetches the monthly series of username. months <= 0 omits the window.
func (c *Client) TimeSeries(ctx context.Context, username string, months int) ([]model.TimeSeriesPoint, error) {
	path := "/analyze/timeseries/" + url.PathEscape(username)
	if months > 0 {
		path += "?months=" + strconv.Itoa(months)
	}
	var resp timeSeriesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("time series for %s: %w", username, err)
	}
	return resp.TimeSeriesData, nil
}

// LoginURL asks the API for the GitHub authorization URL.
func (c *Client) LoginURL(ctx context.Context) (string, error) {
	var resp struct {
		LoginURL string `json:"login_url"`
	}
	if err := c.do(ctx, http.MethodGet, "/login", nil, &resp); err != nil {
		return "", fmt.Errorf("login url: %w", err)
	}
	return resp.LoginURL, nil
}

// Callback exchanges an OAuth code and state for a session token.
func (c *Client) Callback(ctx context.Context, code, state string) (model.Token, error) {
	body := map[string]string{"code": code, "state": state}
	var token model.Token
	if err := c.do(ctx, http.MethodPost, "/callback", body, &token); err != nil {
		return model.Token{}, fmt.Errorf("oauth callback: %w", err)
	}
	return token, nil
}

// AuthStatus reports the session the client's token belongs to.
func (c *Client) AuthStatus(ctx context.Context) (model.AuthStatus, error) {
	var status model.AuthStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return model.AuthStatus{}, fmt.Errorf("auth status: %w", err)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        errors.New(errorDetail(resp)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorDetail extracts the API's {"detail": ...} message.
func errorDetail(resp *http.Response) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return fmt.Sprintf("request failed with status code %d", resp.StatusCode)
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
