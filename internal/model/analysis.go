package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// JobStatus is the server-reported lifecycle state of an analysis job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status change is expected.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// AnalysisRequest asks the backend to analyze a GitHub account.
type AnalysisRequest struct {
	GitHubUsername string `json:"github_username" validate:"required,max=39"`
	IncludePrivate bool   `json:"include_private"`
	AccessToken    string `json:"access_token,omitempty"`
}

// NewAnalysisRequest trims the username and rejects an empty one.
func NewAnalysisRequest(username string, includePrivate bool) (AnalysisRequest, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return AnalysisRequest{}, ErrEmptyUsername
	}
	return AnalysisRequest{GitHubUsername: username, IncludePrivate: includePrivate}, nil
}

// AnalysisJob is the handle returned by submission and by every status check.
type AnalysisJob struct {
	JobID        string          `json:"job_id"`
	Username     string          `json:"username,omitempty"`
	Status       JobStatus       `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       *AnalysisResult `json:"result,omitempty"`
}

// LanguageIntensity is one language's contribution to a profile.
type LanguageIntensity struct {
	Language        string  `json:"language"`
	Intensity       float64 `json:"intensity"`
	CommitCount     int     `json:"commit_count"`
	LineCount       int     `json:"line_count"`
	RepositoryCount int     `json:"repository_count"`
}

// AnalysisResult is the final skill profile of a completed job.
type AnalysisResult struct {
	Username             string              `json:"username"`
	AnalysisDate         time.Time           `json:"analysis_date"`
	Languages            []LanguageIntensity `json:"languages"`
	TotalRepositories    int                 `json:"total_repositories"`
	TotalCommits         int                 `json:"total_commits"`
	AnalysisPeriodMonths int                 `json:"analysis_period_months"`
}

// Validate checks intensity bounds and language uniqueness.
func (r AnalysisResult) Validate() error {
	seen := make(map[string]bool, len(r.Languages))
	for _, l := range r.Languages {
		if l.Intensity < 0 || l.Intensity > 100 {
			return fmt.Errorf("language %s: intensity %.1f out of range", l.Language, l.Intensity)
		}
		if seen[l.Language] {
			return fmt.Errorf("language %s listed twice", l.Language)
		}
		seen[l.Language] = true
	}
	return nil
}

// TimeSeriesPoint maps each language to its intensity for one month ("2006-01").
type TimeSeriesPoint struct {
	Date        string
	Intensities map[string]float64
}

type wireLanguage struct {
	Language  string  `json:"language"`
	Intensity float64 `json:"intensity"`
}

type wirePoint struct {
	Date      string         `json:"date"`
	Languages []wireLanguage `json:"languages"`
}

// Languages returns the point's languages ordered by descending intensity, then name.
func (p TimeSeriesPoint) Languages() []string {
	names := make([]string, 0, len(p.Intensities))
	for name := range p.Intensities {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := p.Intensities[names[i]], p.Intensities[names[j]]
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

func (p TimeSeriesPoint) MarshalJSON() ([]byte, error) {
	w := wirePoint{Date: p.Date, Languages: make([]wireLanguage, 0, len(p.Intensities))}
	for _, name := range p.Languages() {
		w.Languages = append(w.Languages, wireLanguage{Language: name, Intensity: p.Intensities[name]})
	}
	return json.Marshal(w)
}

func (p *TimeSeriesPoint) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Date = w.Date
	p.Intensities = make(map[string]float64, len(w.Languages))
	for _, l := range w.Languages {
		p.Intensities[l.Language] = l.Intensity
	}
	return nil
}

// AuthStatus describes the session of the current user.
type AuthStatus struct {
	IsAuthenticated bool     `json:"is_authenticated"`
	Username        string   `json:"username,omitempty"`
	Scopes          []string `json:"scopes,omitempty"`
}

// Token is the session issued after a successful OAuth callback.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// AnalysisService is the asynchronous job API the poller drives.
type AnalysisService interface {
	Submit(ctx context.Context, req AnalysisRequest) (AnalysisJob, error)
	Status(ctx context.Context, jobID string) (AnalysisJob, error)
	FetchResult(ctx context.Context, jobID string) (AnalysisResult, error)
	TimeSeries(ctx context.Context, username string, months int) ([]TimeSeriesPoint, error)
}

// Notifier reports a finished analysis.
type Notifier interface {
	Notify(result AnalysisResult) error
}
