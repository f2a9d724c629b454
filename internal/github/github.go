// Package github reads repository, language and commit data from the GitHub REST API.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/skillpiler/internal/metrics"
	"github.com/amishk599/skillpiler/internal/model"
)

const (
	DefaultBaseURL = "https://api.github.com"
	userAgent      = "Skill-Piler/1.0"
	perPage        = 100
)

// Ensure Client implements model.RepoSource.
var _ model.RepoSource = (*Client)(nil)

type apiRepo struct {
	Name      string    `json:"name"`
	Private   bool      `json:"private"`
	Fork      bool      `json:"fork"`
	Language  string    `json:"language"`
	UpdatedAt time.Time `json:"updated_at"`
	Owner     struct {
		Login string `json:"login"`
	} `json:"owner"`
}

type apiCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Date time.Time `json:"date"`
		} `json:"author"`
		Committer struct {
			Date time.Time `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// User is the authenticated account behind a token.
type User struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

// Client is a thin GitHub REST v3 client.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string, client *http.Client, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// ListRepositories returns the account's non-fork repositories, most recently
// updated first. Private repositories are listed only with includePrivate and a
// token, and only those owned by username are kept.
func (c *Client) ListRepositories(ctx context.Context, username string, includePrivate bool, token string) ([]model.Repository, error) {
	q := url.Values{}
	q.Set("sort", "updated")
	q.Set("per_page", strconv.Itoa(perPage))

	path := "/users/" + url.PathEscape(username) + "/repos"
	private := includePrivate && token != ""
	if private {
		path = "/user/repos"
		q.Set("visibility", "all")
		q.Set("affiliation", "owner")
	} else {
		q.Set("type", "public")
	}

	var raw []apiRepo
	err := c.get(ctx, "repos", path+"?"+q.Encode(), token, &raw, map[int]string{
		http.StatusNotFound: fmt.Sprintf("User %s not found", username),
	})
	if err != nil {
		return nil, fmt.Errorf("github repos for %s: %w", username, err)
	}

	repos := make([]model.Repository, 0, len(raw))
	for _, r := range raw {
		if r.Fork {
			continue
		}
		// /user/repos lists the token owner's repositories, whoever was asked for.
		if private && !strings.EqualFold(r.Owner.Login, username) {
			continue
		}
		repos = append(repos, model.Repository{
			Name:      r.Name,
			Owner:     r.Owner.Login,
			Private:   r.Private,
			Fork:      r.Fork,
			Language:  r.Language,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return repos, nil
}

// RepositoryLanguages returns the byte count per language of a repository.
func (c *Client) RepositoryLanguages(ctx context.Context, owner, repo, token string) (map[string]int, error) {
	path := fmt.Sprintf("/repos/%s/%s/languages", url.PathEscape(owner), url.PathEscape(repo))
	langs := make(map[string]int)
	err := c.get(ctx, "languages", path, token, &langs, map[int]string{
		http.StatusNotFound: fmt.Sprintf("Repository %s/%s not found", owner, repo),
	})
	if err != nil {
		return nil, fmt.Errorf("github languages for %s/%s: %w", owner, repo, err)
	}
	return langs, nil
}

// CommitHistory returns the most recent commits of a repository. An empty
// repository yields no commits.
func (c *Client) CommitHistory(ctx context.Context, owner, repo, token string) ([]model.Commit, error) {
	path := fmt.Sprintf("/repos/%s/%s/commits?per_page=%d&page=1", url.PathEscape(owner), url.PathEscape(repo), perPage)
	var raw []apiCommit
	err := c.get(ctx, "commits", path, token, &raw, map[int]string{
		http.StatusNotFound: fmt.Sprintf("Repository %s/%s not found", owner, repo),
	})
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("github commits for %s/%s: %w", owner, repo, err)
	}

	commits := make([]model.Commit, 0, len(raw))
	for _, rc := range raw {
		date := rc.Commit.Author.Date
		if date.IsZero() {
			date = rc.Commit.Committer.Date
		}
		commits = append(commits, model.Commit{SHA: rc.SHA, Date: date})
	}
	return commits, nil
}

// AuthenticatedUser returns the account a token belongs to.
func (c *Client) AuthenticatedUser(ctx context.Context, token string) (User, error) {
	var u User
	err := c.get(ctx, "user", "/user", token, &u, map[int]string{
		http.StatusUnauthorized: "Invalid GitHub token",
	})
	if err != nil {
		return User{}, fmt.Errorf("github user: %w", err)
	}
	return u, nil
}

func (c *Client) get(ctx context.Context, endpoint, path, token string, out any, messages map[int]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordGitHubRequest(endpoint, "error")
		return err
	}
	defer resp.Body.Close()
	metrics.RecordGitHubRequest(endpoint, strconv.Itoa(resp.StatusCode))

	c.logger.Debug("github request",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"rate_remaining", resp.Header.Get("X-RateLimit-Remaining"),
	)

	if resp.StatusCode != http.StatusOK {
		msg, ok := messages[resp.StatusCode]
		switch {
		case ok:
		case resp.StatusCode == http.StatusForbidden:
			msg = "Rate limit exceeded or access denied"
		default:
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			// Secondary limits answer 403; treat an exhausted quota like 429.
			return &model.HTTPError{StatusCode: http.StatusTooManyRequests, RetryAfter: retryAfter, Err: errors.New(msg)}
		}
		return &model.HTTPError{StatusCode: resp.StatusCode, RetryAfter: retryAfter, Err: errors.New(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
