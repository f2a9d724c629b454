package model

import (
	"context"
	"time"
)

// Repository is a GitHub repository owned by the analyzed account.
type Repository struct {
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Private   bool      `json:"private"`
	Fork      bool      `json:"fork"`
	Language  string    `json:"language,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "owner/name".
func (r Repository) FullName() string { return r.Owner + "/" + r.Name }

// Commit is the part of a commit the analysis uses.
type Commit struct {
	SHA  string    `json:"sha"`
	Date time.Time `json:"date"`
}

// RepoSource provides repository data for an account. token may be empty for
// unauthenticated access.
type RepoSource interface {
	ListRepositories(ctx context.Context, username string, includePrivate bool, token string) ([]Repository, error)
	RepositoryLanguages(ctx context.Context, owner, repo, token string) (map[string]int, error)
	CommitHistory(ctx context.Context, owner, repo, token string) ([]Commit, error)
}
