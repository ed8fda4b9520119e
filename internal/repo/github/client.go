package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v45/github"
	"golang.org/x/oauth2"

	"github.com/SnippyKid/OmegaChat-sub000/internal/models"
)

// RepoContext is a compact repository summary handed to the AI bridge as
// optional generation context.
type RepoContext struct {
	FullName      string
	Description   string
	Language      string
	RecentCommits []string
}

// RepoStats is the aggregate snapshot behind the dk_bot repository-stats
// command.
type RepoStats struct {
	FullName      string
	Description   string
	Language      string
	Stars         int
	Forks         int
	OpenIssues    int
	Watchers      int
	DefaultBranch string
	PushedAt      *time.Time
}

type Client interface {
	FetchRepoContext(ctx context.Context, token, fullName string) (*RepoContext, error)
	FetchRepoStats(ctx context.Context, token, fullName string) (*RepoStats, error)
}

type client struct {
	fallbackToken string
}

func NewClient(fallbackToken string) Client {
	return &client{fallbackToken: fallbackToken}
}

// api builds a per-call GitHub client so each request uses the caller's
// credential; unauthenticated clients work but are rate-limited hard.
func (c *client) api(ctx context.Context, token string) *gh.Client {
	if token == "" {
		token = c.fallbackToken
	}
	if token == "" {
		return gh.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return gh.NewClient(oauth2.NewClient(ctx, ts))
}

func splitFullName(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: invalid repository name %q", models.ErrValidation, fullName)
	}
	return parts[0], parts[1], nil
}

func (c *client) FetchRepoContext(ctx context.Context, token, fullName string) (*RepoContext, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	api := c.api(ctx, token)

	repo, _, err := api.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classifyError(err)
	}

	rc := &RepoContext{
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		Language:    repo.GetLanguage(),
	}

	// Commit titles are nice-to-have context; their failure is not fatal.
	commits, _, err := api.Repositories.ListCommits(ctx, owner, name, &gh.CommitsListOptions{
		ListOptions: gh.ListOptions{PerPage: 5},
	})
	if err == nil {
		for _, commit := range commits {
			title := strings.SplitN(commit.GetCommit().GetMessage(), "\n", 2)[0]
			rc.RecentCommits = append(rc.RecentCommits, title)
		}
	}

	return rc, nil
}

func (c *client) FetchRepoStats(ctx context.Context, token, fullName string) (*RepoStats, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	repo, _, err := c.api(ctx, token).Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classifyError(err)
	}

	stats := &RepoStats{
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		Language:      repo.GetLanguage(),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		OpenIssues:    repo.GetOpenIssuesCount(),
		Watchers:      repo.GetSubscribersCount(),
		DefaultBranch: repo.GetDefaultBranch(),
	}
	if ts := repo.GetPushedAt(); !ts.IsZero() {
		t := ts.Time
		stats.PushedAt = &t
	}
	return stats, nil
}

func classifyError(err error) error {
	if _, ok := err.(*gh.RateLimitError); ok {
		return fmt.Errorf("%w: github: %v", models.ErrUpstreamRateLimited, err)
	}
	if resp, ok := err.(*gh.ErrorResponse); ok && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusNotFound:
			return models.ErrNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: github: %v", models.ErrUpstreamAuthFailed, err)
		}
	}
	if errIsTimeout(err) {
		return fmt.Errorf("%w: github: %v", models.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: github: %v", models.ErrUpstreamError, err)
}

func errIsTimeout(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "deadline exceeded") ||
		strings.Contains(err.Error(), "timeout"))
}
