package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"repo-watcher/internal/config"
	"repo-watcher/pkg/models"

	"github.com/google/go-github/v58/github"
	"golang.org/x/oauth2"
)

// Client represents a GitHub API client bound to one repository
type Client struct {
	Config *config.Config
	api    *github.Client
	owner  string
	repo   string
}

// NewClient creates a new GitHub client authenticated with the configured token.
// github.api_url replaces the public API base URL when set.
func NewClient(cfg *config.Config) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHub.Token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = cfg.GitHub.Timeout

	api := github.NewClient(httpClient)
	if cfg.GitHub.APIURL != "" {
		base := cfg.GitHub.APIURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", cfg.GitHub.APIURL, err)
		}
		api.BaseURL = u
	}

	owner, repo := cfg.GitHub.OwnerAndName()
	return &Client{
		Config: cfg,
		api:    api,
		owner:  owner,
		repo:   repo,
	}, nil
}

// Repository returns the "owner/name" identifier
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// TestConnection checks that the API is reachable and the token can read the repository
func (c *Client) TestConnection(ctx context.Context) error {
	_, _, err := c.api.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return fmt.Errorf("GitHub connection test failed for %s: %w", c.Repository(), err)
	}
	return nil
}

// ListCommits fetches the first page of commits, newest first
func (c *Client) ListCommits(ctx context.Context) ([]models.CommitSummary, error) {
	commits, _, err := c.api.Repositories.ListCommits(ctx, c.owner, c.repo, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching commits: %w", err)
	}

	summaries := make([]models.CommitSummary, 0, len(commits))
	for _, commit := range commits {
		summaries = append(summaries, toCommitSummary(commit))
	}
	return summaries, nil
}

// GetCommit fetches a single commit including its changed files.
// The list endpoint does not include files, so this is a separate call.
func (c *Client) GetCommit(ctx context.Context, sha string) (*models.CommitSummary, error) {
	slog.Debug("Fetching commit details", "repo", c.Repository(), "sha", sha)

	commit, _, err := c.api.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching commit details: %w", err)
	}

	summary := toCommitSummary(commit)
	for _, file := range commit.Files {
		summary.Files = append(summary.Files, models.FileChange{
			Filename: file.GetFilename(),
			Status:   models.FileStatus(file.GetStatus()),
		})
	}
	return &summary, nil
}

// ListOpenPullRequests fetches the first page of open pull requests in the API's default order.
// A pull request without an id is returned with ID 0.
func (c *Client) ListOpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error) {
	opts := &github.PullRequestListOptions{State: "open"}
	prs, _, err := c.api.PullRequests.List(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, fmt.Errorf("error fetching pull requests: %w", err)
	}

	summaries := make([]models.PullRequestSummary, 0, len(prs))
	for _, pr := range prs {
		summaries = append(summaries, models.PullRequestSummary{
			ID:      pr.GetID(),
			Number:  pr.GetNumber(),
			Title:   pr.GetTitle(),
			HTMLURL: pr.GetHTMLURL(),
		})
	}
	return summaries, nil
}

// ListBranches fetches the first page of branch names
func (c *Client) ListBranches(ctx context.Context) ([]string, error) {
	branches, _, err := c.api.Repositories.ListBranches(ctx, c.owner, c.repo, nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching branches: %w", err)
	}

	names := make([]string, 0, len(branches))
	for _, branch := range branches {
		if branch.GetName() == "" {
			continue
		}
		names = append(names, branch.GetName())
	}
	return names, nil
}

// BranchURL builds the web tree-view link for a branch.
// Each "/"-separated segment of the name is path-escaped.
func (c *Client) BranchURL(branch string) string {
	segments := strings.Split(branch, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(c.Config.GitHub.WebURL, "/") + "/" + c.Repository() + "/tree/" + strings.Join(segments, "/")
}

func toCommitSummary(commit *github.RepositoryCommit) models.CommitSummary {
	return models.CommitSummary{
		SHA:       commit.GetSHA(),
		HTMLURL:   commit.GetHTMLURL(),
		Message:   commit.GetCommit().GetMessage(),
		DetailURL: commit.GetURL(),
		Author: models.Author{
			Name:      commit.GetCommit().GetAuthor().GetName(),
			URL:       commit.GetAuthor().GetHTMLURL(),
			AvatarURL: commit.GetAuthor().GetAvatarURL(),
		},
	}
}

// StatusCode extracts the HTTP status from an API error, or 0 for transport errors
func StatusCode(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) && rateErr.Response != nil {
		return rateErr.Response.StatusCode
	}
	return 0
}

// StatusText renders the status of an API error for logs
func StatusText(err error) string {
	if code := StatusCode(err); code != 0 {
		return fmt.Sprintf("%d %s", code, http.StatusText(code))
	}
	return "no response"
}
