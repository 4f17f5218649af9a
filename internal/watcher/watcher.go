// Package watcher polls a repository and announces new commits, pull requests
// and branches.
//
// Change detection compares only against the single most recent commit SHA and
// pull request id. Notifications are delivered at most once: state advances
// before delivery and nothing is retried.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"repo-watcher/internal/github"
	"repo-watcher/internal/notifier"
	"repo-watcher/pkg/models"

	"github.com/google/uuid"
)

// DefaultInterval is the pause between polling cycles
const DefaultInterval = 30 * time.Second

var (
	// ErrMissingSHA is returned when the latest commit carries no SHA
	ErrMissingSHA = errors.New("latest commit has no sha")
	// ErrMissingID is returned when the latest pull request carries no id
	ErrMissingID = errors.New("latest pull request has no id")
)

// Source is the read side of the repository hosting API
type Source interface {
	Repository() string
	ListCommits(ctx context.Context) ([]models.CommitSummary, error)
	GetCommit(ctx context.Context, sha string) (*models.CommitSummary, error)
	ListOpenPullRequests(ctx context.Context) ([]models.PullRequestSummary, error)
	ListBranches(ctx context.Context) ([]string, error)
	BranchURL(branch string) string
}

// Options tune the polling loop
type Options struct {
	Interval time.Duration
	// SeedOnStart records the current repository state silently before the first cycle
	SeedOnStart bool
	// BranchBaseline records the first non-empty branch list silently
	BranchBaseline bool
}

// Watcher owns the last-seen state for one repository
type Watcher struct {
	source    Source
	notifiers []notifier.Notifier
	opts      Options
	state     *models.WatcherState
	newID     func() string
}

// New creates a watcher with an empty state
func New(source Source, notifiers []notifier.Notifier, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Watcher{
		source:    source,
		notifiers: notifiers,
		opts:      opts,
		state:     models.NewWatcherState(),
		newID:     uuid.NewString,
	}
}

// State exposes the watcher state for inspection
func (w *Watcher) State() *models.WatcherState {
	return w.state
}

// Run polls until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.SeedOnStart {
		w.Seed(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			w.CheckForChanges(ctx)

			slog.Debug("Sleeping until next check...", "interval", w.opts.Interval)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.Interval):
				// continue loop
			}
		}
	}
}

// Seed records the current top commit, top pull request and branch set without notifying
func (w *Watcher) Seed(ctx context.Context) {
	log := w.cycleLogger()

	if commits := w.fetchCommits(ctx, log); len(commits) > 0 {
		if latest, err := latestCommit(commits); err != nil {
			log.Warn("Skipping commit seed", "error", err)
		} else {
			w.state.AdvanceCommit(latest.SHA)
		}
	}
	if prs := w.fetchPullRequests(ctx, log); len(prs) > 0 {
		if latest, err := latestPullRequest(prs); err != nil {
			log.Warn("Skipping pull request seed", "error", err)
		} else {
			w.state.AdvancePullRequest(latest.ID)
		}
	}
	if branches := w.fetchBranches(ctx, log); len(branches) > 0 {
		w.state.TakeBranchBaseline(branches)
	}

	prID, _ := w.state.LastPullRequestID()
	log.Info("Seeded repository state",
		"commit_sha", w.state.LastCommitSHA(),
		"pr_id", prID,
		"branches", len(w.state.KnownBranches()))
}

// CheckForChanges runs one polling cycle. It never fails; problems are logged
// and the affected sub-check is skipped until the next cycle.
func (w *Watcher) CheckForChanges(ctx context.Context) {
	log := w.cycleLogger()
	log.Debug("Checking repository for changes")

	w.checkCommits(ctx, log)
	w.checkPullRequests(ctx, log)
	w.checkBranches(ctx, log)
}

func (w *Watcher) cycleLogger() *slog.Logger {
	return slog.With("cycle_id", w.newID(), "repo", w.source.Repository())
}

func (w *Watcher) checkCommits(ctx context.Context, log *slog.Logger) {
	commits := w.fetchCommits(ctx, log)
	if len(commits) == 0 {
		log.Info("No commits found.")
		return
	}

	latest, err := latestCommit(commits)
	if err != nil {
		log.Warn("No SHA found in latest commit.", "error", err)
		return
	}
	if !w.state.AdvanceCommit(latest.SHA) {
		return
	}

	detail, err := w.source.GetCommit(ctx, latest.SHA)
	if err != nil {
		log.Error("Error fetching commit details",
			"sha", latest.SHA,
			"status", github.StatusText(err),
			"error", err)
		return
	}

	files := notifier.FormatFileChanges(detail.Files)
	author := latest.Author
	w.notify(ctx, log, notifier.Notification{
		Kind:          notifier.KindCommit,
		Title:         "New Commit to Repository",
		Description:   fmt.Sprintf("There's been **%d** file changes to [%s](%s)", len(files), w.source.Repository(), latest.HTMLURL),
		URL:           latest.HTMLURL,
		CommitSHA:     latest.SHA,
		CommitMessage: latest.Message,
		Files:         files,
		Author:        &author,
	})
	log.Info("Latest commit", "sha", latest.SHA, "files", len(files))
}

func (w *Watcher) checkPullRequests(ctx context.Context, log *slog.Logger) {
	prs := w.fetchPullRequests(ctx, log)
	if len(prs) == 0 {
		log.Info("No pull requests found.")
		return
	}

	latest, err := latestPullRequest(prs)
	if err != nil {
		log.Warn("Latest PR does not have an id.", "error", err)
		return
	}
	if !w.state.AdvancePullRequest(latest.ID) {
		return
	}

	// The SHA field carries the last seen commit, not one belonging to the PR
	w.notify(ctx, log, notifier.Notification{
		Kind:        notifier.KindPullRequest,
		Title:       "New Pull Request",
		Description: latest.Title,
		URL:         latest.HTMLURL,
		CommitSHA:   w.state.LastCommitSHA(),
	})
	log.Info("Latest PR", "pr_id", latest.ID, "number", latest.Number)
}

func (w *Watcher) checkBranches(ctx context.Context, log *slog.Logger) {
	branches := w.fetchBranches(ctx, log)
	if len(branches) == 0 {
		return
	}

	if w.opts.BranchBaseline && !w.state.BranchBaselineTaken() {
		w.state.TakeBranchBaseline(branches)
		log.Info("Recorded branch baseline", "branches", len(branches))
		return
	}

	fresh := w.state.NewBranches(branches)
	for _, branch := range fresh {
		link := w.source.BranchURL(branch)
		w.notify(ctx, log, notifier.Notification{
			Kind:        notifier.KindBranch,
			Title:       "New Branch Created",
			Description: fmt.Sprintf("Branch **%s** was created in [%s](%s)", branch, w.source.Repository(), link),
			URL:         link,
			CommitSHA:   w.state.LastCommitSHA(),
		})
	}
	w.state.AddBranches(fresh)

	if len(fresh) > 0 {
		log.Info("New branches", "branches", fresh)
	}
}

// latestCommit returns the top commit of a non-empty list, or ErrMissingSHA
func latestCommit(commits []models.CommitSummary) (models.CommitSummary, error) {
	latest := commits[0]
	if latest.SHA == "" {
		return latest, ErrMissingSHA
	}
	return latest, nil
}

// latestPullRequest returns the top pull request of a non-empty list, or ErrMissingID
func latestPullRequest(prs []models.PullRequestSummary) (models.PullRequestSummary, error) {
	latest := prs[0]
	if latest.ID == 0 {
		return latest, ErrMissingID
	}
	return latest, nil
}

// fetchCommits returns nil when the API call fails
func (w *Watcher) fetchCommits(ctx context.Context, log *slog.Logger) []models.CommitSummary {
	commits, err := w.source.ListCommits(ctx)
	if err != nil {
		log.Error("Error fetching commits", "status", github.StatusText(err), "error", err)
		return nil
	}
	return commits
}

// fetchPullRequests returns nil when the API call fails
func (w *Watcher) fetchPullRequests(ctx context.Context, log *slog.Logger) []models.PullRequestSummary {
	prs, err := w.source.ListOpenPullRequests(ctx)
	if err != nil {
		log.Error("Error fetching pull requests", "status", github.StatusText(err), "error", err)
		return nil
	}
	return prs
}

// fetchBranches returns nil when the API call fails
func (w *Watcher) fetchBranches(ctx context.Context, log *slog.Logger) []string {
	branches, err := w.source.ListBranches(ctx)
	if err != nil {
		log.Error("Error fetching branches", "status", github.StatusText(err), "error", err)
		return nil
	}
	return branches
}

// notify delivers n to every notifier; a failure is logged and never retried
func (w *Watcher) notify(ctx context.Context, log *slog.Logger, n notifier.Notification) {
	for _, nt := range w.notifiers {
		if err := nt.Notify(ctx, n); err != nil {
			log.Error("Failed to send embed notification", "kind", n.Kind, "error", err)
		}
	}
}
