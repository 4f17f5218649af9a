package notifier

import (
	"context"

	"repo-watcher/pkg/models"
)

// Kind identifies what triggered a notification
type Kind string

const (
	KindCommit      Kind = "commit"
	KindPullRequest Kind = "pull_request"
	KindBranch      Kind = "branch"
)

// Notification is a rendered repository event ready for delivery
type Notification struct {
	Kind          Kind
	Title         string
	Description   string
	URL           string
	CommitSHA     string
	CommitMessage string
	Files         []string // lines produced by FormatFileChanges
	Author        *models.Author
}

// Notifier interface defines the contract for notification services
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
