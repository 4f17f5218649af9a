package models

// FileStatus is the change status GitHub reports for a file in a commit
type FileStatus string

const (
	FileAdded    FileStatus = "added"
	FileModified FileStatus = "modified"
	FileRemoved  FileStatus = "removed"
)

// FileChange represents a single file touched by a commit
type FileChange struct {
	Filename string     `json:"filename"`
	Status   FileStatus `json:"status"`
}

// Author represents the commit author as shown in notifications.
// Any field may be empty when GitHub cannot link the commit to an account.
type Author struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	AvatarURL string `json:"avatar_url"`
}

// CommitSummary represents a commit from the repository commit list
type CommitSummary struct {
	SHA       string       `json:"sha"`
	HTMLURL   string       `json:"html_url"`
	Message   string       `json:"message"`
	DetailURL string       `json:"url"`
	Author    Author       `json:"author"`
	Files     []FileChange `json:"files,omitempty"` // only populated by the detail endpoint
}
