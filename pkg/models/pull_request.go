package models

// PullRequestSummary represents an open GitHub pull request
type PullRequestSummary struct {
	ID      int64  `json:"id"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}
