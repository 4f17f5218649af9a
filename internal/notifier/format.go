package notifier

import "repo-watcher/pkg/models"

// FormatFileChange renders a file line for a diff-highlighted code block:
// "+" added, "!" modified, "-" removed, bare name for anything else.
func FormatFileChange(status models.FileStatus, filename string) string {
	switch status {
	case models.FileAdded:
		return "+ " + filename
	case models.FileModified:
		return "! " + filename
	case models.FileRemoved:
		return "- " + filename
	default:
		return filename
	}
}

// FormatFileChanges renders every file of a commit in order
func FormatFileChanges(files []models.FileChange) []string {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, FormatFileChange(f.Status, f.Filename))
	}
	return lines
}
