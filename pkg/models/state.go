package models

import "sort"

// WatcherState holds what the watcher has already announced.
// It lives only in memory; a restart starts from an empty state.
type WatcherState struct {
	lastCommitSHA     string
	lastPullRequestID int64
	hasPullRequest    bool
	knownBranches     map[string]struct{}
	branchBaseline    bool
}

// NewWatcherState creates an empty state
func NewWatcherState() *WatcherState {
	return &WatcherState{knownBranches: make(map[string]struct{})}
}

// LastCommitSHA returns the last seen top commit, or "" if none
func (s *WatcherState) LastCommitSHA() string {
	return s.lastCommitSHA
}

// AdvanceCommit records sha as the latest commit and reports whether it differs
// from the previously stored one. Only the single latest value is compared, so a
// SHA that returns to the top after another one is reported again.
func (s *WatcherState) AdvanceCommit(sha string) bool {
	if sha == s.lastCommitSHA {
		return false
	}
	s.lastCommitSHA = sha
	return true
}

// LastPullRequestID returns the last seen top pull request id
func (s *WatcherState) LastPullRequestID() (int64, bool) {
	return s.lastPullRequestID, s.hasPullRequest
}

// AdvancePullRequest records id as the latest pull request and reports whether it
// differs from the previously stored one.
func (s *WatcherState) AdvancePullRequest(id int64) bool {
	if s.hasPullRequest && id == s.lastPullRequestID {
		return false
	}
	s.lastPullRequestID = id
	s.hasPullRequest = true
	return true
}

// NewBranches returns the names not yet known, without recording them.
// Duplicates in names are reported once.
func (s *WatcherState) NewBranches(names []string) []string {
	var fresh []string
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := s.knownBranches[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fresh = append(fresh, name)
	}
	return fresh
}

// AddBranches marks names as known
func (s *WatcherState) AddBranches(names []string) {
	if s.knownBranches == nil {
		s.knownBranches = make(map[string]struct{}, len(names))
	}
	for _, name := range names {
		s.knownBranches[name] = struct{}{}
	}
}

// KnownBranches returns the known branch names in sorted order
func (s *WatcherState) KnownBranches() []string {
	names := make([]string, 0, len(s.knownBranches))
	for name := range s.knownBranches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BranchBaselineTaken reports whether the first branch set has been recorded
func (s *WatcherState) BranchBaselineTaken() bool {
	return s.branchBaseline
}

// TakeBranchBaseline records names as known without announcing them
func (s *WatcherState) TakeBranchBaseline(names []string) {
	s.AddBranches(names)
	s.branchBaseline = true
}
