package session

import "time"

// Profile is the identity issued by the credential validator.
// Immutable once issued.
type Profile struct {
	Registration string `json:"registration"`
	Name         string `json:"name"`
	Role         string `json:"role"`
}

// Session is one live workstation session, keyed by registration.
// StartedAt, LimitMinutes and Milestones never change after creation;
// the sent set only grows, and only inside the store's per-entry
// critical section.
type Session struct {
	Profile      Profile
	StartedAt    time.Time
	LimitMinutes int
	Milestones   []int

	sent map[int]bool
}

// Limit returns the session's time limit as a duration.
func (s *Session) Limit() time.Duration {
	return time.Duration(s.LimitMinutes) * time.Minute
}

// Expired reports whether the session's time budget is exhausted at now.
func (s *Session) Expired(now time.Time) bool {
	return now.Sub(s.StartedAt) >= s.Limit()
}

// SentMilestones returns the minute marks already notified, for
// inspection in summaries and tests. Order is unspecified.
func (s *Session) SentMilestones() []int {
	marks := make([]int, 0, len(s.sent))
	for m := range s.sent {
		marks = append(marks, m)
	}
	return marks
}

// Status is the result of a status poll.
type Status struct {
	Registration string `json:"registration"`
	Name         string `json:"name"`
	// Elapsed and Remaining are H:MM:SS with fractional seconds truncated.
	// Remaining never goes below "0:00:00".
	Elapsed      string `json:"elapsed"`
	Remaining    string `json:"remaining"`
	ForcedLogout bool   `json:"forced_logout"`
	// Notification is empty when no milestone became newly eligible.
	Notification string `json:"notification,omitempty"`
}
