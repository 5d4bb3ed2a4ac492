package session

import (
	"fmt"
	"time"
)

// urgentThresholdMinutes: milestones this close to the limit escalate
// to the urgent message.
const urgentThresholdMinutes = 10

// Poll computes the session's time-budget status at now and commits at
// most one newly eligible milestone to the sent set. It must run inside
// the store's per-entry critical section (see Store.With) so the read
// of the sent set and its update are atomic.
func Poll(sess *Session, now time.Time) Status {
	elapsed := now.Sub(sess.StartedAt)
	if elapsed < 0 {
		// Wall-clock regression on a non-monotonic source; never
		// report negative elapsed.
		elapsed = 0
	}

	elapsedMinutes := int(elapsed / time.Minute)
	remaining := sess.Limit() - elapsed
	if remaining < 0 {
		remaining = 0
	}

	status := Status{
		Registration: sess.Profile.Registration,
		Name:         sess.Profile.Name,
		Elapsed:      formatClock(elapsed),
		Remaining:    formatClock(remaining),
		ForcedLogout: remaining <= 0,
	}

	if m, ok := nextMilestone(elapsedMinutes, sess.Milestones, sess.sent); ok {
		sess.sent[m] = true
		status.Notification = milestoneMessage(sess.LimitMinutes, m)
	}

	return status
}

// nextMilestone selects the first milestone in list order that elapsed
// time has reached and that has not been reported yet. At most one is
// returned per call even when several became eligible since the last
// poll.
func nextMilestone(elapsedMinutes int, milestones []int, sent map[int]bool) (int, bool) {
	for _, m := range milestones {
		if elapsedMinutes >= m && !sent[m] {
			return m, true
		}
	}
	return 0, false
}

// milestoneMessage renders the notification for milestone m against the
// session limit.
func milestoneMessage(limitMinutes, m int) string {
	remain := limitMinutes - m
	if remain <= urgentThresholdMinutes {
		return fmt.Sprintf("Only %d minutes remain! Save your work and finish up.", remain)
	}
	return fmt.Sprintf("~%d minutes remain", remain)
}

// formatClock renders a duration as H:MM:SS, truncating fractional
// seconds.
func formatClock(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
