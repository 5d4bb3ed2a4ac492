package session

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var primaryMilestones = []int{30, 90, 120, 150, 170}

func newTestSession(t *testing.T, clock Clock) *Session {
	t.Helper()

	store := NewStore(clock, zerolog.Nop())
	sess, err := store.Create(Profile{
		Registration: "MA123456",
		Name:         "Dr. João da Silva",
		Role:         "primary",
	}, 180, primaryMilestones)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return sess
}

func TestPoll_MilestoneFiresOnce(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	clock.Advance(31 * time.Minute)

	status := Poll(sess, clock.Now())
	if status.Notification != "~150 minutes remain" {
		t.Errorf("Expected milestone 30 notification, got %q", status.Notification)
	}
	if status.ForcedLogout {
		t.Error("Expected no forced logout at 31 minutes")
	}

	// Second immediate poll: milestone already sent
	status = Poll(sess, clock.Now())
	if status.Notification != "" {
		t.Errorf("Expected no notification on repeat poll, got %q", status.Notification)
	}
}

func TestPoll_OneNotificationPerPollUnderBacklog(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	// No polls until minute 95: milestones 30 and 90 are both pending.
	clock.Advance(95 * time.Minute)

	status := Poll(sess, clock.Now())
	if status.Notification != "~150 minutes remain" {
		t.Errorf("Expected earliest pending milestone (30) first, got %q", status.Notification)
	}

	status = Poll(sess, clock.Now())
	if status.Notification != "~90 minutes remain" {
		t.Errorf("Expected milestone 90 on next poll, got %q", status.Notification)
	}

	status = Poll(sess, clock.Now())
	if status.Notification != "" {
		t.Errorf("Expected backlog drained, got %q", status.Notification)
	}
}

func TestPoll_UrgentToneNearLimit(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	clock.Advance(171 * time.Minute)

	// Drain the backlog one milestone per poll until 170 surfaces.
	var status Status
	for i := 0; i < len(primaryMilestones); i++ {
		status = Poll(sess, clock.Now())
	}

	if status.Notification != "Only 10 minutes remain! Save your work and finish up." {
		t.Errorf("Expected urgent message for milestone 170, got %q", status.Notification)
	}
}

func TestPoll_RemainingMonotoneAndNonNegative(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	prev := sess.Limit()
	for i := 0; i < 50; i++ {
		clock.Advance(5 * time.Minute)

		now := clock.Now()
		remaining := sess.Limit() - now.Sub(sess.StartedAt)
		if remaining < 0 {
			remaining = 0
		}
		if remaining > prev {
			t.Fatalf("Remaining increased from %v to %v", prev, remaining)
		}
		prev = remaining

		status := Poll(sess, now)
		if status.Remaining[0] == '-' {
			t.Fatalf("Negative remaining reported: %s", status.Remaining)
		}
	}
}

func TestPoll_ForcedLogoutAtLimit(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	clock.Advance(185 * time.Minute)

	status := Poll(sess, clock.Now())
	if !status.ForcedLogout {
		t.Error("Expected forced logout past the limit")
	}
	if status.Remaining != "0:00:00" {
		t.Errorf("Expected remaining clamped to 0:00:00, got %s", status.Remaining)
	}
	if status.Elapsed != "3:05:00" {
		t.Errorf("Expected elapsed 3:05:00, got %s", status.Elapsed)
	}
}

func TestPoll_ClampsClockRegression(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	sess := newTestSession(t, clock)

	// Wall clock stepped backwards.
	clock.CurrentTime = clock.CurrentTime.Add(-10 * time.Minute)

	status := Poll(sess, clock.Now())
	if status.Elapsed != "0:00:00" {
		t.Errorf("Expected elapsed clamped to 0:00:00, got %s", status.Elapsed)
	}
	if status.ForcedLogout {
		t.Error("Clock regression must not force logout")
	}
}

func TestFormatClock_TruncatesFractionalSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00:00"},
		{61*time.Second + 900*time.Millisecond, "0:01:01"},
		{90 * time.Minute, "1:30:00"},
		{3*time.Hour + 5*time.Second, "3:00:05"},
	}

	for _, tt := range tests {
		if got := formatClock(tt.d); got != tt.want {
			t.Errorf("formatClock(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}

func TestNextMilestone_IgnoresSent(t *testing.T) {
	sent := map[int]bool{30: true}

	m, ok := nextMilestone(95, primaryMilestones, sent)
	if !ok || m != 90 {
		t.Errorf("Expected milestone 90, got %d (ok=%v)", m, ok)
	}

	if _, ok := nextMilestone(29, primaryMilestones, map[int]bool{}); ok {
		t.Error("Expected no milestone before the first mark")
	}
}
