package scheduler

import (
	"time"

	"github.com/Tih000/max/internal/models"
)

const (
	// GraceWindow is the tolerance around "now". A reminder due inside the
	// window fires immediately instead of being handed to the timer engine;
	// a reminder further in the past than the window is treated as missed
	// and is never recovered.
	GraceWindow = 5 * time.Second

	// DefaultRemindLead is how long before a task's due date its reminder
	// fires when no explicit offset is given
	DefaultRemindLead = 120 * time.Minute
)

// RemindAtFor computes when a reminder for a due date should fire: lead
// before the due date, but never in the past relative to now.
func RemindAtFor(dueAt time.Time, lead time.Duration, now time.Time) time.Time {
	at := dueAt.Add(-lead)
	if at.Before(now) {
		return now
	}
	return at
}

// ResolveRecipient picks who a reminder goes to: explicit recipient first,
// then the task's assignee, then its creator.
func ResolveRecipient(task *models.Task, explicit *int64) int64 {
	if explicit != nil {
		return *explicit
	}
	if task.AssigneeID != nil {
		return *task.AssigneeID
	}
	return task.CreatorID
}

// TimeWindow is a half-open interval [From, To)
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// DayWindow returns the calendar day containing now, in now's location
func DayWindow(now time.Time) TimeWindow {
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return TimeWindow{From: from, To: from.Add(24 * time.Hour)}
}
