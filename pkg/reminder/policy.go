package reminder

import (
	"time"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// yellowMessageGapDays is the minimum calendar-day gap between message
// reminders for a Yellow bill.
const yellowMessageGapDays = 2

// MessageDue reports whether the message channels (email, chat) should fire.
// Red bills get one message per calendar day, Yellow bills one every two
// calendar days. last is the bill's LastEmailRemindedAt.
func MessageDue(u Urgency, last *time.Time, now time.Time) bool {
	switch u {
	case UrgencyRed:
		return last == nil || daysSince(*last, now) >= 1
	case UrgencyYellow:
		return last == nil || daysSince(*last, now) >= yellowMessageGapDays
	default:
		return false
	}
}

// SoundDue reports whether the sound alert should fire. Only Red bills sound,
// at most once per intervalMinutes. last is the bill's LastRemindedAt.
func SoundDue(u Urgency, last *time.Time, intervalMinutes int, now time.Time) bool {
	if u != UrgencyRed {
		return false
	}
	if last == nil {
		return true
	}
	return now.Sub(*last) >= time.Duration(intervalMinutes)*time.Minute
}

// daysSince counts calendar days from last to now in now's location.
func daysSince(last, now time.Time) int {
	return model.DaysUntil(now, last.In(now.Location()))
}
