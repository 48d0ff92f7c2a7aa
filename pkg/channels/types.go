package channels

import (
	"context"
	"errors"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// ErrNotConfigured is returned by SendTest when a channel is disabled or
// lacks credentials.
var ErrNotConfigured = errors.New("channel not configured")

// Kind groups channels that share one reminder cadence.
type Kind string

const (
	// KindMessage channels share the bill's LastEmailRemindedAt gate.
	KindMessage Kind = "message"
	// KindSound channels are gated by LastRemindedAt and the bill's sound interval.
	KindSound Kind = "sound"
)

// Reminder is a single notification about one bill.
type Reminder struct {
	Bill    model.Bill
	Urgency model.Urgency
	// DaysLeft is the calendar-day distance to the due date; negative when overdue.
	DaysLeft int
}

// Channel delivers reminders over one medium.
type Channel interface {
	// Name returns the channel identifier.
	Name() string

	// Kind returns the cadence group of the channel.
	Kind() Kind

	// Enabled reports whether settings enable the channel and carry its credentials.
	Enabled(settings model.Settings) bool

	// Send delivers a reminder. Implementations must be safe for concurrent use.
	Send(ctx context.Context, r Reminder, settings model.Settings) error

	// SendTest delivers a test notification, ignoring cadence.
	SendTest(ctx context.Context, settings model.Settings) error
}
