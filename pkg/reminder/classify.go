package reminder

import (
	"time"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// Urgency thresholds in calendar days until the due date.
const (
	redMaxDays    = 2
	yellowMaxDays = 7
)

// Classify returns the urgency of bill relative to now. Day boundaries are
// taken in now's location; the due date is read as a calendar date.
func Classify(bill Bill, now time.Time) Urgency {
	if bill.IsPaid() {
		return UrgencyPaid
	}
	return urgencyForDays(model.DaysUntil(bill.DueDate, now))
}

func urgencyForDays(diff int) Urgency {
	switch {
	case diff <= redMaxDays:
		return UrgencyRed
	case diff <= yellowMaxDays:
		return UrgencyYellow
	default:
		return UrgencyGreen
	}
}
