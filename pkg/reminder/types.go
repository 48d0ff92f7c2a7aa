package reminder

import "github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"

// Re-export types from model package for convenience.
type (
	Bill     = model.Bill
	Settings = model.Settings
	Urgency  = model.Urgency
)

// Re-export constants.
const (
	UrgencyRed    = model.UrgencyRed
	UrgencyYellow = model.UrgencyYellow
	UrgencyGreen  = model.UrgencyGreen
	UrgencyPaid   = model.UrgencyPaid
)
