package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultSoundIntervalMinutes is the repeat interval for the sound alert of a Red bill.
const DefaultSoundIntervalMinutes = 120

// ErrInvalidBill is wrapped by every Bill.Validate failure.
var ErrInvalidBill = errors.New("invalid bill")

// BillStatus is the payment state of a bill.
type BillStatus string

const (
	StatusUnpaid BillStatus = "unpaid"
	StatusPaid   BillStatus = "paid"
)

// Valid reports whether s is a known status.
func (s BillStatus) Valid() bool {
	return s == StatusUnpaid || s == StatusPaid
}

// Urgency is the reminder tier of a bill relative to a reference time.
type Urgency string

const (
	UrgencyRed    Urgency = "red"
	UrgencyYellow Urgency = "yellow"
	UrgencyGreen  Urgency = "green"
	UrgencyPaid   Urgency = "paid"
)

// Bill is a single payable obligation. For recurring bills DueDate anchors
// the first occurrence.
type Bill struct {
	ID                           int64             `json:"id" db:"id"`
	Title                        string            `json:"title" db:"title"`
	Amount                       decimal.Decimal   `json:"amount" db:"amount"`
	DueDate                      time.Time         `json:"due_date" db:"due_date"`
	Status                       BillStatus        `json:"status" db:"status"`
	Category                     string            `json:"category" db:"category"`
	IsRecurring                  bool              `json:"is_recurring" db:"is_recurring"`
	RecurringInterval            RecurringInterval `json:"recurring_interval,omitempty" db:"recurring_interval"`
	InvoiceURL                   string            `json:"invoice_url,omitempty" db:"invoice_url"`
	ReminderSoundIntervalMinutes int               `json:"reminder_sound_interval_minutes" db:"reminder_sound_interval_minutes"`
	LastEmailRemindedAt          *time.Time        `json:"last_email_reminded_at,omitempty" db:"last_email_reminded_at"`
	LastRemindedAt               *time.Time        `json:"last_reminded_at,omitempty" db:"last_reminded_at"`
	CreatedAt                    time.Time         `json:"created_at" db:"created_at"`

	corrupt string
}

// AmountScale is the number of decimal places an amount may carry.
const AmountScale = 2

// MarkCorrupt flags a stored row that could not be read back faithfully.
// Validate reports it until the bill is rewritten.
func (b *Bill) MarkCorrupt(reason string) {
	b.corrupt = reason
}

// ApplyDefaults fills zero-valued optional fields of a new bill.
func (b *Bill) ApplyDefaults() {
	if b.Status == "" {
		b.Status = StatusUnpaid
	}
	if b.ReminderSoundIntervalMinutes == 0 {
		b.ReminderSoundIntervalMinutes = DefaultSoundIntervalMinutes
	}
	if !b.IsRecurring {
		b.RecurringInterval = ""
	}
	if !b.DueDate.IsZero() {
		b.DueDate = CivilDate(b.DueDate)
	}
}

// CivilDate returns midnight UTC of t's calendar date in t's own location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysUntil returns the number of calendar days from now's date to due's
// date, each read in its own location. Overdue dates give negative values.
func DaysUntil(due, now time.Time) int {
	return int(CivilDate(due).Sub(CivilDate(now)) / (24 * time.Hour))
}

// Validate reports the first data error found in b.
func (b Bill) Validate() error {
	switch {
	case b.corrupt != "":
		return fmt.Errorf("%w: %s", ErrInvalidBill, b.corrupt)
	case b.Title == "":
		return fmt.Errorf("%w: title is empty", ErrInvalidBill)
	case b.Amount.IsNegative():
		return fmt.Errorf("%w: amount %s is negative", ErrInvalidBill, b.Amount)
	case !b.Amount.Equal(b.Amount.Round(AmountScale)):
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidBill, b.Amount, AmountScale)
	case b.DueDate.IsZero():
		return fmt.Errorf("%w: due date is missing", ErrInvalidBill)
	case !b.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidBill, b.Status)
	case b.ReminderSoundIntervalMinutes <= 0:
		return fmt.Errorf("%w: sound interval must be positive, got %d", ErrInvalidBill, b.ReminderSoundIntervalMinutes)
	case b.IsRecurring && !b.RecurringInterval.Valid():
		return fmt.Errorf("%w: unknown recurring interval %q", ErrInvalidBill, b.RecurringInterval)
	}
	return nil
}

// IsPaid reports whether the bill has been settled.
func (b Bill) IsPaid() bool {
	return b.Status == StatusPaid
}

// ReminderUpdate carries the timestamps written back after a send attempt.
// Nil fields are left untouched.
type ReminderUpdate struct {
	LastRemindedAt      *time.Time
	LastEmailRemindedAt *time.Time
}

// Empty reports whether the update would change nothing.
func (u ReminderUpdate) Empty() bool {
	return u.LastRemindedAt == nil && u.LastEmailRemindedAt == nil
}

// Settings is the singleton notification configuration.
type Settings struct {
	UserEmail         string    `json:"user_email" db:"user_email"`
	IsEmailEnabled    bool      `json:"is_email_enabled" db:"is_email_enabled"`
	TelegramToken     string    `json:"telegram_token" db:"telegram_token"`
	TelegramChatID    string    `json:"telegram_chat_id" db:"telegram_chat_id"`
	IsTelegramEnabled bool      `json:"is_telegram_enabled" db:"is_telegram_enabled"`
	AlertSoundURL     string    `json:"alert_sound_url" db:"alert_sound_url"`
	IsSoundEnabled    bool      `json:"is_sound_enabled" db:"is_sound_enabled"`
	IsMuted           bool      `json:"is_muted" db:"is_muted"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultSettings returns the row created on first read.
func DefaultSettings() Settings {
	return Settings{IsEmailEnabled: true}
}

// MonthBounds returns the half-open range [start, end) of the given month in loc.
func MonthBounds(year int, month time.Month, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// ParseMonth parses a "2006-01" month string.
func ParseMonth(s string, loc *time.Location) (start, end time.Time, err error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	start, end = MonthBounds(t.Year(), t.Month(), loc)
	return start, end, nil
}
