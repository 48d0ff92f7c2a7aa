package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// ErrNotFound is returned when a bill does not exist.
var ErrNotFound = errors.New("not found")

// BillStore persists bills and their reminder bookkeeping.
type BillStore interface {
	// CreateBill validates and inserts a bill, assigning its ID and CreatedAt.
	CreateBill(ctx context.Context, bill *model.Bill) error

	// GetBill retrieves a bill by ID.
	GetBill(ctx context.Context, id int64) (*model.Bill, error)

	// UpdateBill replaces the editable fields of a bill. Reminder timestamps
	// and CreatedAt are not touched, except that marking a bill paid clears
	// the timestamps.
	UpdateBill(ctx context.Context, bill *model.Bill) error

	// DeleteBill removes a bill.
	DeleteBill(ctx context.Context, id int64) error

	// ListBills returns every bill ordered by due date.
	ListBills(ctx context.Context) ([]model.Bill, error)

	// ListBillsByMonth returns bills whose due date falls in [start, end).
	ListBillsByMonth(ctx context.Context, start, end time.Time) ([]model.Bill, error)

	// ListUnpaidBills returns every unpaid bill ordered by due date.
	ListUnpaidBills(ctx context.Context) ([]model.Bill, error)

	// SetBillStatus changes the payment state. Paying a bill clears its
	// reminder timestamps.
	SetBillStatus(ctx context.Context, id int64, status model.BillStatus) error

	// UpdateReminderTimestamps advances the non-nil timestamps of an unpaid
	// bill. A timestamp never moves backwards and paid bills are left alone.
	UpdateReminderTimestamps(ctx context.Context, id int64, update model.ReminderUpdate) error
}

// SettingsStore persists the singleton settings row.
type SettingsStore interface {
	// GetSettings returns the settings, creating the default row on first read.
	GetSettings(ctx context.Context) (*model.Settings, error)

	// UpdateSettings overwrites the settings row.
	UpdateSettings(ctx context.Context, settings *model.Settings) error
}

// Storage is the full persistence layer.
type Storage interface {
	BillStore
	SettingsStore

	// Close releases resources.
	Close() error
}

// Options selects and configures a Storage backend.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open returns the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Driver {
	case "", "sqlite":
		return NewSQLite(opts.Path)
	case "postgres":
		return NewPostgres(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

func billNotFound(id int64) error {
	return fmt.Errorf("bill %d: %w", id, ErrNotFound)
}
