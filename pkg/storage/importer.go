package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// BillSeed is one entry of a YAML bill file.
type BillSeed struct {
	Title                string `yaml:"title"`
	Amount               string `yaml:"amount"`
	DueDate              string `yaml:"due_date"`
	Category             string `yaml:"category"`
	RecurringInterval    string `yaml:"recurring_interval"`
	InvoiceURL           string `yaml:"invoice_url"`
	SoundIntervalMinutes int    `yaml:"sound_interval_minutes"`
	Paid                 bool   `yaml:"paid"`
}

// SeedFile is the top-level layout of a YAML bill file.
type SeedFile struct {
	Bills []BillSeed `yaml:"bills"`
}

// LoadBills reads a YAML bill file and returns validated bills ready to insert.
func LoadBills(path string) ([]model.Bill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bill file %s: %w", path, err)
	}

	bills, err := LoadBillsFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("bill file %s: %w", path, err)
	}
	return bills, nil
}

// LoadBillsFromBytes parses YAML bill data from raw bytes.
func LoadBillsFromBytes(data []byte) ([]model.Bill, error) {
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse bill data: %w", err)
	}
	if len(f.Bills) == 0 {
		return nil, fmt.Errorf("no bills defined")
	}

	bills := make([]model.Bill, 0, len(f.Bills))
	for i, seed := range f.Bills {
		b, err := seed.toBill()
		if err != nil {
			return nil, fmt.Errorf("bill %d (%s): %w", i+1, seed.Title, err)
		}
		bills = append(bills, b)
	}
	return bills, nil
}

func (s BillSeed) toBill() (model.Bill, error) {
	amount, err := decimal.NewFromString(s.Amount)
	if err != nil {
		return model.Bill{}, fmt.Errorf("parse amount %q: %w", s.Amount, err)
	}
	due, err := time.Parse(time.DateOnly, s.DueDate)
	if err != nil {
		return model.Bill{}, fmt.Errorf("parse due date %q: %w", s.DueDate, err)
	}

	b := model.Bill{
		Title:                        s.Title,
		Amount:                       amount,
		DueDate:                      due,
		Category:                     s.Category,
		IsRecurring:                  s.RecurringInterval != "",
		RecurringInterval:            model.RecurringInterval(s.RecurringInterval),
		InvoiceURL:                   s.InvoiceURL,
		ReminderSoundIntervalMinutes: s.SoundIntervalMinutes,
	}
	if s.Paid {
		b.Status = model.StatusPaid
	}
	b.ApplyDefaults()
	if err := b.Validate(); err != nil {
		return model.Bill{}, err
	}
	return b, nil
}

// ImportBills inserts bills in order and returns how many were created before
// the first failure.
func ImportBills(ctx context.Context, store BillStore, bills []model.Bill) (int, error) {
	for i := range bills {
		if err := store.CreateBill(ctx, &bills[i]); err != nil {
			return i, fmt.Errorf("import %q: %w", bills[i].Title, err)
		}
	}
	return len(bills), nil
}
