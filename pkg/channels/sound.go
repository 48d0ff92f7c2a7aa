package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// Alert is a pending client-side sound alert.
type Alert struct {
	BillID   int64         `json:"bill_id"`
	Title    string        `json:"title"`
	Urgency  model.Urgency `json:"urgency"`
	DaysLeft int           `json:"days_left"`
	Test     bool          `json:"test,omitempty"`
	RaisedAt time.Time     `json:"raised_at"`
}

// AlertBoard holds sound alerts until the client player acknowledges them.
// A bill has at most one pending alert; raising it again refreshes it.
type AlertBoard struct {
	clk     clock.Clock
	mu      sync.Mutex
	pending map[int64]Alert
}

// NewAlertBoard creates an empty board.
func NewAlertBoard(clk clock.Clock) *AlertBoard {
	if clk == nil {
		clk = clock.New()
	}
	return &AlertBoard{clk: clk, pending: make(map[int64]Alert)}
}

// Raise records an alert, stamping RaisedAt.
func (b *AlertBoard) Raise(a Alert) {
	a.RaisedAt = b.clk.Now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[a.BillID] = a
}

// Pending returns the unacknowledged alerts, oldest first.
func (b *AlertBoard) Pending() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Alert, 0, len(b.pending))
	for _, a := range b.pending {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RaisedAt.Equal(out[j].RaisedAt) {
			return out[i].BillID < out[j].BillID
		}
		return out[i].RaisedAt.Before(out[j].RaisedAt)
	})
	return out
}

// Ack removes the alerts of the given bills, or every alert when none is given.
func (b *AlertBoard) Ack(billIDs ...int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(billIDs) == 0 {
		n := len(b.pending)
		clear(b.pending)
		return n
	}
	n := 0
	for _, id := range billIDs {
		if _, ok := b.pending[id]; ok {
			delete(b.pending, id)
			n++
		}
	}
	return n
}

// SoundChannel raises alerts for the client audio player.
type SoundChannel struct {
	board *AlertBoard
}

// NewSoundChannel creates a sound channel posting to board.
func NewSoundChannel(board *AlertBoard) *SoundChannel {
	return &SoundChannel{board: board}
}

func (s *SoundChannel) Name() string { return "sound" }

func (s *SoundChannel) Kind() Kind { return KindSound }

func (s *SoundChannel) Enabled(st model.Settings) bool {
	return st.IsSoundEnabled
}

func (s *SoundChannel) Send(_ context.Context, r Reminder, st model.Settings) error {
	if !s.Enabled(st) {
		return ErrNotConfigured
	}
	s.board.Raise(Alert{
		BillID:   r.Bill.ID,
		Title:    r.Bill.Title,
		Urgency:  r.Urgency,
		DaysLeft: r.DaysLeft,
	})
	return nil
}

func (s *SoundChannel) SendTest(_ context.Context, st model.Settings) error {
	if !s.Enabled(st) {
		return fmt.Errorf("%w: sound alerts are disabled", ErrNotConfigured)
	}
	s.board.Raise(Alert{Title: testSubject, Test: true})
	return nil
}
