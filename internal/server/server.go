package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/jmhodges/clock"
	"github.com/shopspring/decimal"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/reminder"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/storage"
)

const (
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

// Deps are the collaborators the API serves.
type Deps struct {
	Store     storage.Storage
	Scheduler *reminder.Scheduler
	Channels  *channels.Registry
	Alerts    *channels.AlertBoard
	Clock     clock.Clock
	Location  *time.Location
}

// Server exposes bills, settings, notification tests and the alert feed
// over HTTP.
type Server struct {
	store     storage.Storage
	scheduler *reminder.Scheduler
	channels  *channels.Registry
	alerts    *channels.AlertBoard
	clock     clock.Clock
	loc       *time.Location
	mux       *http.ServeMux
	logger    *slog.Logger
}

// NewServer creates an API server.
func NewServer(deps Deps, logger *slog.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	s := &Server{
		store:     deps.Store,
		scheduler: deps.Scheduler,
		channels:  deps.Channels,
		alerts:    deps.Alerts,
		clock:     deps.Clock,
		loc:       deps.Location,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/v1/bills", s.handleListBills)
	s.mux.HandleFunc("POST /api/v1/bills", s.handleCreateBill)
	s.mux.HandleFunc("GET /api/v1/bills/{id}", s.handleGetBill)
	s.mux.HandleFunc("PUT /api/v1/bills/{id}", s.handleUpdateBill)
	s.mux.HandleFunc("DELETE /api/v1/bills/{id}", s.handleDeleteBill)
	s.mux.HandleFunc("POST /api/v1/bills/{id}/pay", s.handlePayBill)

	s.mux.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /api/v1/settings", s.handleUpdateSettings)

	s.mux.HandleFunc("POST /api/v1/notifications/{channel}/test", s.handleTestNotification)
	s.mux.HandleFunc("POST /api/v1/sweep", s.handleSweep)
	s.mux.HandleFunc("GET /api/v1/scheduler", s.handleSchedulerStatus)

	s.mux.HandleFunc("GET /api/v1/alerts", s.handleAlerts)
	s.mux.HandleFunc("POST /api/v1/alerts/ack", s.handleAckAlerts)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// billView is a bill as rendered to clients, with its current urgency.
type billView struct {
	model.Bill
	Urgency   model.Urgency `json:"urgency"`
	DaysLeft  int           `json:"days_left"`
	Projected bool          `json:"projected,omitempty"`
}

func (s *Server) view(b model.Bill, now time.Time) billView {
	return billView{
		Bill:     b,
		Urgency:  reminder.Classify(b, now),
		DaysLeft: model.DaysUntil(b.DueDate, now),
	}
}

func (s *Server) now() time.Time {
	return s.clock.Now().In(s.loc)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	status := model.BillStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", status))
		return
	}

	now := s.now()
	var views []billView
	if month := r.URL.Query().Get("month"); month != "" {
		// Due dates are calendar dates, so month bounds are taken in UTC.
		start, end, err := model.ParseMonth(month, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		views, err = s.monthViews(ctx, start, end, now)
		if err != nil {
			s.logger.Error("list bills by month", "month", month, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	} else {
		bills, err := s.store.ListBills(ctx)
		if err != nil {
			s.logger.Error("list bills", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		for _, b := range bills {
			views = append(views, s.view(b, now))
		}
	}

	out := make([]billView, 0, len(views))
	for _, v := range views {
		if status == "" || v.Status == status {
			out = append(out, v)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// monthViews returns the bills stored for [start, end) plus the projected
// occurrences of recurring bills anchored in other months.
func (s *Server) monthViews(ctx context.Context, start, end, now time.Time) ([]billView, error) {
	stored, err := s.store.ListBillsByMonth(ctx, start, end)
	if err != nil {
		return nil, err
	}
	all, err := s.store.ListBills(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]billView, 0, len(stored))
	for _, b := range stored {
		views = append(views, s.view(b, now))
	}
	for _, b := range all {
		if !b.IsRecurring {
			continue
		}
		for _, due := range model.Occurrences(b, start, end) {
			if due.Equal(b.DueDate) {
				continue
			}
			p := b
			p.DueDate = due
			p.Status = model.StatusUnpaid
			p.LastRemindedAt = nil
			p.LastEmailRemindedAt = nil
			v := s.view(p, now)
			v.Projected = true
			views = append(views, v)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].DueDate.Equal(views[j].DueDate) {
			return views[i].ID < views[j].ID
		}
		return views[i].DueDate.Before(views[j].DueDate)
	})
	return views, nil
}

// billRequest is the create/update payload. DueDate accepts "2006-01-02" or RFC 3339.
type billRequest struct {
	Title                        string                  `json:"title"`
	Amount                       decimal.Decimal         `json:"amount"`
	DueDate                      string                  `json:"due_date"`
	Status                       model.BillStatus        `json:"status"`
	Category                     string                  `json:"category"`
	IsRecurring                  bool                    `json:"is_recurring"`
	RecurringInterval            model.RecurringInterval `json:"recurring_interval"`
	InvoiceURL                   string                  `json:"invoice_url"`
	ReminderSoundIntervalMinutes int                     `json:"reminder_sound_interval_minutes"`
}

func (req billRequest) toBill() (model.Bill, error) {
	due, err := parseDate(req.DueDate)
	if err != nil {
		return model.Bill{}, err
	}
	return model.Bill{
		Title:                        req.Title,
		Amount:                       req.Amount,
		DueDate:                      due,
		Status:                       req.Status,
		Category:                     req.Category,
		IsRecurring:                  req.IsRecurring,
		RecurringInterval:            req.RecurringInterval,
		InvoiceURL:                   req.InvoiceURL,
		ReminderSoundIntervalMinutes: req.ReminderSoundIntervalMinutes,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("due_date is required")
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due_date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req billRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bill, err := req.toBill()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateBill(ctx, &bill); err != nil {
		s.writeStoreError(w, "create bill", err)
		return
	}
	s.logger.Info("bill created", "bill_id", bill.ID, "title", bill.Title)
	writeJSON(w, http.StatusCreated, s.view(bill, s.now()))
}

func (s *Server) handleGetBill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	bill, err := s.store.GetBill(ctx, id)
	if err != nil {
		s.writeStoreError(w, "get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(*bill, s.now()))
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req billRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bill, err := req.toBill()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	current, err := s.store.GetBill(ctx, id)
	if err != nil {
		s.writeStoreError(w, "get bill", err)
		return
	}
	bill.ID = id
	if bill.Status == "" {
		bill.Status = current.Status
	}
	if bill.ReminderSoundIntervalMinutes == 0 {
		bill.ReminderSoundIntervalMinutes = current.ReminderSoundIntervalMinutes
	}

	if err := s.store.UpdateBill(ctx, &bill); err != nil {
		s.writeStoreError(w, "update bill", err)
		return
	}
	updated, err := s.store.GetBill(ctx, id)
	if err != nil {
		s.writeStoreError(w, "get bill", err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(*updated, s.now()))
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteBill(ctx, id); err != nil {
		s.writeStoreError(w, "delete bill", err)
		return
	}
	if s.alerts != nil {
		s.alerts.Ack(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.SetBillStatus(ctx, id, model.StatusPaid); err != nil {
		s.writeStoreError(w, "pay bill", err)
		return
	}
	if s.alerts != nil {
		s.alerts.Ack(id)
	}
	bill, err := s.store.GetBill(ctx, id)
	if err != nil {
		s.writeStoreError(w, "get bill", err)
		return
	}
	s.logger.Info("bill paid", "bill_id", id)
	writeJSON(w, http.StatusOK, s.view(*bill, s.now()))
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.writeStoreError(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	// Fields missing from the body keep their stored values.
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.writeStoreError(w, "get settings", err)
		return
	}
	if !decodeBody(w, r, settings) {
		return
	}
	if err := s.store.UpdateSettings(ctx, settings); err != nil {
		s.writeStoreError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("channel")
	ch, err := s.channels.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.writeStoreError(w, "get settings", err)
		return
	}

	if err := ch.SendTest(ctx, *settings); err != nil {
		if errors.Is(err, channels.ErrNotConfigured) {
			writeError(w, http.StatusPreconditionFailed, err.Error())
			return
		}
		s.logger.Warn("test notification failed", "channel", name, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent", "channel": name})
}

// handleSweep runs a sweep to completion even if the client goes away.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	report, err := s.scheduler.Sweep(r.Context())
	if err != nil {
		s.logger.Error("manual sweep", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// alertFeed is what the client audio player polls.
type alertFeed struct {
	Loop     bool             `json:"loop"`
	Enabled  bool             `json:"enabled"`
	Muted    bool             `json:"muted"`
	SoundURL string           `json:"sound_url,omitempty"`
	RedBills []billView       `json:"red_bills"`
	Pending  []channels.Alert `json:"pending"`
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.writeStoreError(w, "get settings", err)
		return
	}
	bills, err := s.store.ListUnpaidBills(ctx)
	if err != nil {
		s.writeStoreError(w, "list unpaid bills", err)
		return
	}

	now := s.now()
	feed := alertFeed{
		Enabled:  settings.IsSoundEnabled,
		Muted:    settings.IsMuted,
		SoundURL: settings.AlertSoundURL,
		RedBills: []billView{},
		Pending:  []channels.Alert{},
	}
	for _, b := range bills {
		if v := s.view(b, now); v.Urgency == model.UrgencyRed {
			feed.RedBills = append(feed.RedBills, v)
		}
	}
	if s.alerts != nil {
		feed.Pending = s.alerts.Pending()
	}
	feed.Loop = feed.Enabled && !feed.Muted && len(feed.RedBills) > 0
	writeJSON(w, http.StatusOK, feed)
}

type ackRequest struct {
	BillIDs []int64 `json:"bill_ids"`
}

func (s *Server) handleAckAlerts(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	n := 0
	if s.alerts != nil {
		n = s.alerts.Ack(req.BillIDs...)
	}
	writeJSON(w, http.StatusOK, map[string]int{"acknowledged": n})
}

func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidBill):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid bill id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
