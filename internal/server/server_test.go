package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itcctvonlinetif-sudo/BillTracker/internal/server"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/reminder"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/storage"
)

var testNow = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

type fakeMailer struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (f *fakeMailer) Send(_ context.Context, _, subject, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	return nil
}

type testEnv struct {
	srv    *server.Server
	store  *storage.SQLite
	mailer *fakeMailer
	alerts *channels.AlertBoard
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clk := clock.NewFake()
	clk.Set(testNow)
	mailer := &fakeMailer{}
	board := channels.NewAlertBoard(clk)

	reg := channels.NewRegistry()
	require.NoError(t, reg.Register(channels.NewEmailChannel(mailer)))
	require.NoError(t, reg.Register(channels.NewSoundChannel(board)))

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	opts := reminder.DefaultOptions()
	opts.Location = time.UTC
	sched := reminder.NewScheduler(store, reg, clk, logger, opts)

	srv := server.NewServer(server.Deps{
		Store:     store,
		Scheduler: sched,
		Channels:  reg,
		Alerts:    board,
		Clock:     clk,
		Location:  time.UTC,
	}, logger)
	return &testEnv{srv: srv, store: store, mailer: mailer, alerts: board}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) createBill(t *testing.T, title string, due time.Time) *model.Bill {
	t.Helper()
	b := &model.Bill{
		Title:   title,
		Amount:  decimal.RequireFromString("25.00"),
		DueDate: due,
	}
	require.NoError(t, e.store.CreateBill(context.Background(), b))
	return b
}

func (e *testEnv) enableNotifications(t *testing.T) {
	t.Helper()
	st := model.DefaultSettings()
	st.UserEmail = "me@example.com"
	st.IsSoundEnabled = true
	require.NoError(t, e.store.UpdateSettings(context.Background(), &st))
}

type billResponse struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	Amount    decimal.Decimal  `json:"amount"`
	DueDate   time.Time        `json:"due_date"`
	Status    model.BillStatus `json:"status"`
	Urgency   model.Urgency    `json:"urgency"`
	DaysLeft  int              `json:"days_left"`
	Projected bool             `json:"projected"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestServer_Health(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "GET", "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]string](t, w)
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_CreateAndGetBill(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "POST", "/api/v1/bills",
		`{"title":"Internet","amount":"39.90","due_date":"2026-10-18","category":"utilities"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[billResponse](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.StatusUnpaid, created.Status)
	assert.Equal(t, model.UrgencyRed, created.Urgency)
	assert.Equal(t, 1, created.DaysLeft)

	w = env.do(t, "GET", "/api/v1/bills/"+itoa(created.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[billResponse](t, w)
	assert.Equal(t, "Internet", got.Title)
	assert.True(t, decimal.RequireFromString("39.90").Equal(got.Amount))
	assert.Equal(t, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), got.DueDate)
}

func TestServer_CreateBill_Invalid(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing title", `{"amount":"1","due_date":"2026-10-18"}`},
		{"missing due date", `{"title":"x","amount":"1"}`},
		{"bad due date", `{"title":"x","amount":"1","due_date":"18/10/2026"}`},
		{"negative amount", `{"title":"x","amount":"-1","due_date":"2026-10-18"}`},
		{"unknown field", `{"title":"x","amount":"1","due_date":"2026-10-18","colour":"red"}`},
		{"bad interval", `{"title":"x","amount":"1","due_date":"2026-10-18","is_recurring":true,"recurring_interval":"weekly"}`},
		{"not json", `title=x`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/v1/bills", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[map[string]string](t, w), "error")
		})
	}
}

func TestServer_GetBill_Errors(t *testing.T) {
	env := setupServer(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/bills/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/bills/abc", "").Code)
}

func TestServer_UpdateBill(t *testing.T) {
	env := setupServer(t)
	b := env.createBill(t, "Gas", testNow.AddDate(0, 0, 20))

	w := env.do(t, "PUT", "/api/v1/bills/"+itoa(b.ID),
		`{"title":"Gas (winter)","amount":"61.00","due_date":"2026-10-22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[billResponse](t, w)
	assert.Equal(t, "Gas (winter)", got.Title)
	assert.Equal(t, model.UrgencyYellow, got.Urgency)

	w = env.do(t, "PUT", "/api/v1/bills/999", `{"title":"x","amount":"1","due_date":"2026-10-22"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_UpdateBill_KeepsOmittedStatus(t *testing.T) {
	env := setupServer(t)
	b := env.createBill(t, "Water", testNow.AddDate(0, 0, 3))
	require.NoError(t, env.store.SetBillStatus(context.Background(), b.ID, model.StatusPaid))

	w := env.do(t, "PUT", "/api/v1/bills/"+itoa(b.ID),
		`{"title":"Water","amount":"27.40","due_date":"2026-10-20"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusPaid, decode[billResponse](t, w).Status)

	w = env.do(t, "PUT", "/api/v1/bills/"+itoa(b.ID),
		`{"title":"Water","amount":"27.40","due_date":"2026-10-20","status":"unpaid"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusUnpaid, decode[billResponse](t, w).Status)
}

func TestServer_DeleteBill(t *testing.T) {
	env := setupServer(t)
	b := env.createBill(t, "Gym", testNow)

	assert.Equal(t, http.StatusNoContent, env.do(t, "DELETE", "/api/v1/bills/"+itoa(b.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "GET", "/api/v1/bills/"+itoa(b.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "DELETE", "/api/v1/bills/"+itoa(b.ID), "").Code)
}

func TestServer_PayBill(t *testing.T) {
	env := setupServer(t)
	b := env.createBill(t, "Rent", testNow)
	env.alerts.Raise(channels.Alert{BillID: b.ID, Title: "Rent"})

	w := env.do(t, "POST", "/api/v1/bills/"+itoa(b.ID)+"/pay", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[billResponse](t, w)
	assert.Equal(t, model.StatusPaid, got.Status)
	assert.Equal(t, model.UrgencyPaid, got.Urgency)
	assert.Empty(t, env.alerts.Pending())

	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/v1/bills/999/pay", "").Code)
}

func TestServer_ListBills_StatusFilter(t *testing.T) {
	env := setupServer(t)
	env.createBill(t, "A", testNow)
	paid := env.createBill(t, "B", testNow.AddDate(0, 0, 3))
	require.NoError(t, env.store.SetBillStatus(context.Background(), paid.ID, model.StatusPaid))

	w := env.do(t, "GET", "/api/v1/bills", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]billResponse](t, w), 2)

	w = env.do(t, "GET", "/api/v1/bills?status=unpaid", "")
	require.Equal(t, http.StatusOK, w.Code)
	unpaid := decode[[]billResponse](t, w)
	require.Len(t, unpaid, 1)
	assert.Equal(t, "A", unpaid[0].Title)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/bills?status=overdue", "").Code)
}

func TestServer_ListBills_MonthWithProjections(t *testing.T) {
	env := setupServer(t)
	ctx := context.Background()

	rent := &model.Bill{
		Title:             "Rent",
		Amount:            decimal.RequireFromString("900"),
		DueDate:           time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		IsRecurring:       true,
		RecurringInterval: model.IntervalMonthly,
	}
	require.NoError(t, env.store.CreateBill(ctx, rent))
	env.createBill(t, "Car tax", time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC))
	env.createBill(t, "October only", time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC))

	w := env.do(t, "GET", "/api/v1/bills?month=2026-11", "")
	require.Equal(t, http.StatusOK, w.Code)
	bills := decode[[]billResponse](t, w)
	require.Len(t, bills, 2)

	assert.Equal(t, "Car tax", bills[0].Title)
	assert.False(t, bills[0].Projected)
	assert.Equal(t, "Rent", bills[1].Title)
	assert.True(t, bills[1].Projected)
	assert.Equal(t, rent.ID, bills[1].ID)
	assert.Equal(t, time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC), bills[1].DueDate)
	assert.Equal(t, model.UrgencyGreen, bills[1].Urgency)

	w = env.do(t, "GET", "/api/v1/bills?month=2026-09", "")
	require.Equal(t, http.StatusOK, w.Code)
	september := decode[[]billResponse](t, w)
	require.Len(t, september, 1)
	assert.False(t, september[0].Projected)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "GET", "/api/v1/bills?month=November", "").Code)
}

func TestServer_Settings(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "GET", "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[model.Settings](t, w)
	assert.True(t, st.IsEmailEnabled)
	assert.False(t, st.IsSoundEnabled)

	w = env.do(t, "PUT", "/api/v1/settings",
		`{"user_email":"me@example.com","is_email_enabled":true,"is_sound_enabled":true,"alert_sound_url":"/sounds/bell.mp3"}`)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := env.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.UserEmail)
	assert.True(t, got.IsSoundEnabled)
	assert.Equal(t, "/sounds/bell.mp3", got.AlertSoundURL)

	assert.Equal(t, http.StatusBadRequest, env.do(t, "PUT", "/api/v1/settings", `{"theme":"dark"}`).Code)
}

func TestServer_Settings_PartialUpdate(t *testing.T) {
	env := setupServer(t)
	env.enableNotifications(t)

	w := env.do(t, "PUT", "/api/v1/settings", `{"is_muted":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := env.store.GetSettings(context.Background())
	require.NoError(t, err)
	assert.True(t, got.IsMuted)
	assert.True(t, got.IsEmailEnabled)
	assert.True(t, got.IsSoundEnabled)
	assert.Equal(t, "me@example.com", got.UserEmail)
}

func TestServer_TestNotification(t *testing.T) {
	env := setupServer(t)

	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/v1/notifications/pager/test", "").Code)

	// Email is enabled by default but has no recipient yet.
	assert.Equal(t, http.StatusPreconditionFailed, env.do(t, "POST", "/api/v1/notifications/email/test", "").Code)

	env.enableNotifications(t)
	w := env.do(t, "POST", "/api/v1/notifications/email/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.mailer.subjects, 1)

	env.mailer.err = errors.New("mail api: 401 unauthorized")
	assert.Equal(t, http.StatusBadGateway, env.do(t, "POST", "/api/v1/notifications/email/test", "").Code)

	w = env.do(t, "POST", "/api/v1/notifications/sound/test", "")
	require.Equal(t, http.StatusOK, w.Code)
	pending := env.alerts.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Test)
}

func TestServer_SweepAndStatus(t *testing.T) {
	env := setupServer(t)
	env.enableNotifications(t)
	env.createBill(t, "Electricity", testNow.AddDate(0, 0, 1))
	env.createBill(t, "Insurance", testNow.AddDate(0, 0, 30))

	w := env.do(t, "POST", "/api/v1/sweep", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[reminder.SweepReport](t, w)
	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 1, report.Sent["email"])
	assert.Equal(t, 1, report.Sent["sound"])

	w = env.do(t, "GET", "/api/v1/scheduler", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[reminder.Status](t, w)
	assert.Equal(t, int64(1), st.Sweeps)
	require.NotNil(t, st.LastSweep)
	assert.Equal(t, report.ID, st.LastSweep.ID)
}

type alertResponse struct {
	Loop     bool             `json:"loop"`
	Enabled  bool             `json:"enabled"`
	Muted    bool             `json:"muted"`
	RedBills []billResponse   `json:"red_bills"`
	Pending  []channels.Alert `json:"pending"`
}

func TestServer_SweepSurvivesClientDisconnect(t *testing.T) {
	env := setupServer(t)
	env.enableNotifications(t)
	a := env.createBill(t, "Phone", testNow)
	b := env.createBill(t, "Rent", testNow.AddDate(0, 0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest("POST", "/api/v1/sweep", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, id := range []int64{a.ID, b.ID} {
		got, err := env.store.GetBill(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, got.LastEmailRemindedAt, "bill %d", id)
	}
	assert.Len(t, env.mailer.subjects, 2)
}

func TestServer_Alerts(t *testing.T) {
	env := setupServer(t)
	env.enableNotifications(t)
	red := env.createBill(t, "Water", testNow)
	env.createBill(t, "Phone", testNow.AddDate(0, 0, 5))

	w := env.do(t, "GET", "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[alertResponse](t, w)
	assert.True(t, feed.Loop)
	require.Len(t, feed.RedBills, 1)
	assert.Equal(t, red.ID, feed.RedBills[0].ID)
	assert.Empty(t, feed.Pending)

	require.Equal(t, http.StatusOK, env.do(t, "POST", "/api/v1/sweep", "").Code)
	feed = decode[alertResponse](t, env.do(t, "GET", "/api/v1/alerts", ""))
	require.Len(t, feed.Pending, 1)
	assert.Equal(t, red.ID, feed.Pending[0].BillID)

	w = env.do(t, "POST", "/api/v1/alerts/ack", `{"bill_ids":[`+itoa(red.ID)+`]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[map[string]int](t, w)["acknowledged"])
	assert.Empty(t, env.alerts.Pending())

	st, err := env.store.GetSettings(context.Background())
	require.NoError(t, err)
	st.IsMuted = true
	require.NoError(t, env.store.UpdateSettings(context.Background(), st))
	feed = decode[alertResponse](t, env.do(t, "GET", "/api/v1/alerts", ""))
	assert.False(t, feed.Loop)
	assert.True(t, feed.Muted)
}

func TestServer_AckAll(t *testing.T) {
	env := setupServer(t)
	env.alerts.Raise(channels.Alert{BillID: 1})
	env.alerts.Raise(channels.Alert{BillID: 2})

	w := env.do(t, "POST", "/api/v1/alerts/ack", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[map[string]int](t, w)["acknowledged"])
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
