package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"

	_ "modernc.org/sqlite"
)

const billColumns = `id, title, amount, due_date, status, category, is_recurring, recurring_interval,
	invoice_url, reminder_sound_interval_minutes, last_email_reminded_at, last_reminded_at, created_at`

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateBill(ctx context.Context, bill *model.Bill) error {
	bill.ApplyDefaults()
	if err := bill.Validate(); err != nil {
		return err
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bills (title, amount, due_date, status, category, is_recurring, recurring_interval,
			invoice_url, reminder_sound_interval_minutes, last_email_reminded_at, last_reminded_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.Title, bill.Amount.String(), formatDueDate(bill.DueDate), bill.Status, bill.Category,
		bill.IsRecurring, bill.RecurringInterval, bill.InvoiceURL, bill.ReminderSoundIntervalMinutes,
		nullUnix(bill.LastEmailRemindedAt), nullUnix(bill.LastRemindedAt), bill.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read bill id: %w", err)
	}
	bill.ID = id
	return nil
}

func (s *SQLite) GetBill(ctx context.Context, id int64) (*model.Bill, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+billColumns+" FROM bills WHERE id = ?", id)
	b, err := scanSQLiteBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, billNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return &b, nil
}

func (s *SQLite) UpdateBill(ctx context.Context, bill *model.Bill) error {
	bill.ApplyDefaults()
	if err := bill.Validate(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET
		   title = ?, amount = ?, due_date = ?, status = ?, category = ?, is_recurring = ?,
		   recurring_interval = ?, invoice_url = ?, reminder_sound_interval_minutes = ?,
		   last_email_reminded_at = CASE WHEN ? = 'paid' THEN NULL ELSE last_email_reminded_at END,
		   last_reminded_at = CASE WHEN ? = 'paid' THEN NULL ELSE last_reminded_at END
		 WHERE id = ?`,
		bill.Title, bill.Amount.String(), formatDueDate(bill.DueDate), bill.Status, bill.Category,
		bill.IsRecurring, bill.RecurringInterval, bill.InvoiceURL, bill.ReminderSoundIntervalMinutes,
		bill.Status, bill.Status, bill.ID,
	)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	return expectAffected(res, bill.ID)
}

func (s *SQLite) DeleteBill(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	return expectAffected(res, id)
}

func (s *SQLite) ListBills(ctx context.Context) ([]model.Bill, error) {
	return s.queryBills(ctx, "SELECT "+billColumns+" FROM bills ORDER BY due_date, id")
}

func (s *SQLite) ListBillsByMonth(ctx context.Context, start, end time.Time) ([]model.Bill, error) {
	return s.queryBills(ctx,
		"SELECT "+billColumns+" FROM bills WHERE due_date >= ? AND due_date < ? ORDER BY due_date, id",
		formatDueDate(start), formatDueDate(end))
}

func (s *SQLite) ListUnpaidBills(ctx context.Context) ([]model.Bill, error) {
	return s.queryBills(ctx,
		"SELECT "+billColumns+" FROM bills WHERE status = 'unpaid' ORDER BY due_date, id")
}

func (s *SQLite) SetBillStatus(ctx context.Context, id int64, status model.BillStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidBill, status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET
		   status = ?,
		   last_email_reminded_at = CASE WHEN ? = 'paid' THEN NULL ELSE last_email_reminded_at END,
		   last_reminded_at = CASE WHEN ? = 'paid' THEN NULL ELSE last_reminded_at END
		 WHERE id = ?`,
		status, status, status, id,
	)
	if err != nil {
		return fmt.Errorf("set bill status: %w", err)
	}
	return expectAffected(res, id)
}

func (s *SQLite) UpdateReminderTimestamps(ctx context.Context, id int64, update model.ReminderUpdate) error {
	if update.Empty() {
		return nil
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bills SET
		   last_reminded_at = CASE
		     WHEN ?1 IS NOT NULL AND (last_reminded_at IS NULL OR last_reminded_at < ?1) THEN ?1
		     ELSE last_reminded_at END,
		   last_email_reminded_at = CASE
		     WHEN ?2 IS NOT NULL AND (last_email_reminded_at IS NULL OR last_email_reminded_at < ?2) THEN ?2
		     ELSE last_email_reminded_at END
		 WHERE id = ?3 AND status = 'unpaid'`,
		nullUnix(update.LastRemindedAt), nullUnix(update.LastEmailRemindedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update reminder timestamps: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	// Nothing matched: either the bill is gone or it has been paid meanwhile.
	var exists int
	err = s.db.QueryRowContext(ctx, "SELECT 1 FROM bills WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return billNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("check bill: %w", err)
	}
	return nil
}

func (s *SQLite) GetSettings(ctx context.Context) (*model.Settings, error) {
	defaults := model.DefaultSettings()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (id, is_email_enabled, updated_at) VALUES (1, ?, ?)`,
		defaults.IsEmailEnabled, time.Now().UTC().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}

	var st model.Settings
	var updated int64
	err = s.db.QueryRowContext(ctx,
		`SELECT user_email, is_email_enabled, telegram_token, telegram_chat_id, is_telegram_enabled,
		        alert_sound_url, is_sound_enabled, is_muted, updated_at
		 FROM settings WHERE id = 1`,
	).Scan(&st.UserEmail, &st.IsEmailEnabled, &st.TelegramToken, &st.TelegramChatID,
		&st.IsTelegramEnabled, &st.AlertSoundURL, &st.IsSoundEnabled, &st.IsMuted, &updated)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.UpdatedAt = time.Unix(updated, 0).UTC()
	return &st, nil
}

func (s *SQLite) UpdateSettings(ctx context.Context, settings *model.Settings) error {
	settings.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (id, user_email, is_email_enabled, telegram_token, telegram_chat_id,
			is_telegram_enabled, alert_sound_url, is_sound_enabled, is_muted, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_email = excluded.user_email,
		   is_email_enabled = excluded.is_email_enabled,
		   telegram_token = excluded.telegram_token,
		   telegram_chat_id = excluded.telegram_chat_id,
		   is_telegram_enabled = excluded.is_telegram_enabled,
		   alert_sound_url = excluded.alert_sound_url,
		   is_sound_enabled = excluded.is_sound_enabled,
		   is_muted = excluded.is_muted,
		   updated_at = excluded.updated_at`,
		settings.UserEmail, settings.IsEmailEnabled, settings.TelegramToken, settings.TelegramChatID,
		settings.IsTelegramEnabled, settings.AlertSoundURL, settings.IsSoundEnabled, settings.IsMuted,
		settings.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) queryBills(ctx context.Context, query string, args ...any) ([]model.Bill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var bills []model.Bill
	for rows.Next() {
		b, err := scanSQLiteBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill row: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteBill reads one bill row. An unparseable due date or amount marks
// the bill invalid instead of failing the whole query.
func scanSQLiteBill(row rowScanner) (model.Bill, error) {
	var (
		b         model.Bill
		amount    string
		dueDate   string
		lastEmail sql.NullInt64
		last      sql.NullInt64
		created   int64
	)
	err := row.Scan(&b.ID, &b.Title, &amount, &dueDate, &b.Status, &b.Category, &b.IsRecurring,
		&b.RecurringInterval, &b.InvoiceURL, &b.ReminderSoundIntervalMinutes, &lastEmail, &last, &created)
	if err != nil {
		return b, err
	}

	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		b.MarkCorrupt(fmt.Sprintf("stored amount %q is not a number", amount))
	}
	b.DueDate = parseDueDate(dueDate)
	b.LastEmailRemindedAt = timeFromNull(lastEmail)
	b.LastRemindedAt = timeFromNull(last)
	b.CreatedAt = time.Unix(created, 0).UTC()
	return b, nil
}

func expectAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return billNotFound(id)
	}
	return nil
}

const dueDateLayout = "2006-01-02T15:04:05Z"

func formatDueDate(t time.Time) string {
	return t.UTC().Format(dueDateLayout)
}

func parseDueDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
