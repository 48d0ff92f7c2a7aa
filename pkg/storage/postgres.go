package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
)

// PgxPool is the subset of *pgxpool.Pool used by Postgres.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

var postgresMigrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS bills (
		id                              BIGSERIAL PRIMARY KEY,
		title                           TEXT NOT NULL,
		amount                          NUMERIC(14, 2) NOT NULL DEFAULT 0,
		due_date                        TIMESTAMPTZ NOT NULL,
		status                          TEXT NOT NULL DEFAULT 'unpaid' CHECK (status IN ('unpaid', 'paid')),
		category                        TEXT NOT NULL DEFAULT '',
		is_recurring                    BOOLEAN NOT NULL DEFAULT FALSE,
		recurring_interval              TEXT NOT NULL DEFAULT '',
		invoice_url                     TEXT NOT NULL DEFAULT '',
		reminder_sound_interval_minutes INTEGER NOT NULL DEFAULT 120 CHECK (reminder_sound_interval_minutes > 0),
		last_email_reminded_at          TIMESTAMPTZ,
		last_reminded_at                TIMESTAMPTZ,
		created_at                      TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_bills_status ON bills(status);
	CREATE INDEX IF NOT EXISTS idx_bills_due_date ON bills(due_date);

	CREATE TABLE IF NOT EXISTS settings (
		id                  SMALLINT PRIMARY KEY CHECK (id = 1),
		user_email          TEXT NOT NULL DEFAULT '',
		is_email_enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		telegram_token      TEXT NOT NULL DEFAULT '',
		telegram_chat_id    TEXT NOT NULL DEFAULT '',
		is_telegram_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		alert_sound_url     TEXT NOT NULL DEFAULT '',
		is_sound_enabled    BOOLEAN NOT NULL DEFAULT FALSE,
		is_muted            BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
}

const pgBillColumns = `id, title, amount::text, due_date, status, category, is_recurring, recurring_interval,
	invoice_url, reminder_sound_interval_minutes, last_email_reminded_at, last_reminded_at, created_at`

// Postgres implements the Storage interface on a pgx connection pool.
type Postgres struct {
	db PgxPool
}

// NewPostgres connects to dsn and applies pending migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := NewPostgresFromPool(pool)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return p, nil
}

// NewPostgresFromPool wraps an existing pool without running migrations.
func NewPostgresFromPool(pool PgxPool) *Postgres {
	return &Postgres{db: pool}
}

// Migrate applies pending schema migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	if err := p.db.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(postgresMigrations); i++ {
		tx, err := p.db.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(ctx, postgresMigrations[i]); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", i+1); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Postgres) CreateBill(ctx context.Context, bill *model.Bill) error {
	bill.ApplyDefaults()
	if err := bill.Validate(); err != nil {
		return err
	}
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	err := p.db.QueryRow(ctx,
		`INSERT INTO bills (title, amount, due_date, status, category, is_recurring, recurring_interval,
			invoice_url, reminder_sound_interval_minutes, last_email_reminded_at, last_reminded_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		bill.Title, bill.Amount.String(), bill.DueDate, string(bill.Status), bill.Category, bill.IsRecurring,
		string(bill.RecurringInterval), bill.InvoiceURL, bill.ReminderSoundIntervalMinutes,
		bill.LastEmailRemindedAt, bill.LastRemindedAt, bill.CreatedAt,
	).Scan(&bill.ID)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (p *Postgres) GetBill(ctx context.Context, id int64) (*model.Bill, error) {
	rows, err := p.db.Query(ctx, "SELECT "+pgBillColumns+" FROM bills WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	bills, err := collectPgBills(rows)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	if len(bills) == 0 {
		return nil, billNotFound(id)
	}
	return &bills[0], nil
}

func (p *Postgres) UpdateBill(ctx context.Context, bill *model.Bill) error {
	bill.ApplyDefaults()
	if err := bill.Validate(); err != nil {
		return err
	}

	tag, err := p.db.Exec(ctx,
		`UPDATE bills SET
		   title = $1, amount = $2, due_date = $3, status = $4, category = $5, is_recurring = $6,
		   recurring_interval = $7, invoice_url = $8, reminder_sound_interval_minutes = $9,
		   last_email_reminded_at = CASE WHEN $4 = 'paid' THEN NULL ELSE last_email_reminded_at END,
		   last_reminded_at = CASE WHEN $4 = 'paid' THEN NULL ELSE last_reminded_at END
		 WHERE id = $10`,
		bill.Title, bill.Amount.String(), bill.DueDate, string(bill.Status), bill.Category, bill.IsRecurring,
		string(bill.RecurringInterval), bill.InvoiceURL, bill.ReminderSoundIntervalMinutes, bill.ID,
	)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billNotFound(bill.ID)
	}
	return nil
}

func (p *Postgres) DeleteBill(ctx context.Context, id int64) error {
	tag, err := p.db.Exec(ctx, "DELETE FROM bills WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billNotFound(id)
	}
	return nil
}

func (p *Postgres) ListBills(ctx context.Context) ([]model.Bill, error) {
	return p.queryBills(ctx, "SELECT "+pgBillColumns+" FROM bills ORDER BY due_date, id")
}

func (p *Postgres) ListBillsByMonth(ctx context.Context, start, end time.Time) ([]model.Bill, error) {
	return p.queryBills(ctx,
		"SELECT "+pgBillColumns+" FROM bills WHERE due_date >= $1 AND due_date < $2 ORDER BY due_date, id",
		start, end)
}

func (p *Postgres) ListUnpaidBills(ctx context.Context) ([]model.Bill, error) {
	return p.queryBills(ctx,
		"SELECT "+pgBillColumns+" FROM bills WHERE status = 'unpaid' ORDER BY due_date, id")
}

func (p *Postgres) SetBillStatus(ctx context.Context, id int64, status model.BillStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", model.ErrInvalidBill, status)
	}
	tag, err := p.db.Exec(ctx,
		`UPDATE bills SET
		   status = $1,
		   last_email_reminded_at = CASE WHEN $1 = 'paid' THEN NULL ELSE last_email_reminded_at END,
		   last_reminded_at = CASE WHEN $1 = 'paid' THEN NULL ELSE last_reminded_at END
		 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("set bill status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billNotFound(id)
	}
	return nil
}

// UpdateReminderTimestamps relies on GREATEST ignoring NULL arguments, so a
// nil field keeps the stored value and a stale one never wins.
func (p *Postgres) UpdateReminderTimestamps(ctx context.Context, id int64, update model.ReminderUpdate) error {
	if update.Empty() {
		return nil
	}
	tag, err := p.db.Exec(ctx,
		`UPDATE bills SET
		   last_reminded_at = GREATEST(last_reminded_at, $1::timestamptz),
		   last_email_reminded_at = GREATEST(last_email_reminded_at, $2::timestamptz)
		 WHERE id = $3 AND status = 'unpaid'`,
		update.LastRemindedAt, update.LastEmailRemindedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update reminder timestamps: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := p.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM bills WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check bill: %w", err)
	}
	if !exists {
		return billNotFound(id)
	}
	return nil
}

func (p *Postgres) GetSettings(ctx context.Context) (*model.Settings, error) {
	defaults := model.DefaultSettings()
	_, err := p.db.Exec(ctx,
		`INSERT INTO settings (id, is_email_enabled) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		defaults.IsEmailEnabled,
	)
	if err != nil {
		return nil, fmt.Errorf("create default settings: %w", err)
	}

	var st model.Settings
	err = p.db.QueryRow(ctx,
		`SELECT user_email, is_email_enabled, telegram_token, telegram_chat_id, is_telegram_enabled,
		        alert_sound_url, is_sound_enabled, is_muted, updated_at
		 FROM settings WHERE id = 1`,
	).Scan(&st.UserEmail, &st.IsEmailEnabled, &st.TelegramToken, &st.TelegramChatID,
		&st.IsTelegramEnabled, &st.AlertSoundURL, &st.IsSoundEnabled, &st.IsMuted, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &st, nil
}

func (p *Postgres) UpdateSettings(ctx context.Context, settings *model.Settings) error {
	settings.UpdatedAt = time.Now().UTC()
	_, err := p.db.Exec(ctx,
		`INSERT INTO settings (id, user_email, is_email_enabled, telegram_token, telegram_chat_id,
			is_telegram_enabled, alert_sound_url, is_sound_enabled, is_muted, updated_at)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   user_email = EXCLUDED.user_email,
		   is_email_enabled = EXCLUDED.is_email_enabled,
		   telegram_token = EXCLUDED.telegram_token,
		   telegram_chat_id = EXCLUDED.telegram_chat_id,
		   is_telegram_enabled = EXCLUDED.is_telegram_enabled,
		   alert_sound_url = EXCLUDED.alert_sound_url,
		   is_sound_enabled = EXCLUDED.is_sound_enabled,
		   is_muted = EXCLUDED.is_muted,
		   updated_at = EXCLUDED.updated_at`,
		settings.UserEmail, settings.IsEmailEnabled, settings.TelegramToken, settings.TelegramChatID,
		settings.IsTelegramEnabled, settings.AlertSoundURL, settings.IsSoundEnabled, settings.IsMuted,
		settings.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func (p *Postgres) queryBills(ctx context.Context, query string, args ...any) ([]model.Bill, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	bills, err := collectPgBills(rows)
	if err != nil {
		return nil, fmt.Errorf("scan bill row: %w", err)
	}
	return bills, nil
}

func collectPgBills(rows pgx.Rows) ([]model.Bill, error) {
	defer rows.Close()

	var bills []model.Bill
	for rows.Next() {
		var (
			b        model.Bill
			amount   string
			status   string
			interval string
		)
		err := rows.Scan(&b.ID, &b.Title, &amount, &b.DueDate, &status, &b.Category, &b.IsRecurring,
			&interval, &b.InvoiceURL, &b.ReminderSoundIntervalMinutes,
			&b.LastEmailRemindedAt, &b.LastRemindedAt, &b.CreatedAt)
		if err != nil {
			return nil, err
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			b.MarkCorrupt(fmt.Sprintf("stored amount %q is not a number", amount))
		}
		b.Status = model.BillStatus(status)
		b.RecurringInterval = model.RecurringInterval(interval)
		b.DueDate = b.DueDate.UTC()
		bills = append(bills, b)
	}
	return bills, rows.Err()
}
