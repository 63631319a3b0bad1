// Package storage persists the balance, the expense records and the activity
// feed in SQLite.
//
// Non-finite amounts are stored as NULL and read back as NaN, so a null the
// store was handed comes back out as null.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"expensetracker/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite would otherwise answer SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// GetBalance returns the stored balance. A NULL balance reads as NaN.
func (r *SQLiteRepository) GetBalance(ctx context.Context) (core.Amount, error) {
	var v sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT current_balance FROM balance WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return fromNull(v), nil
}

// SetBalance replaces the balance and returns what was stored.
func (r *SQLiteRepository) SetBalance(ctx context.Context, v core.Amount) (core.Amount, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balance (id, current_balance) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET current_balance = excluded.current_balance`,
		toNull(v))
	if err != nil {
		return 0, fmt.Errorf("set balance: %w", err)
	}
	return r.GetBalance(ctx)
}

// ListExpenses returns every expense in insertion order.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount, description FROM expenses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return scanExpenses(rows)
}

// ListExpensesByCategory returns the expenses whose category equals category exactly.
func (r *SQLiteRepository) ListExpensesByCategory(ctx context.Context, category string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, category, amount, description FROM expenses WHERE category = ? ORDER BY id`,
		category)
	if err != nil {
		return nil, fmt.Errorf("list expenses for category %s: %w", category, err)
	}
	return scanExpenses(rows)
}

// GetExpense returns one expense or core.ErrExpenseNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id core.ExpenseID) (core.Expense, error) {
	return getExpense(ctx, r.db, id)
}

// CreateExpense inserts e with a store-assigned id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (category, amount, description) VALUES (?, ?, ?)`,
		e.Category, toNull(e.Amount), e.Description)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID = core.ExpenseID(strconv.FormatInt(id, 10))

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"category", e.Category,
		"amount", core.FormatAmount(e.Amount))
	return e, nil
}

// PatchExpense merges patch into the stored record and returns the result.
func (r *SQLiteRepository) PatchExpense(ctx context.Context, id core.ExpenseID, patch core.ExpensePatch) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin patch: %w", err)
	}
	defer tx.Rollback()

	current, err := getExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, err
	}
	next := patch.Apply(current)

	_, err = tx.ExecContext(ctx,
		`UPDATE expenses SET category = ?, amount = ?, description = ? WHERE id = ?`,
		next.Category, toNull(next.Amount), next.Description, id.String())
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit patch: %w", err)
	}
	return next, nil
}

// CountExpenses returns the number of stored expenses.
func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// RecordActivity appends ev to the activity feed. Recording the same event
// twice is a no-op, so redelivered messages are safe.
func (r *SQLiteRepository) RecordActivity(ctx context.Context, ev core.ActivityEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity (id, kind, expense_id, category, amount, balance, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), ev.ExpenseID.String(), ev.Category,
		toNull(ev.Amount), toNull(ev.Balance), ev.OccurredAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record activity %s: %w", ev.ID, err)
	}
	return nil
}

// ListActivity returns up to limit events, newest first.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]core.ActivityEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, expense_id, category, amount, balance, occurred_at
		 FROM activity ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityEvent
	for rows.Next() {
		var (
			ev                    core.ActivityEvent
			kind, expID, occurred string
			amount, balance       sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &kind, &expID, &ev.Category, &amount, &balance, &occurred); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		ev.Kind = core.ActivityKind(kind)
		ev.ExpenseID = core.ExpenseID(expID)
		ev.Amount, ev.Balance = fromNull(amount), fromNull(balance)
		if ev.OccurredAt, err = time.Parse(timeLayout, occurred); err != nil {
			return nil, fmt.Errorf("parse occurred_at for %s: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getExpense(ctx context.Context, q queryer, id core.ExpenseID) (core.Expense, error) {
	if _, ok := id.NumericID(); !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrExpenseNotFound)
	}
	var (
		e      core.Expense
		rowID  int64
		amount sql.NullFloat64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, category, amount, description FROM expenses WHERE id = ?`, id.String()).
		Scan(&rowID, &e.Category, &amount, &e.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrExpenseNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	e.ID = core.ExpenseID(strconv.FormatInt(rowID, 10))
	e.Amount = fromNull(amount)
	return e, nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()
	out := []core.Expense{}
	for rows.Next() {
		var (
			e      core.Expense
			id     int64
			amount sql.NullFloat64
		)
		if err := rows.Scan(&id, &e.Category, &amount, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.ID = core.ExpenseID(strconv.FormatInt(id, 10))
		e.Amount = fromNull(amount)
		out = append(out, e)
	}
	return out, rows.Err()
}

func toNull(a core.Amount) sql.NullFloat64 {
	if !a.IsFinite() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: float64(a), Valid: true}
}

func fromNull(v sql.NullFloat64) core.Amount {
	if !v.Valid {
		return core.NaN
	}
	return core.Amount(v.Float64)
}
