// Package storage persists the ledger in SQLite. Every mutation couples the
// row change and the balance adjustment in a single transaction so the
// cached balance cannot drift from the source rows on a partial failure.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"avtoledger/internal/core"
)

// ErrNotFound is returned when a row does not exist for the requesting user.
// Callers treat it as a referential miss, distinct from a storage fault.
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY on concurrent transactions.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateInvoice inserts the invoice and debits the balance in one
// transaction. The stored invoice (with ID and CreatedAt) is returned.
func (r *Repository) CreateInvoice(ctx context.Context, userID int64, descriptor string, amount decimal.Decimal, rawText string) (core.Invoice, error) {
	inv := core.Invoice{
		UserID:     userID,
		Descriptor: descriptor,
		Amount:     amount,
		RawText:    rawText,
		CreatedAt:  time.Now().UTC(),
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO invoices (user_id, descriptor, amount, raw_text, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, descriptor, amount.String(), rawText, formatTime(inv.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		inv.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("invoice id: %w", err)
		}
		return r.adjustBalanceTx(ctx, tx, userID, amount.Neg(), inv.CreatedAt)
	})
	if err != nil {
		return core.Invoice{}, err
	}

	slog.InfoContext(ctx, "invoice saved",
		"id", inv.ID,
		"user_id", userID,
		"amount", amount.String(),
		"descriptor", descriptor)
	return inv, nil
}

// CreatePayment inserts the payment and credits the balance in one
// transaction. When invoiceID is set, the referenced invoice must belong to
// the same user; its descriptor is copied into the payment so the label
// survives a later invoice deletion.
func (r *Repository) CreatePayment(ctx context.Context, userID int64, amount decimal.Decimal, datePaid time.Time, invoiceID *int64) (core.Payment, error) {
	p := core.Payment{
		UserID:    userID,
		Amount:    amount,
		DatePaid:  datePaid,
		CreatedAt: time.Now().UTC(),
		InvoiceID: invoiceID,
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if invoiceID != nil {
			err := tx.QueryRowContext(ctx,
				`SELECT descriptor FROM invoices WHERE id = ? AND user_id = ?`,
				*invoiceID, userID).Scan(&p.DescriptorSnapshot)
			if err == sql.ErrNoRows {
				return fmt.Errorf("invoice %d: %w", *invoiceID, ErrNotFound)
			}
			if err != nil {
				return fmt.Errorf("lookup invoice descriptor: %w", err)
			}
		}

		var invoiceRef interface{}
		if invoiceID != nil {
			invoiceRef = *invoiceID
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO payments (user_id, amount, date_paid, created_at, invoice_id, descriptor_snapshot)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			userID, amount.String(), core.FormatDate(datePaid), formatTime(p.CreatedAt),
			invoiceRef, p.DescriptorSnapshot)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("payment id: %w", err)
		}
		return r.adjustBalanceTx(ctx, tx, userID, amount, p.CreatedAt)
	})
	if err != nil {
		return core.Payment{}, err
	}

	slog.InfoContext(ctx, "payment saved",
		"id", p.ID,
		"user_id", userID,
		"amount", amount.String(),
		"for_invoice", invoiceID != nil)
	return p, nil
}

// DeleteInvoice hard-deletes the invoice and restores its amount to the
// balance. ErrNotFound when the row does not exist for this user.
func (r *Repository) DeleteInvoice(ctx context.Context, userID, id int64) error {
	return r.deleteEntry(ctx, "invoices", userID, id, false)
}

// DeletePayment hard-deletes the payment and subtracts its amount from the
// balance. ErrNotFound when the row does not exist for this user.
func (r *Repository) DeletePayment(ctx context.Context, userID, id int64) error {
	return r.deleteEntry(ctx, "payments", userID, id, true)
}

func (r *Repository) deleteEntry(ctx context.Context, table string, userID, id int64, credit bool) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var amountStr string
		err := tx.QueryRowContext(ctx,
			`SELECT amount FROM `+table+` WHERE id = ? AND user_id = ?`,
			id, userID).Scan(&amountStr)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lookup amount: %w", err)
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("parse stored amount %q: %w", amountStr, err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE id = ? AND user_id = ?`, id, userID); err != nil {
			return fmt.Errorf("delete row: %w", err)
		}

		// Deleting an invoice credits the amount back; deleting a payment
		// debits it.
		delta := amount
		if credit {
			delta = amount.Neg()
		}
		return r.adjustBalanceTx(ctx, tx, userID, delta, time.Now().UTC())
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "entry deleted", "table", table, "id", id, "user_id", userID)
	return nil
}

// GetBalance returns the cached aggregate, zero-valued if the user has no
// balance row yet.
func (r *Repository) GetBalance(ctx context.Context, userID int64) (core.BalanceSnapshot, error) {
	snap := core.BalanceSnapshot{UserID: userID, Current: decimal.Zero}

	var balanceStr, updatedStr string
	err := r.db.QueryRowContext(ctx,
		`SELECT current_balance, last_updated FROM balance WHERE user_id = ?`,
		userID).Scan(&balanceStr, &updatedStr)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return snap, fmt.Errorf("select balance: %w", err)
	}

	snap.Current, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return snap, fmt.Errorf("parse stored balance %q: %w", balanceStr, err)
	}
	snap.LastUpdated, _ = parseTime(updatedStr)
	return snap, nil
}

// SetBalance overwrites the cached aggregate. Used by reconciliation repair,
// never by the regular mutation path.
func (r *Repository) SetBalance(ctx context.Context, userID int64, value decimal.Decimal) error {
	now := formatTime(time.Now().UTC())
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO balance (user_id, current_balance, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET current_balance = excluded.current_balance,
		                                    last_updated = excluded.last_updated`,
		userID, value.String(), now)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

// ListInvoices returns all invoices for the user, most recent first.
func (r *Repository) ListInvoices(ctx context.Context, userID int64) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, descriptor, amount, raw_text, created_at
		 FROM invoices WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// RecentInvoices returns the newest invoices capped at limit, for the
// invoice-selection step of the payment flow.
func (r *Repository) RecentInvoices(ctx context.Context, userID int64, limit int) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, descriptor, amount, raw_text, created_at
		 FROM invoices WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// ListPayments returns all payments for the user, most recent first.
func (r *Repository) ListPayments(ctx context.Context, userID int64) ([]core.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, date_paid, created_at, invoice_id, descriptor_snapshot
		 FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	defer rows.Close()

	var payments []core.Payment
	for rows.Next() {
		var (
			p          core.Payment
			amountStr  string
			datePaid   string
			createdStr string
			invoiceID  sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &amountStr, &datePaid, &createdStr,
			&invoiceID, &p.DescriptorSnapshot); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		if p.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
		}
		if p.DatePaid, err = core.ParseUserDate(datePaid); err != nil {
			return nil, fmt.Errorf("parse date_paid %q: %w", datePaid, err)
		}
		if p.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdStr, err)
		}
		if invoiceID.Valid {
			id := invoiceID.Int64
			p.InvoiceID = &id
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// CountEntries returns the number of invoices and payments for the user.
func (r *Repository) CountEntries(ctx context.Context, userID int64) (invoices, payments int, err error) {
	err = r.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM invoices WHERE user_id = ?),
		   (SELECT COUNT(*) FROM payments WHERE user_id = ?)`,
		userID, userID).Scan(&invoices, &payments)
	if err != nil {
		return 0, 0, fmt.Errorf("count entries: %w", err)
	}
	return invoices, payments, nil
}

// RecomputeBalance derives the balance from source rows, independently of
// the cached aggregate: sum(payments) - sum(invoices).
func (r *Repository) RecomputeBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	total := decimal.Zero

	sum := func(query string, negate bool) error {
		rows, err := r.db.QueryContext(ctx, query, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var amountStr string
			if err := rows.Scan(&amountStr); err != nil {
				return err
			}
			amount, err := decimal.NewFromString(amountStr)
			if err != nil {
				return fmt.Errorf("parse stored amount %q: %w", amountStr, err)
			}
			if negate {
				total = total.Sub(amount)
			} else {
				total = total.Add(amount)
			}
		}
		return rows.Err()
	}

	if err := sum(`SELECT amount FROM payments WHERE user_id = ?`, false); err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	if err := sum(`SELECT amount FROM invoices WHERE user_id = ?`, true); err != nil {
		return decimal.Zero, fmt.Errorf("sum invoices: %w", err)
	}
	return total, nil
}

// UserIDs lists every user with a balance row, for the periodic
// reconciliation sweep.
func (r *Repository) UserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM balance ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) adjustBalanceTx(ctx context.Context, tx *sql.Tx, userID int64, delta decimal.Decimal, now time.Time) error {
	var balanceStr string
	err := tx.QueryRowContext(ctx,
		`SELECT current_balance FROM balance WHERE user_id = ?`, userID).Scan(&balanceStr)
	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO balance (user_id, current_balance, last_updated) VALUES (?, ?, ?)`,
			userID, delta.String(), formatTime(now))
		if err != nil {
			return fmt.Errorf("insert balance: %w", err)
		}
	case err != nil:
		return fmt.Errorf("select balance: %w", err)
	default:
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return fmt.Errorf("parse stored balance %q: %w", balanceStr, err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE balance SET current_balance = ?, last_updated = ? WHERE user_id = ?`,
			balance.Add(delta).String(), formatTime(now), userID)
		if err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanInvoice(rows *sql.Rows) (core.Invoice, error) {
	var (
		inv        core.Invoice
		amountStr  string
		createdStr string
	)
	if err := rows.Scan(&inv.ID, &inv.UserID, &inv.Descriptor, &amountStr,
		&inv.RawText, &createdStr); err != nil {
		return core.Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	var err error
	if inv.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return core.Invoice{}, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
	}
	if inv.CreatedAt, err = parseTime(createdStr); err != nil {
		return core.Invoice{}, fmt.Errorf("parse created_at %q: %w", createdStr, err)
	}
	return inv, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(core.StorageTimeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(core.StorageTimeFormat, s)
}
