// Package ledger implements the ledger operations on top of storage: entry
// creation and deletion with balance adjustment, history access, export and
// reconciliation. The service serializes mutations per user so same-user
// operations never race on the balance; different users proceed in parallel.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"avtoledger/internal/cache"
	"avtoledger/internal/core"
	"avtoledger/internal/extract"
	"avtoledger/internal/history"
	"avtoledger/internal/storage"
)

// ErrNoAmount reports that no amount pattern matched the pasted text. The
// dialog layer recovers by re-prompting, it is never fatal.
var ErrNoAmount = errors.New("no amount found in text")

// ErrNotFound mirrors the storage referential miss for callers that don't
// import storage directly.
var ErrNotFound = storage.ErrNotFound

// Publisher emits reconcile triggers after ledger mutations. Implementations
// must be safe for concurrent use; a nil Publisher disables publishing.
type Publisher interface {
	PublishReconcile(ctx context.Context, userID int64, reason string) error
}

// InvoiceOption is an invoice with its precomputed selection label, used by
// the invoice-picking step of the payment flow.
type InvoiceOption struct {
	Invoice core.Invoice
	Label   string
}

// ReconcileReport compares the cached balance against a full recompute from
// source rows.
type ReconcileReport struct {
	UserID     int64
	Cached     decimal.Decimal
	Recomputed decimal.Decimal
	Diverged   bool
	Repaired   bool
}

type Service struct {
	store     *storage.Repository
	bus       Publisher
	timeout   time.Duration
	histCache *cache.Cache[[]core.HistoryEntry]

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewService(store *storage.Repository, bus Publisher, storageTimeout time.Duration) *Service {
	return &Service{
		store:     store,
		bus:       bus,
		timeout:   storageTimeout,
		histCache: cache.New[[]core.HistoryEntry](256, time.Minute),
		userLocks: make(map[int64]*sync.Mutex),
	}
}

// AddInvoiceFromText runs both extractors over a pasted invoice notice and
// records the resulting invoice. ErrNoAmount when no amount pattern matched.
func (s *Service) AddInvoiceFromText(ctx context.Context, userID int64, text string) (core.Invoice, error) {
	amount, ok := extract.Amount(text)
	if !ok {
		return core.Invoice{}, ErrNoAmount
	}
	descriptor := extract.Descriptor(text)
	return s.AddInvoice(ctx, userID, descriptor, amount, text)
}

// AddInvoice records a debit entry and adjusts the balance by -amount.
func (s *Service) AddInvoice(ctx context.Context, userID int64, descriptor string, amount decimal.Decimal, rawText string) (core.Invoice, error) {
	if err := (core.Invoice{Descriptor: descriptor, Amount: amount}).Validate(); err != nil {
		return core.Invoice{}, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	inv, err := s.store.CreateInvoice(ctx, userID, descriptor, amount, rawText)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("add invoice: %w", err)
	}

	s.histCache.Invalidate(userID)
	s.publishReconcile(ctx, userID, "invoice_added")
	return inv, nil
}

// AddPayment records a credit entry and adjusts the balance by +amount. When
// invoiceID is set, the payment is tied to that invoice and carries its
// descriptor snapshot; ErrNotFound when the invoice is not the user's.
func (s *Service) AddPayment(ctx context.Context, userID int64, amount decimal.Decimal, datePaid time.Time, invoiceID *int64) (core.Payment, error) {
	if err := (core.Payment{Amount: amount, DatePaid: datePaid}).Validate(); err != nil {
		return core.Payment{}, err
	}

	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	p, err := s.store.CreatePayment(ctx, userID, amount, datePaid, invoiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Payment{}, err
		}
		return core.Payment{}, fmt.Errorf("add payment: %w", err)
	}

	s.histCache.Invalidate(userID)
	s.publishReconcile(ctx, userID, "payment_added")
	return p, nil
}

// Balance returns the cached aggregate, zero for users without entries.
func (s *Service) Balance(ctx context.Context, userID int64) (core.BalanceSnapshot, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()
	return s.store.GetBalance(ctx, userID)
}

// DeleteInvoice hard-deletes an invoice and restores its amount to the
// balance.
func (s *Service) DeleteInvoice(ctx context.Context, userID, id int64) error {
	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	if err := s.store.DeleteInvoice(ctx, userID, id); err != nil {
		return err
	}
	s.histCache.Invalidate(userID)
	s.publishReconcile(ctx, userID, "invoice_deleted")
	return nil
}

// DeletePayment hard-deletes a payment and subtracts its amount from the
// balance.
func (s *Service) DeletePayment(ctx context.Context, userID, id int64) error {
	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	if err := s.store.DeletePayment(ctx, userID, id); err != nil {
		return err
	}
	s.histCache.Invalidate(userID)
	s.publishReconcile(ctx, userID, "payment_deleted")
	return nil
}

// RecentInvoices returns the newest invoices with precomputed selection
// labels.
func (s *Service) RecentInvoices(ctx context.Context, userID int64, limit int) ([]InvoiceOption, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	invoices, err := s.store.RecentInvoices(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent invoices: %w", err)
	}

	options := make([]InvoiceOption, len(invoices))
	for i, inv := range invoices {
		options[i] = InvoiceOption{
			Invoice: inv,
			Label:   core.ShortLabel(inv.Descriptor, inv.Amount),
		}
	}
	return options, nil
}

// History returns the merged projection, most recent first. The projection
// is cached per user and invalidated on every mutation.
func (s *Service) History(ctx context.Context, userID int64) ([]core.HistoryEntry, error) {
	if entries, ok := s.histCache.Get(userID); ok {
		// copy so callers can't mutate the cached slice
		out := make([]core.HistoryEntry, len(entries))
		copy(out, entries)
		return out, nil
	}

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	invoices, err := s.store.ListInvoices(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	payments, err := s.store.ListPayments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	entries := history.Project(invoices, payments)
	s.histCache.Set(userID, entries)
	return entries, nil
}

// PaginatedHistory slices the projection into 1-indexed pages. An
// out-of-range page yields an empty slice with counts intact.
func (s *Service) PaginatedHistory(ctx context.Context, userID int64, page, perPage int) ([]core.HistoryEntry, int, int, error) {
	entries, err := s.History(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	pageEntries, total, totalPages := history.Paginate(entries, page, perPage)
	return pageEntries, total, totalPages, nil
}

// LastEntry returns the most recent entry of either type, false when the
// ledger is empty.
func (s *Service) LastEntry(ctx context.Context, userID int64) (core.HistoryEntry, bool, error) {
	entries, err := s.History(ctx, userID)
	if err != nil {
		return core.HistoryEntry{}, false, err
	}
	if len(entries) == 0 {
		return core.HistoryEntry{}, false, nil
	}
	return entries[0], true, nil
}

// DeleteLastEntry undoes the newest operation. ErrNotFound when the ledger
// is empty.
func (s *Service) DeleteLastEntry(ctx context.Context, userID int64) (core.HistoryEntry, error) {
	last, ok, err := s.LastEntry(ctx, userID)
	if err != nil {
		return core.HistoryEntry{}, err
	}
	if !ok {
		return core.HistoryEntry{}, fmt.Errorf("last entry: %w", ErrNotFound)
	}

	if last.Kind == core.KindInvoice {
		err = s.DeleteInvoice(ctx, userID, last.ID)
	} else {
		err = s.DeletePayment(ctx, userID, last.ID)
	}
	if err != nil {
		return core.HistoryEntry{}, err
	}
	return last, nil
}

// ExportReport builds the plain-text history report and its attachment name.
func (s *Service) ExportReport(ctx context.Context, userID int64) (report, filename string, err error) {
	entries, err := s.History(ctx, userID)
	if err != nil {
		return "", "", err
	}
	snap, err := s.Balance(ctx, userID)
	if err != nil {
		return "", "", err
	}

	now := time.Now()
	return history.Export(entries, snap.Current, now), history.ExportFilename(userID, now), nil
}

// Reconcile recomputes the balance from source rows and compares it to the
// cached aggregate. Divergence is an operational signal: it is logged, and
// repaired only when repair is set. The user-facing paths never call this.
func (s *Service) Reconcile(ctx context.Context, userID int64, repair bool) (ReconcileReport, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	ctx, cancel := s.boundCtx(ctx)
	defer cancel()

	snap, err := s.store.GetBalance(ctx, userID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("cached balance: %w", err)
	}
	recomputed, err := s.store.RecomputeBalance(ctx, userID)
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("recompute balance: %w", err)
	}

	report := ReconcileReport{
		UserID:     userID,
		Cached:     snap.Current,
		Recomputed: recomputed,
		Diverged:   !snap.Current.Equal(recomputed),
	}

	if report.Diverged {
		slog.WarnContext(ctx, "balance divergence detected",
			"user_id", userID,
			"cached", snap.Current.String(),
			"recomputed", recomputed.String())
		if repair {
			if err := s.store.SetBalance(ctx, userID, recomputed); err != nil {
				return report, fmt.Errorf("repair balance: %w", err)
			}
			report.Repaired = true
			slog.InfoContext(ctx, "balance repaired",
				"user_id", userID, "balance", recomputed.String())
		}
	}
	return report, nil
}

// UserIDs lists every user with a balance row, for the periodic sweep.
func (s *Service) UserIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := s.boundCtx(ctx)
	defer cancel()
	return s.store.UserIDs(ctx)
}

func (s *Service) publishReconcile(ctx context.Context, userID int64, reason string) {
	if s.bus == nil {
		return
	}
	// Best-effort: the mutation already committed, a lost trigger is caught
	// by the worker's periodic sweep.
	if err := s.bus.PublishReconcile(ctx, userID, reason); err != nil {
		slog.ErrorContext(ctx, "failed to publish reconcile trigger",
			"user_id", userID, "reason", reason, "error", err)
	}
}

func (s *Service) lockUser(userID int64) func() {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (s *Service) boundCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
