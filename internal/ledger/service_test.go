package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avtoledger/internal/core"
	"avtoledger/internal/storage"
)

type recordingBus struct {
	mu      sync.Mutex
	reasons []string
}

func (b *recordingBus) PublishReconcile(_ context.Context, _ int64, reason string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reasons = append(b.reasons, reason)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingBus) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	bus := &recordingBus{}
	return NewService(repo, bus, 5*time.Second), bus
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestAddInvoiceFromText(t *testing.T) {
	svc, bus := newTestService(t)
	ctx := context.Background()

	text := "Рахунок\n2018TESLA MODEL S 5YJSA1E22JF272459\nдо сплати 740 євро"
	inv, err := svc.AddInvoiceFromText(ctx, 1, text)
	require.NoError(t, err)

	assert.True(t, inv.Amount.Equal(dec(t, "740")))
	assert.Equal(t, "2018TESLA MODEL S 5YJSA1E22JF272459", inv.Descriptor)
	assert.Equal(t, text, inv.RawText)

	snap, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Current.Equal(dec(t, "-740")))

	assert.Equal(t, []string{"invoice_added"}, bus.reasons)
}

func TestAddInvoiceFromTextNoAmount(t *testing.T) {
	svc, bus := newTestService(t)

	_, err := svc.AddInvoiceFromText(context.Background(), 1, "just some words")
	require.ErrorIs(t, err, ErrNoAmount)
	assert.Empty(t, bus.reasons, "failed extraction must not publish")
}

func TestBalanceInvariant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	expected := decimal.Zero
	for _, amount := range []string{"740", "120.50", "33.33"} {
		_, err := svc.AddInvoice(ctx, 1, "car", dec(t, amount), "")
		require.NoError(t, err)
		expected = expected.Sub(dec(t, amount))
	}
	for _, amount := range []string{"500", "99.99"} {
		_, err := svc.AddPayment(ctx, 1, dec(t, amount), date, nil)
		require.NoError(t, err)
		expected = expected.Add(dec(t, amount))
	}

	snap, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Current.Equal(expected), "got %s want %s", snap.Current, expected)
}

func TestDeleteRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)

	before, err := svc.Balance(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteInvoice(ctx, 1, inv.ID))
	_, err = svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)

	after, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, before.Current.Equal(after.Current))
}

func TestDeleteMissingEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.DeleteInvoice(ctx, 1, 99), ErrNotFound)
	require.ErrorIs(t, svc.DeletePayment(ctx, 1, 99), ErrNotFound)
}

func TestPaymentForInvoiceCopiesSnapshot(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	inv, err := svc.AddInvoice(ctx, 1, "2018 TESLA MODEL S 5YJSA1E22JF272459", dec(t, "740"), "")
	require.NoError(t, err)

	p, err := svc.AddPayment(ctx, 1, dec(t, "740"), date, &inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Descriptor, p.DescriptorSnapshot)

	// the snapshot keeps the label after the invoice is gone
	require.NoError(t, svc.DeleteInvoice(ctx, 1, inv.ID))
	entries, err := svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inv.Descriptor, entries[0].Descriptor)
}

func TestPaymentForForeignInvoice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)

	_, err = svc.AddPayment(ctx, 2, dec(t, "740"), time.Now(), &inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPaginatedHistory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := svc.AddInvoice(ctx, 1, "car", dec(t, "10"), "")
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := svc.AddPayment(ctx, 1, dec(t, "10"), date, nil)
		require.NoError(t, err)
	}

	entries, total, pages, err := svc.PaginatedHistory(ctx, 1, 1, 5)
	require.NoError(t, err)
	assert.Len(t, entries, 5)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, pages)

	// page beyond range is empty but counts are still correct
	entries, total, pages, err = svc.PaginatedHistory(ctx, 1, 3, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 7, total)
	assert.Equal(t, 2, pages)
}

func TestRecentInvoicesLabels(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddInvoice(ctx, 1, "2018 TESLA MODEL S", dec(t, "740"), "")
	require.NoError(t, err)

	options, err := svc.RecentInvoices(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, options, 1)
	assert.Equal(t, "2018 TESLA MODEL S - 740.00€", options[0].Label)
}

func TestDeleteLastEntry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	_, err := svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, 1, dec(t, "500"), date, nil)
	require.NoError(t, err)

	last, err := svc.DeleteLastEntry(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, core.KindPayment, last.Kind)

	snap, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Current.Equal(dec(t, "-740")))

	_, err = svc.DeleteLastEntry(ctx, 1)
	require.NoError(t, err)
	_, err = svc.DeleteLastEntry(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileDetectsAndRepairsDivergence(t *testing.T) {
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	svc := NewService(repo, nil, 5*time.Second)
	ctx := context.Background()

	_, err = svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, report.Diverged)

	// corrupt the cached aggregate behind the service's back
	require.NoError(t, repo.SetBalance(ctx, 1, dec(t, "0")))

	report, err = svc.Reconcile(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, report.Diverged)
	assert.False(t, report.Repaired)

	report, err = svc.Reconcile(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, report.Diverged)
	assert.True(t, report.Repaired)

	snap, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, snap.Current.Equal(dec(t, "-740")))
}

func TestExportReportMatchesCachedBalance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	date := time.Date(2025, 7, 7, 0, 0, 0, 0, time.UTC)

	_, err := svc.AddInvoice(ctx, 1, "car", dec(t, "740"), "")
	require.NoError(t, err)
	_, err = svc.AddPayment(ctx, 1, dec(t, "500"), date, nil)
	require.NoError(t, err)

	report, filename, err := svc.ExportReport(ctx, 1)
	require.NoError(t, err)
	assert.Contains(t, report, "📊 Поточний баланс: -240.00 євро")
	assert.Contains(t, report, "📊 Баланс після операції: -240.00 євро")
	assert.Contains(t, filename, "history_1_")
}

func TestCrossUserIsolation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddInvoice(ctx, 1, "mine", dec(t, "100"), "")
	require.NoError(t, err)
	_, err = svc.AddInvoice(ctx, 2, "theirs", dec(t, "200"), "")
	require.NoError(t, err)

	snap1, err := svc.Balance(ctx, 1)
	require.NoError(t, err)
	snap2, err := svc.Balance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, snap1.Current.Equal(dec(t, "-100")))
	assert.True(t, snap2.Current.Equal(dec(t, "-200")))
}
