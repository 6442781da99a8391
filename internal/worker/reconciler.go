// Package worker runs balance reconciliation outside the request path. It
// consumes per-mutation triggers from AMQP and sweeps every known user on a
// timer, so a lost trigger still gets caught.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"avtoledger/internal/amqp"
	"avtoledger/internal/ledger"
)

type Reconciler struct {
	svc    *ledger.Service
	repair bool
}

func NewReconciler(svc *ledger.Service, repair bool) *Reconciler {
	return &Reconciler{svc: svc, repair: repair}
}

// HandleReconcileMessage processes a single trigger from the queue.
func (r *Reconciler) HandleReconcileMessage(ctx context.Context, msg *amqp.ReconcileMessage) error {
	slog.InfoContext(ctx, "processing reconcile trigger",
		"user_id", msg.UserID,
		"reason", msg.Reason,
		"enqueued_at", msg.Timestamp.Format(time.RFC3339))

	report, err := r.svc.Reconcile(ctx, msg.UserID, r.repair)
	if err != nil {
		return fmt.Errorf("reconcile user %d: %w", msg.UserID, err)
	}

	if !report.Diverged {
		slog.DebugContext(ctx, "balance consistent",
			"user_id", msg.UserID,
			"balance", report.Cached.String())
	}
	return nil
}

// SweepAll reconciles every user with a balance row. This is the backup
// mechanism in case AMQP triggers are lost.
func (r *Reconciler) SweepAll(ctx context.Context) error {
	userIDs, err := r.svc.UserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	if len(userIDs) == 0 {
		return nil
	}

	diverged := 0
	for _, userID := range userIDs {
		report, err := r.svc.Reconcile(ctx, userID, r.repair)
		if err != nil {
			slog.ErrorContext(ctx, "failed to reconcile user", "user_id", userID, "error", err)
			continue
		}
		if report.Diverged {
			diverged++
		}
	}

	slog.InfoContext(ctx, "sweep completed",
		"users", len(userIDs),
		"diverged", diverged,
		"repair", r.repair)
	return nil
}

// Run consumes triggers until ctx is cancelled, sweeping on interval in the
// background. A sweep runs once at startup to recover from worker downtime.
func (r *Reconciler) Run(ctx context.Context, bus *amqp.Client, sweepInterval time.Duration) error {
	if err := r.SweepAll(ctx); err != nil {
		slog.ErrorContext(ctx, "startup sweep failed", "error", err)
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.SweepAll(ctx); err != nil {
					slog.ErrorContext(ctx, "periodic sweep failed", "error", err)
				}
			}
		}
	}()

	return bus.ConsumeReconcile(ctx, r.HandleReconcileMessage)
}
