// Package worker exports share reports outside the request path: on every
// change message and on a schedule.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/storage"
)

// DashboardSource computes a user's dashboard.
type DashboardSource interface {
	Dashboard(ctx context.Context, userID string, asOf core.Date) (services.Dashboard, error)
}

// CollaboratorSource returns a user's accepted collaborators.
type CollaboratorSource interface {
	Collaborators(ctx context.Context, userID string) ([]string, error)
}

// ReportWorker writes share reports for users whose view may have changed.
type ReportWorker struct {
	dashboards    DashboardSource
	collaborators CollaboratorSource
	users         storage.UserLister
	writer        sheets.ReportWriter
	concurrency   int
	now           func() time.Time

	exported atomic.Int64
	failed   atomic.Int64
}

func NewReportWorker(dashboards DashboardSource, collaborators CollaboratorSource, users storage.UserLister, writer sheets.ReportWriter, concurrency int, now func() time.Time) *ReportWorker {
	if concurrency <= 0 {
		concurrency = 4
	}
	if now == nil {
		now = time.Now
	}
	return &ReportWorker{
		dashboards:    dashboards,
		collaborators: collaborators,
		users:         users,
		writer:        writer,
		concurrency:   concurrency,
		now:           now,
	}
}

// HandleChange re-exports the users named in msg and their collaborators:
// a shared record changes every collaborator's share.
func (w *ReportWorker) HandleChange(ctx context.Context, msg *amqp.ChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"kind", msg.Kind,
		"action", msg.Action,
		"record_id", msg.RecordID,
		"owner_id", msg.OwnerID)

	users := msg.AffectedUsers()
	for _, u := range msg.AffectedUsers() {
		collabs, err := w.collaborators.Collaborators(ctx, u)
		if err != nil {
			return fmt.Errorf("collaborators of %s: %w", u, err)
		}
		users = append(users, collabs...)
	}
	slices.Sort(users)
	return w.exportUsers(ctx, slices.Compact(users))
}

// ExportAll exports a report for every user with at least one record.
func (w *ReportWorker) ExportAll(ctx context.Context) error {
	users, err := w.users.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	start := w.now()
	err = w.exportUsers(ctx, users)
	slog.InfoContext(ctx, "Report export completed",
		"users", len(users),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)
	return err
}

// ExportUser writes userID's report as of today.
func (w *ReportWorker) ExportUser(ctx context.Context, userID string) error {
	d, err := w.dashboards.Dashboard(ctx, userID, core.DateOf(w.now()))
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("dashboard for %s: %w", userID, err)
	}
	ref, err := w.writer.WriteReport(ctx, d.Shares)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("write report for %s: %w", userID, err)
	}
	w.exported.Add(1)
	slog.DebugContext(ctx, "Report exported", "user_id", userID, "ref", ref)
	return nil
}

// exportUsers runs ExportUser with bounded concurrency. One user's failure
// does not stop the others; the errors are joined.
func (w *ReportWorker) exportUsers(ctx context.Context, users []string) error {
	errs := make([]error, len(users))
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i, u := range users {
		g.Go(func() error {
			if err := w.ExportUser(ctx, u); err != nil {
				slog.ErrorContext(ctx, "Failed to export report", "user_id", u, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Stats returns the number of reports exported and failed since start.
func (w *ReportWorker) Stats() (exported, failed int64) {
	return w.exported.Load(), w.failed.Load()
}
