package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pricetrail/backend/internal/domain"
)

// ReconcilerConfig holds configuration for the snapshot reconciler
type ReconcilerConfig struct {
	// Location decides which calendar day "today" is. Nil means time.Local.
	Location *time.Location
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// SnapshotReconciler replaces today's snapshot of a site with a new batch
// and reloads the site's full history.
type SnapshotReconciler struct {
	store    domain.PriceStore
	location *time.Location
	now      func() time.Time
	locks    *scopeLocks
}

// NewSnapshotReconciler creates a reconciler over store
func NewSnapshotReconciler(store domain.PriceStore, config ReconcilerConfig) *SnapshotReconciler {
	location := config.Location
	if location == nil {
		location = time.Local
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &SnapshotReconciler{
		store:    store,
		location: location,
		now:      now,
		locks:    newScopeLocks(),
	}
}

// Today returns the snapshot scope of site for the current day
func (r *SnapshotReconciler) Today(site string) domain.Scope {
	return domain.Scope{
		Site: site,
		Date: r.now().In(r.location).Format(domain.DateLayout),
	}
}

// Reconcile makes batch the only snapshot of (site, today) and returns every
// stored record of site afterwards.
//
// A batch holding another site's record is rejected before the store is
// touched. An empty batch changes nothing. A failed scope read or delete
// aborts the remaining mutation; the reload still runs and its records are
// returned together with the error. Individual insert failures are logged
// and skipped. Once started, a reconciliation ignores cancellation of ctx;
// the store clients' own timeouts bound it.
func (r *SnapshotReconciler) Reconcile(ctx context.Context, site string, batch []domain.PriceRecord) ([]domain.PriceRecord, error) {
	ctx = context.WithoutCancel(ctx)

	for _, record := range batch {
		if record.Site != "" && record.Site != site {
			return nil, fmt.Errorf("%w: expected %q, got %q", domain.ErrMixedSiteBatch, site, record.Site)
		}
	}

	var mutateErr error
	if len(batch) > 0 {
		mutateErr = r.replaceScope(ctx, r.Today(site), batch)
	}

	history, err := r.History(ctx, site)
	if err != nil {
		return nil, errors.Join(mutateErr, err)
	}
	return history, mutateErr
}

// replaceScope deletes everything in scope and inserts batch, holding the scope lock
func (r *SnapshotReconciler) replaceScope(ctx context.Context, scope domain.Scope, batch []domain.PriceRecord) error {
	unlock := r.locks.Lock(scope.Key())
	defer unlock()

	existing, err := r.store.FindRecords(ctx, scope.Filter())
	if err != nil {
		log.Printf("[Reconcile] %s: reading today's snapshot failed: %v", scope.Key(), err)
		return wrapStoreErr(domain.ErrStoreRead, err)
	}

	for _, record := range existing {
		if err := r.store.DeleteRecord(ctx, record.ID); err != nil {
			log.Printf("[Reconcile] %s: deleting record %d failed: %v", scope.Key(), record.ID, err)
			return wrapStoreErr(domain.ErrStoreWrite, err)
		}
	}

	failed := 0
	for i, candidate := range batch {
		if _, err := r.store.CreateRecord(ctx, snapshotRecord(candidate, scope)); err != nil {
			failed++
			log.Printf("[Reconcile] %s: inserting record %d (%q) failed: %v", scope.Key(), i, candidate.Title, err)
		}
	}

	log.Printf("[Reconcile] %s: replaced %d records with %d (%d failed)",
		scope.Key(), len(existing), len(batch)-failed, failed)
	return nil
}

// History returns every stored record of site, across all dates
func (r *SnapshotReconciler) History(ctx context.Context, site string) ([]domain.PriceRecord, error) {
	records, err := r.store.FindRecords(ctx, domain.RecordFilter{Site: site})
	if err != nil {
		log.Printf("[Reconcile] reloading history of %s failed: %v", site, err)
		return nil, wrapStoreErr(domain.ErrStoreRead, err)
	}
	if records == nil {
		records = []domain.PriceRecord{}
	}
	return records, nil
}

// snapshotRecord prepares a candidate for insertion into scope
func snapshotRecord(candidate domain.PriceRecord, scope domain.Scope) domain.PriceRecord {
	candidate.ID = 0
	candidate.CreatedAt = nil
	candidate.UpdatedAt = nil
	candidate.PublishedAt = nil
	candidate.Site = scope.Site
	candidate.Date = scope.Date
	return candidate
}

// wrapStoreErr tags err with sentinel unless it already carries it
func wrapStoreErr(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
