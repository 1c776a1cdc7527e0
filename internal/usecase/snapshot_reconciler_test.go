package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricetrail/backend/internal/domain"
)

const testDay = "2024-01-01"

func newTestReconciler(store domain.PriceStore) *SnapshotReconciler {
	return NewSnapshotReconciler(store, ReconcilerConfig{
		Location: time.UTC,
		Now:      fixedClock(testDay),
	})
}

func titles(records []domain.PriceRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}

func TestReconcile_EmptyBatchDoesNotMutate(t *testing.T) {
	store := newFaultyStore()
	store.seed(
		domain.PriceRecord{Title: "old", Price: 10, Site: "gmarket", Date: "2023-12-31"},
		domain.PriceRecord{Title: "other", Price: 20, Site: "11st", Date: testDay},
	)
	r := newTestReconciler(store)

	history, err := r.Reconcile(context.Background(), "gmarket", nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, titles(history))
	assert.Equal(t, []string{"find gmarket|"}, store.Calls(), "only the reload may touch the store")
	assert.Equal(t, 2, store.Len())
}

func TestReconcile_ScopeIsolation(t *testing.T) {
	store := newFaultyStore()
	store.seed(
		domain.PriceRecord{Title: "b-today", Price: 5, Site: "11st", Date: testDay},
		domain.PriceRecord{Title: "a-today", Price: 7, Site: "gmarket", Date: testDay},
	)
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "a-new", Price: 6, Site: "gmarket"},
	})
	require.NoError(t, err)

	other, err := store.Store.FindRecords(context.Background(), domain.RecordFilter{Site: "11st"})
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "b-today", other[0].Title)
	assert.Equal(t, 1, other[0].ID, "untouched record keeps its identity")
}

func TestReconcile_ReplacesScopeCompletely(t *testing.T) {
	store := newFaultyStore()
	store.seed(
		domain.PriceRecord{Title: "stale-1", Price: 1, Site: "gmarket", Date: testDay},
		domain.PriceRecord{Title: "stale-2", Price: 2, Site: "gmarket", Date: testDay},
		domain.PriceRecord{Title: "yesterday", Price: 3, Site: "gmarket", Date: "2023-12-31"},
	)
	r := newTestReconciler(store)

	batch := []domain.PriceRecord{
		{Title: "A", Price: 1000, URL: "u1", Code: "c1", Site: "gmarket"},
		{Title: "B", Price: 2000, URL: "u2", Code: "c2", Site: "gmarket"},
	}
	history, err := r.Reconcile(context.Background(), "gmarket", batch)
	require.NoError(t, err)

	today, err := store.Store.FindRecords(context.Background(), domain.RecordFilter{Site: "gmarket", Date: testDay})
	require.NoError(t, err)
	require.Len(t, today, 2)
	for i, got := range today {
		assert.Equal(t, batch[i].Title, got.Title)
		assert.Equal(t, batch[i].Price, got.Price)
		assert.Equal(t, batch[i].URL, got.URL)
		assert.Equal(t, batch[i].Code, got.Code)
		assert.Equal(t, testDay, got.Date)
		assert.True(t, got.IsPersisted())
	}

	assert.ElementsMatch(t, []string{"yesterday", "A", "B"}, titles(history))
}

func TestReconcile_StepOrdering(t *testing.T) {
	store := newFaultyStore()
	store.seed(domain.PriceRecord{Title: "stale", Site: "gmarket", Date: testDay})
	r := newTestReconciler(store)

	_, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "first"}, {Title: "second"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"find gmarket|" + testDay,
		"delete 1",
		"create first",
		"create second",
		"find gmarket|",
	}, store.Calls())
}

func TestReconcile_BestEffortInsert(t *testing.T) {
	store := newFaultyStore()
	store.seed(domain.PriceRecord{Title: "history", Price: 9, Site: "gmarket", Date: "2023-12-30"})
	store.failCreates["bad"] = true
	r := newTestReconciler(store)

	history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "good-1", Price: 1},
		{Title: "bad", Price: 2},
		{Title: "good-2", Price: 3},
	})

	require.NoError(t, err, "per-record insert failures are not returned")
	assert.ElementsMatch(t, []string{"history", "good-1", "good-2"}, titles(history))
}

func TestReconcile_AlwaysReloads(t *testing.T) {
	seed := func(store *faultyStore) {
		store.seed(
			domain.PriceRecord{Title: "keep", Site: "gmarket", Date: "2023-12-31"},
			domain.PriceRecord{Title: "stale", Site: "gmarket", Date: testDay},
		)
	}

	t.Run("scope read failure aborts mutation", func(t *testing.T) {
		store := newFaultyStore()
		seed(store)
		store.failScope = true
		r := newTestReconciler(store)

		history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{{Title: "new"}})

		require.ErrorIs(t, err, domain.ErrStoreRead)
		assert.ElementsMatch(t, []string{"keep", "stale"}, titles(history))
		assert.Equal(t, []string{"find gmarket|" + testDay, "find gmarket|"}, store.Calls())
	})

	t.Run("delete failure skips inserts", func(t *testing.T) {
		store := newFaultyStore()
		seed(store)
		store.failDelete = true
		r := newTestReconciler(store)

		history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{{Title: "new"}})

		require.ErrorIs(t, err, domain.ErrStoreWrite)
		assert.ElementsMatch(t, []string{"keep", "stale"}, titles(history))
		assert.NotContains(t, store.Calls(), "create new")
		assert.Equal(t, "find gmarket|", store.Calls()[len(store.Calls())-1])
	})

	t.Run("reload failure is reported", func(t *testing.T) {
		store := newFaultyStore()
		seed(store)
		store.failReload = true
		r := newTestReconciler(store)

		history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{{Title: "new"}})

		require.ErrorIs(t, err, domain.ErrStoreRead)
		assert.Nil(t, history)
	})

	t.Run("both failures are joined", func(t *testing.T) {
		store := newFaultyStore()
		seed(store)
		store.failDelete = true
		store.failReload = true
		r := newTestReconciler(store)

		_, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{{Title: "new"}})

		assert.ErrorIs(t, err, domain.ErrStoreWrite)
		assert.ErrorIs(t, err, domain.ErrStoreRead)
	})
}

func TestReconcile_EndToEnd(t *testing.T) {
	store := newFaultyStore()
	r := newTestReconciler(store)

	history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "A", Price: 1000, URL: "u1", Code: "c1", Site: "gmarket"},
	})

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1000.0, history[0].Price)
	assert.Equal(t, testDay, history[0].Date)
	assert.True(t, history[0].IsPersisted())
	assert.NotNil(t, history[0].CreatedAt)
	assert.Equal(t, 1, store.Len())
}

func TestReconcile_Overwrite(t *testing.T) {
	store := newFaultyStore()
	store.seed(
		domain.PriceRecord{Title: "X", Price: 1100, Site: "gmarket", Date: testDay},
		domain.PriceRecord{Title: "Y", Price: 1200, Site: "gmarket", Date: testDay},
	)
	r := newTestReconciler(store)

	history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "A", Price: 1000, URL: "u1", Code: "c1", Site: "gmarket"},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles(history))
	assert.Equal(t, 1, store.Len())
}

func TestReconcile_CallerCancellationDoesNotInterrupt(t *testing.T) {
	store := newFaultyStore()
	store.seed(domain.PriceRecord{Title: "old", Price: 1, Site: "gmarket", Date: testDay})
	r := newTestReconciler(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.afterDelete = func(int) { cancel() }

	history, err := r.Reconcile(ctx, "gmarket", []domain.PriceRecord{
		{Title: "A", Price: 1000},
		{Title: "B", Price: 2000},
	})

	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.ElementsMatch(t, []string{"A", "B"}, titles(history))

	today, err := store.Store.FindRecords(context.Background(), domain.RecordFilter{Site: "gmarket", Date: testDay})
	require.NoError(t, err)
	assert.Len(t, today, 2)
}

func TestReconcile_MixedSiteBatchRejected(t *testing.T) {
	store := newFaultyStore()
	r := newTestReconciler(store)

	history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{Title: "A", Site: "gmarket"},
		{Title: "B", Site: "11st"},
	})

	require.ErrorIs(t, err, domain.ErrMixedSiteBatch)
	assert.Nil(t, history)
	assert.Empty(t, store.Calls())
}

func TestReconcile_ClearsCandidateIdentity(t *testing.T) {
	store := newFaultyStore()
	r := newTestReconciler(store)
	stamp := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	history, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
		{ID: 99, Title: "A", Date: "1999-01-01", CreatedAt: &stamp},
	})

	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].ID)
	assert.Equal(t, testDay, history[0].Date)
	assert.Equal(t, "gmarket", history[0].Site)
	assert.NotEqual(t, stamp, *history[0].CreatedAt)
}

func TestReconciler_TodayUsesLocation(t *testing.T) {
	// 2024-01-01 20:00 UTC is already 2024-01-02 in Seoul
	now := func() time.Time { return time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC) }
	seoul := time.FixedZone("KST", 9*60*60)

	utc := NewSnapshotReconciler(newFaultyStore(), ReconcilerConfig{Location: time.UTC, Now: now})
	kst := NewSnapshotReconciler(newFaultyStore(), ReconcilerConfig{Location: seoul, Now: now})

	assert.Equal(t, domain.Scope{Site: "gmarket", Date: "2024-01-01"}, utc.Today("gmarket"))
	assert.Equal(t, domain.Scope{Site: "gmarket", Date: "2024-01-02"}, kst.Today("gmarket"))
}

func TestReconcile_SameScopeSerializes(t *testing.T) {
	store := newFaultyStore()
	r := newTestReconciler(store)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Reconcile(context.Background(), "gmarket", []domain.PriceRecord{
				{Title: fmt.Sprintf("w%d-a", i)},
				{Title: fmt.Sprintf("w%d-b", i)},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	today, err := store.Store.FindRecords(context.Background(), domain.RecordFilter{Site: "gmarket", Date: testDay})
	require.NoError(t, err)
	require.Len(t, today, 2, "exactly one batch survives")
	assert.Equal(t, today[0].Title[:len(today[0].Title)-2], today[1].Title[:len(today[1].Title)-2])
	assert.Equal(t, 0, r.locks.size())
}

func TestReconcile_StoreErrorsKeepSentinel(t *testing.T) {
	err := wrapStoreErr(domain.ErrStoreRead, fmt.Errorf("%w: boom", domain.ErrStoreRead))
	assert.True(t, errors.Is(err, domain.ErrStoreRead))
	assert.Equal(t, "content store read failed: boom", err.Error())
}
