package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/swapeco-api/internal/apperr"
	"github.com/rajivgeraev/swapeco-api/internal/models"
)

type fakeCache struct {
	counts      map[uuid.UUID]int
	failGet     bool
	gets, sets  int
	invalidated []uuid.UUID
}

func newFakeCache() *fakeCache {
	return &fakeCache{counts: make(map[uuid.UUID]int)}
}

func (c *fakeCache) Get(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	c.gets++
	if c.failGet {
		return 0, false, errors.New("redis down")
	}
	n, ok := c.counts[userID]
	return n, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, userID uuid.UUID, count int) error {
	c.sets++
	c.counts[userID] = count
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	c.invalidated = append(c.invalidated, userID)
	delete(c.counts, userID)
	return nil
}

func TestCaching_CountPending(t *testing.T) {
	f := newFixture()
	cache := newFakeCache()
	svc := &ExchangeCaching{Service: f.svc, Cache: cache}
	ctx := context.Background()

	count, err := svc.CountPending(ctx, f.receiver)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 1, cache.sets)

	// попадание в кэш
	cache.counts[f.receiver] = 7
	count, err = svc.CountPending(ctx, f.receiver)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.Equal(t, 1, cache.sets)
}

func TestCaching_InvalidatesReceiver(t *testing.T) {
	f := newFixture()
	cache := newFakeCache()
	svc := &ExchangeCaching{Service: f.svc, Cache: cache}
	ctx := context.Background()

	_, err := svc.CountPending(ctx, f.receiver)
	require.NoError(t, err)

	v, err := svc.Create(ctx, f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: f.itemC})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.receiver}, cache.invalidated)

	count, err := svc.CountPending(ctx, f.receiver)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.Cancel(ctx, v.ID, f.proposer)
	require.NoError(t, err)
	assert.Len(t, cache.invalidated, 2)

	// неудачный вызов не сбрасывает кэш
	_, err = svc.Cancel(ctx, v.ID, f.proposer)
	require.Error(t, err)
	assert.Len(t, cache.invalidated, 2)
}

func TestCaching_InvalidatesWhenProjectionFails(t *testing.T) {
	f := newFixture()
	id := f.propose()
	cache := newFakeCache()
	svc := &ExchangeCaching{Service: f.svc, Cache: cache}
	ctx := context.Background()

	f.users.fail = true
	v, err := svc.Respond(ctx, id, f.receiver, RespondInput{Response: ActionAccept})
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeAccepted, v.Status)
	assert.Nil(t, v.Proposer)
	assert.Equal(t, []uuid.UUID{f.receiver}, cache.invalidated)

	// изменение зафиксировано
	f.users.fail = false
	got, err := svc.FindByID(ctx, id, f.receiver)
	require.NoError(t, err)
	assert.Equal(t, models.ExchangeAccepted, got.Status)
}

func TestCaching_CacheErrorsAreNotReturned(t *testing.T) {
	f := newFixture()
	f.propose()
	cache := newFakeCache()
	cache.failGet = true
	svc := &ExchangeCaching{Service: f.svc, Cache: cache}

	count, err := svc.CountPending(context.Background(), f.receiver)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

type fakeLimiter struct {
	mu        sync.Mutex
	count     int
	limit     int
	failCheck bool
}

func (l *fakeLimiter) Reserve(ctx context.Context, userID uuid.UUID) (bool, error) {
	if l.failCheck {
		return false, errors.New("redis down")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.count > l.limit {
		l.count--
		return false, nil
	}
	return true, nil
}

func (l *fakeLimiter) Release(ctx context.Context, userID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count--
	return nil
}

func TestLimiting(t *testing.T) {
	f := newFixture()
	lim := &fakeLimiter{limit: 1}
	svc := &ExchangeLimiting{Service: f.svc, Limiter: lim}
	ctx := context.Background()

	_, err := svc.Create(ctx, f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: f.itemC})
	require.NoError(t, err)
	assert.Equal(t, 1, lim.count)

	d := f.store.addItem(f.stranger, "D")
	_, err = svc.Create(ctx, f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: d})
	assert.ErrorIs(t, err, apperr.ErrTooManyRequests)
	assert.Equal(t, 429, apperr.HTTPStatus(err))
	assert.Equal(t, 1, lim.count)
}

func TestLimiting_ConcurrentCreates(t *testing.T) {
	f := newFixture()
	lim := &fakeLimiter{limit: 2}
	svc := &ExchangeLimiting{Service: f.svc, Limiter: lim}

	requested := make([]uuid.UUID, 6)
	for i := range requested {
		requested[i] = f.store.addItem(f.stranger, fmt.Sprintf("D%d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		limited int
	)
	for _, id := range requested {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: id})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrTooManyRequests):
				limited++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, created)
	assert.Equal(t, 4, limited)
	assert.Equal(t, 2, lim.count)
}

func TestLimiting_FailedCreateIsNotCounted(t *testing.T) {
	f := newFixture()
	lim := &fakeLimiter{limit: 5}
	svc := &ExchangeLimiting{Service: f.svc, Limiter: lim}

	_, err := svc.Create(context.Background(), f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: uuid.New()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Zero(t, lim.count)
}

func TestLimiting_FailOpen(t *testing.T) {
	in := func(f *fixture) CreateInput {
		return CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: f.itemC}
	}

	f := newFixture()
	open := &ExchangeLimiting{Service: f.svc, Limiter: &fakeLimiter{limit: 1, failCheck: true}, FailOpen: true}
	_, err := open.Create(context.Background(), f.proposer, in(f))
	assert.NoError(t, err)

	f = newFixture()
	closed := &ExchangeLimiting{Service: f.svc, Limiter: &fakeLimiter{limit: 1, failCheck: true}}
	_, err = closed.Create(context.Background(), f.proposer, in(f))
	require.Error(t, err)
	assert.Equal(t, 500, apperr.HTTPStatus(err))
}

func TestLogging_PassesThrough(t *testing.T) {
	f := newFixture()
	svc := &ExchangeLogging{Service: f.svc}
	ctx := context.Background()

	v, err := svc.Create(ctx, f.proposer, CreateInput{OfferedItemIDs: []uuid.UUID{f.itemA}, RequestedItemID: f.itemC})
	require.NoError(t, err)

	_, err = svc.Respond(ctx, v.ID, f.proposer, RespondInput{Response: ActionAccept})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	list, err := svc.FindByUser(ctx, f.proposer, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
