package exchange

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/notify"
)

// fakeStore хранилище в памяти. Транзакции выполняются по одной, а при
// ошибке состояние восстанавливается из снимка.
type fakeStore struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*models.Item
	exchanges map[uuid.UUID]*models.Exchange
	reviews   []models.Review
	users     map[uuid.UUID]*models.User
	clock     time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:     make(map[uuid.UUID]*models.Item),
		exchanges: make(map[uuid.UUID]*models.Exchange),
		users:     make(map[uuid.UUID]*models.User),
		clock:     time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeStore) addUser(name string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.users[id] = &models.User{ID: id, FirstName: name}
	return id
}

func (s *fakeStore) addItem(ownerID uuid.UUID, title string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	s.items[id] = &models.Item{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Category:  models.CategoryBooks,
		Condition: models.ConditionGood,
		City:      "Moscow",
		Status:    models.ItemAvailable,
	}
	return id
}

func (s *fakeStore) setItemStatus(id uuid.UUID, status models.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id].Status = status
}

func (s *fakeStore) itemStatus(id uuid.UUID) models.ItemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Status
}

func (s *fakeStore) exchange(id uuid.UUID) models.Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneExchange(s.exchanges[id])
}

func (s *fakeStore) reviewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reviews)
}

func (s *fakeStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(tx db.ExchangeTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make(map[uuid.UUID]*models.Item, len(s.items))
	for id, it := range s.items {
		c := *it
		items[id] = &c
	}
	exchanges := make(map[uuid.UUID]*models.Exchange, len(s.exchanges))
	for id, ex := range s.exchanges {
		c := cloneExchange(ex)
		exchanges[id] = &c
	}
	reviews := append([]models.Review(nil), s.reviews...)

	if err := fn(&fakeTx{s: s}); err != nil {
		s.items, s.exchanges, s.reviews = items, exchanges, reviews
		return err
	}
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.exchanges[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := cloneExchange(ex)
	return &c, nil
}

func (s *fakeStore) ListByUser(ctx context.Context, userID uuid.UUID, role db.ExchangeRole) ([]models.Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Exchange
	for _, ex := range s.exchanges {
		match := false
		switch role {
		case db.RoleSent:
			match = ex.ProposerID == userID
		case db.RoleReceived:
			match = ex.ReceiverID == userID
		default:
			match = ex.IsParticipant(userID)
		}
		if match {
			out = append(out, cloneExchange(ex))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) CountPending(ctx context.Context, receiverID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ex := range s.exchanges {
		if ex.ReceiverID == receiverID && ex.Status == models.ExchangePending {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ReviewsForUser(ctx context.Context, userID uuid.UUID) ([]models.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Review
	for _, r := range s.reviews {
		if r.ReviewedUserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) LoadItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	out := make(map[uuid.UUID]*models.Item)
	for _, id := range ids {
		if it, ok := t.s.items[id]; ok {
			c := *it
			out[id] = &c
		}
	}
	return out, nil
}

func (t *fakeTx) HasPending(ctx context.Context, proposerID, requestedItemID uuid.UUID) (bool, error) {
	for _, ex := range t.s.exchanges {
		if ex.ProposerID == proposerID && ex.RequestedItemID == requestedItemID && ex.Status == models.ExchangePending {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) Insert(ctx context.Context, ex *models.Exchange) error {
	if pending, _ := t.HasPending(ctx, ex.ProposerID, ex.RequestedItemID); pending {
		return db.ErrDuplicate
	}

	now := t.s.tick()
	ex.CreatedAt, ex.UpdatedAt = now, now
	c := cloneExchange(ex)
	t.s.exchanges[ex.ID] = &c
	return nil
}

func (t *fakeTx) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Exchange, error) {
	ex, ok := t.s.exchanges[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := cloneExchange(ex)
	return &c, nil
}

func (t *fakeTx) Update(ctx context.Context, ex *models.Exchange, from models.ExchangeStatus) error {
	stored, ok := t.s.exchanges[ex.ID]
	if !ok || stored.Status != from {
		return db.ErrStaleExchange
	}

	ex.UpdatedAt = t.s.tick()
	c := cloneExchange(ex)
	t.s.exchanges[ex.ID] = &c
	return nil
}

func (t *fakeTx) SetItemsStatus(ctx context.Context, ids []uuid.UUID, from, to models.ItemStatus) (int, error) {
	n := 0
	for _, id := range ids {
		if it, ok := t.s.items[id]; ok && it.Status == from {
			it.Status = to
			n++
		}
	}
	return n, nil
}

func (t *fakeTx) HasReview(ctx context.Context, exchangeID, reviewerID uuid.UUID) (bool, error) {
	for _, r := range t.s.reviews {
		if r.ExchangeID == exchangeID && r.ReviewerID == reviewerID {
			return true, nil
		}
	}
	return false, nil
}

func (t *fakeTx) InsertReview(ctx context.Context, r *models.Review) error {
	if exists, _ := t.HasReview(ctx, r.ExchangeID, r.ReviewerID); exists {
		return db.ErrDuplicate
	}
	r.CreatedAt = t.s.tick()
	t.s.reviews = append(t.s.reviews, *r)
	return nil
}

// fakeItems реализует только чтение, нужное проекциям
type fakeItems struct {
	db.ItemRepository
	s *fakeStore
}

func (f *fakeItems) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return (&fakeTx{s: f.s}).LoadItems(ctx, ids)
}

type fakeUsers struct {
	s    *fakeStore
	fail bool
}

func (f *fakeUsers) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	u, ok := f.s.users[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	if f.fail {
		return nil, errors.New("users unavailable")
	}
	f.s.mu.Lock()
	defer f.s.mu.Unlock()

	out := make(map[uuid.UUID]*models.User)
	for _, id := range ids {
		if u, ok := f.s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Publish(ctx context.Context, events ...notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events...)
	return nil
}

func (n *fakeNotifier) byType(typ string) []notify.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	var out []notify.Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func cloneExchange(ex *models.Exchange) models.Exchange {
	c := *ex
	c.OfferedItemIDs = append([]uuid.UUID(nil), ex.OfferedItemIDs...)
	return c
}

// fixture типовой набор: P владеет A и B, R владеет C
type fixture struct {
	store    *fakeStore
	users    *fakeUsers
	notifier *fakeNotifier
	svc      *ExchangeGeneric

	proposer, receiver, stranger uuid.UUID
	itemA, itemB, itemC          uuid.UUID
}

func newFixture() *fixture {
	s := newFakeStore()
	n := &fakeNotifier{}

	f := &fixture{store: s, notifier: n}
	f.proposer = s.addUser("P")
	f.receiver = s.addUser("R")
	f.stranger = s.addUser("S")
	f.itemA = s.addItem(f.proposer, "A")
	f.itemB = s.addItem(f.proposer, "B")
	f.itemC = s.addItem(f.receiver, "C")

	f.users = &fakeUsers{s: s}
	f.svc = NewGeneric(s, &fakeItems{s: s}, f.users, n)
	f.svc.Now = func() time.Time { return time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) propose() uuid.UUID {
	v, err := f.svc.Create(context.Background(), f.proposer, CreateInput{
		OfferedItemIDs:  []uuid.UUID{f.itemA, f.itemB},
		RequestedItemID: f.itemC,
	})
	if err != nil {
		panic(err)
	}
	return v.ID
}
