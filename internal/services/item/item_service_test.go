package item

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/swapeco-api/internal/db"
	"github.com/rajivgeraev/swapeco-api/internal/middleware"
	"github.com/rajivgeraev/swapeco-api/internal/models"
	"github.com/rajivgeraev/swapeco-api/internal/utils"
)

type fakeItems struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*models.Item
	refs     map[uuid.UUID][]models.ExchangeStatus
	deleted  map[uuid.UUID]bool
	lastList db.ItemFilter
}

func newFakeItems() *fakeItems {
	return &fakeItems{
		items:   make(map[uuid.UUID]*models.Item),
		refs:    make(map[uuid.UUID][]models.ExchangeStatus),
		deleted: make(map[uuid.UUID]bool),
	}
}

func (f *fakeItems) Create(ctx context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := *item
	f.items[item.ID] = &c
	return nil
}

func (f *fakeItems) Get(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (f *fakeItems) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Item, error) {
	out := make(map[uuid.UUID]*models.Item)
	for _, id := range ids {
		if it, err := f.Get(ctx, id); err == nil {
			out[id] = it
		}
	}
	return out, nil
}

func (f *fakeItems) IncrementViews(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].ViewCount++
	return nil
}

func (f *fakeItems) ListAvailable(ctx context.Context, filter db.ItemFilter) ([]models.Item, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = filter

	var out []models.Item
	for _, it := range f.items {
		if it.Status == models.ItemAvailable && (filter.Category == "" || it.Category == filter.Category) {
			out = append(out, *it)
		}
	}
	return out, len(out), nil
}

func (f *fakeItems) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Item
	for _, it := range f.items {
		if it.OwnerID == ownerID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (f *fakeItems) Update(ctx context.Context, item *models.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.items[item.ID].Status != models.ItemAvailable {
		return db.ErrItemNotAvailable
	}
	c := *item
	f.items[item.ID] = &c
	return nil
}

func (f *fakeItems) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	it, ok := f.items[id]
	switch {
	case !ok:
		return db.ErrNotFound
	case it.Status != models.ItemAvailable:
		return db.ErrItemNotAvailable
	}
	for _, status := range f.refs[id] {
		if status == models.ExchangePending {
			return db.ErrItemInUse
		}
	}
	// вещь из истории обменов только помечается удалённой
	f.deleted[id] = len(f.refs[id]) > 0
	delete(f.items, id)
	return nil
}

type fakeUsers struct{}

func (fakeUsers) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id, FirstName: "Owner"}, nil
}

func (fakeUsers) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	for _, id := range ids {
		out[id] = &models.User{ID: id}
	}
	return out, nil
}

type fakeImages struct {
	mu        sync.Mutex
	destroyed []string
}

func (f *fakeImages) DestroyImages(ctx context.Context, publicIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicIDs...)
	return nil
}

type testAPI struct {
	app    *fiber.App
	jwt    *utils.JWTService
	items  *fakeItems
	images *fakeImages
}

func newTestAPI() *testAPI {
	a := &testAPI{
		jwt:    utils.NewJWTService("test-secret"),
		items:  newFakeItems(),
		images: &fakeImages{},
	}
	a.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	NewItemService(a.items, fakeUsers{}, a.images, a.jwt).SetupRoutes(a.app)
	return a
}

func (a *testAPI) do(t *testing.T, method, path string, userID uuid.UUID, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		token, err := a.jwt.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req)
	require.NoError(t, err)

	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func validInput() fiber.Map {
	return fiber.Map{
		"title":     "Книга о Go",
		"category":  "books",
		"condition": "good",
		"city":      "Казань",
		"images": []fiber.Map{
			{"url": "https://res.cloudinary.com/x/a.jpg", "public_id": "items/a"},
			{"url": "https://res.cloudinary.com/x/b.jpg", "public_id": "items/b"},
		},
	}
}

func (a *testAPI) create(t *testing.T, owner uuid.UUID) uuid.UUID {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/items", owner, validInput())
	require.Equal(t, http.StatusCreated, status, body)
	return uuid.MustParse(body["id"].(string))
}

func TestCreateItem(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()

	in := validInput()
	in["status"] = "exchanged"
	status, body := a.do(t, http.MethodPost, "/api/items", owner, in)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "available", body["status"])
	assert.Equal(t, owner.String(), body["owner_id"])

	status, _ = a.do(t, http.MethodPost, "/api/items", uuid.Nil, validInput())
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestCreateItem_Validation(t *testing.T) {
	cases := map[string]func(fiber.Map){
		"short title":       func(m fiber.Map) { m["title"] = "ab" },
		"unknown category":  func(m fiber.Map) { m["category"] = "cars" },
		"unknown condition": func(m fiber.Map) { m["condition"] = "broken" },
		"missing city":      func(m fiber.Map) { delete(m, "city") },
		"too many images": func(m fiber.Map) {
			m["images"] = []fiber.Map{{"url": "1"}, {"url": "2"}, {"url": "3"}, {"url": "4"}}
		},
		"image without url": func(m fiber.Map) { m["images"] = []fiber.Map{{"public_id": "x"}} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			a := newTestAPI()
			in := validInput()
			mutate(in)

			status, body := a.do(t, http.MethodPost, "/api/items", uuid.New(), in)
			assert.Equal(t, http.StatusBadRequest, status, body)
			assert.Empty(t, a.items.items)
		})
	}
}

func TestGetItems_Public(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()
	a.create(t, owner)
	reserved := a.create(t, owner)
	a.items.items[reserved].Status = models.ItemReserved

	status, body := a.do(t, http.MethodGet, "/api/items?category=books&limit=500&offset=0", uuid.Nil, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, maxLimit, body["limit"])
	assert.Len(t, body["items"], 1)
	assert.Equal(t, models.CategoryBooks, a.items.lastList.Category)

	status, _ = a.do(t, http.MethodGet, "/api/items?limit=abc", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(t, http.MethodGet, "/api/items?category=cars", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetMyItems(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()
	a.create(t, owner)
	a.create(t, uuid.New())

	status, body := a.do(t, http.MethodGet, "/api/items/mine", owner, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.EqualValues(t, 1, body["count"])
}

func TestGetItem_CountsViews(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()
	id := a.create(t, owner)

	status, body := a.do(t, http.MethodGet, "/api/items/"+id.String(), uuid.New(), nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, false, body["is_owner"])
	assert.EqualValues(t, 1, body["view_count"])
	assert.NotNil(t, body["owner"])

	status, body = a.do(t, http.MethodGet, "/api/items/"+id.String(), owner, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["is_owner"])
	assert.EqualValues(t, 1, body["view_count"])

	status, _ = a.do(t, http.MethodGet, "/api/items/"+uuid.NewString(), owner, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(t, http.MethodGet, "/api/items/not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdateItem(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()
	id := a.create(t, owner)

	in := validInput()
	in["title"] = "Новая книга"
	in["images"] = []fiber.Map{{"url": "https://res.cloudinary.com/x/a.jpg", "public_id": "items/a"}}

	status, _ := a.do(t, http.MethodPut, "/api/items/"+id.String(), uuid.New(), in)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := a.do(t, http.MethodPut, "/api/items/"+id.String(), owner, in)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "Новая книга", body["title"])
	assert.Equal(t, []string{"items/b"}, a.images.destroyed)

	a.items.items[id].Status = models.ItemReserved
	status, _ = a.do(t, http.MethodPut, "/api/items/"+id.String(), owner, in)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDeleteItem(t *testing.T) {
	a := newTestAPI()
	owner := uuid.New()

	t.Run("not owner", func(t *testing.T) {
		id := a.create(t, owner)
		status, _ := a.do(t, http.MethodDelete, "/api/items/"+id.String(), uuid.New(), nil)
		assert.Equal(t, http.StatusForbidden, status)
	})

	guards := map[string]func(uuid.UUID){
		"reserved": func(id uuid.UUID) { a.items.items[id].Status = models.ItemReserved },
		"pending exchange": func(id uuid.UUID) {
			a.items.refs[id] = []models.ExchangeStatus{models.ExchangeRefused, models.ExchangePending}
		},
	}
	for name, guard := range guards {
		t.Run(name, func(t *testing.T) {
			id := a.create(t, owner)
			guard(id)
			status, _ := a.do(t, http.MethodDelete, "/api/items/"+id.String(), owner, nil)
			assert.Equal(t, http.StatusConflict, status)
			assert.Contains(t, a.items.items, id)
		})
	}

	t.Run("only refused and cancelled proposals", func(t *testing.T) {
		id := a.create(t, owner)
		a.items.refs[id] = []models.ExchangeStatus{models.ExchangeRefused, models.ExchangeCancelled}

		status, body := a.do(t, http.MethodDelete, "/api/items/"+id.String(), owner, nil)
		require.Equal(t, http.StatusOK, status, body)
		assert.NotContains(t, a.items.items, id)
		assert.True(t, a.items.deleted[id])

		status, _ = a.do(t, http.MethodGet, "/api/items/"+id.String(), owner, nil)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("deletes and destroys images", func(t *testing.T) {
		a.images.destroyed = nil
		id := a.create(t, owner)
		status, body := a.do(t, http.MethodDelete, "/api/items/"+id.String(), owner, nil)
		require.Equal(t, http.StatusOK, status, body)
		assert.NotContains(t, a.items.items, id)
		assert.ElementsMatch(t, []string{"items/a", "items/b"}, a.images.destroyed)
	})
}
