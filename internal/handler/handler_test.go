package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/larder/internal/auth"
	"github.com/dukerupert/larder/internal/database"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/projection"
	"github.com/dukerupert/larder/internal/recipe"
	"github.com/dukerupert/larder/internal/store"
)

type notifyCall struct {
	userID     int64
	collection model.Collection
}

type recordingNotifier struct {
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, c model.Collection) {
	n.calls = append(n.calls, notifyCall{userID, c})
}

type testEnv struct {
	mux      *http.ServeMux
	userID   int64
	notifier *recordingNotifier
	shopping *store.ShoppingStore
	images   *fakeImages
}

type fakeImages struct {
	configured bool
	uploaded   map[string][]byte
	err        error
	signed     int
}

func (f *fakeImages) Configured() bool { return f.configured }

func (f *fakeImages) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, _ := io.ReadAll(body)
	f.uploaded[key] = data
	return "blob:" + key, nil
}

// URL hands out a new signature on every call, like a presigner.
func (f *fakeImages) URL(_ context.Context, handle string) (string, error) {
	f.signed++
	return "https://cdn.example.com/" + strings.TrimPrefix(handle, "blob:") + "?sig=" + strconv.Itoa(f.signed), nil
}

func setupHandlerEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	u, _, err := store.NewUserStore(db).Create("alice")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	env := &testEnv{
		mux:      http.NewServeMux(),
		userID:   u.ID,
		notifier: &recordingNotifier{},
		shopping: store.NewShoppingStore(db),
		images:   &fakeImages{configured: true, uploaded: map[string][]byte{}},
	}
	logger := slog.Default()
	defaults := projection.DefaultSettings(time.Time{})

	repos := map[model.Collection]struct {
		repo Repo
		view Viewer
	}{
		model.CollectionShopping:  {ShoppingRepo(env.shopping, env.images), ViewOf(projection.Shopping())},
		model.CollectionInventory: {InventoryRepo(store.NewInventoryStore(db)), ViewOf(projection.Inventory())},
		model.CollectionBudget:    {BudgetRepo(store.NewBudgetStore(db)), ViewOf(projection.Budget())},
		model.CollectionPrices:    {PriceRepo(store.NewPriceStore(db)), PriceView},
	}
	for c, r := range repos {
		h, err := NewCollectionHandler(c, r.repo, r.view, env.notifier, defaults, logger)
		if err != nil {
			t.Fatalf("new handler: %v", err)
		}
		h.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
		base := "/api/" + string(c)
		env.mux.HandleFunc("GET "+base, h.List)
		env.mux.HandleFunc("POST "+base, h.Create)
		env.mux.HandleFunc("GET "+base+"/view", h.View)
		env.mux.HandleFunc("GET "+base+"/{id}", h.Get)
		env.mux.HandleFunc("PATCH "+base+"/{id}", h.Update)
		env.mux.HandleFunc("DELETE "+base+"/{id}", h.Delete)
	}

	sh := NewShoppingHandler(env.shopping, env.images, env.notifier, logger)
	env.mux.HandleFunc("POST /api/shopping/{id}/purchase", sh.Purchase)
	env.mux.HandleFunc("PUT /api/shopping/{id}/image", sh.UploadImage)
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: e.userID, Name: "alice"}))
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateShoppingItem(t *testing.T) {
	env := setupHandlerEnv(t)

	rec := env.do(t, "POST", "/api/shopping", `{"name":"Eggs","quantity":12,"price":"0.25"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	item := decode[model.ShoppingItem](t, rec)
	if item.Name != "Eggs" || item.Category != "dairy" {
		t.Errorf("item = %+v, want Eggs in dairy", item)
	}
	if !item.Quantity.Equal(decimalOf(t, "12")) {
		t.Errorf("quantity = %s, want 12", item.Quantity)
	}
	if len(env.notifier.calls) != 1 || env.notifier.calls[0].collection != model.CollectionShopping {
		t.Errorf("notify calls = %+v", env.notifier.calls)
	}
}

func TestCreateValidation(t *testing.T) {
	env := setupHandlerEnv(t)

	tests := []struct {
		path  string
		body  string
		field string
	}{
		{"/api/shopping", `{"name":"","quantity":1}`, "name"},
		{"/api/shopping", `{"name":"Milk"}`, "quantity"},
		{"/api/shopping", `{"name":"Milk","quantity":"lots"}`, "quantity"},
		{"/api/shopping", `{"name":"Milk","quantity":1,"color":"white"}`, "color"},
		{"/api/budget", `{"name":"Bus","amount":2,"category":"travel","date":"2026-03-01"}`, "category"},
		{"/api/inventory", `{"name":"Milk","quantity":1,"expiration_date":"tomorrow"}`, "expiration_date"},
		{"/api/prices", `{"item":"Milk","price":1,"store":["a"]}`, "store"},
	}
	for _, tt := range tests {
		rec := env.do(t, "POST", tt.path, tt.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: status = %d, want 400", tt.path, tt.body, rec.Code)
			continue
		}
		body := decode[map[string]string](t, rec)
		if body["field"] != tt.field {
			t.Errorf("%s: field = %q, want %q", tt.body, body["field"], tt.field)
		}
	}
	if len(env.notifier.calls) != 0 {
		t.Errorf("notify called %d times for invalid input", len(env.notifier.calls))
	}
}

func TestCreateInvalidJSON(t *testing.T) {
	env := setupHandlerEnv(t)
	rec := env.do(t, "POST", "/api/shopping", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	env := setupHandlerEnv(t)

	created := decode[model.InventoryItem](t, env.do(t, "POST", "/api/inventory", `{"name":"Milk","quantity":"1","expiration_date":"2026-03-12"}`))

	rec := env.do(t, "GET", "/api/inventory/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = env.do(t, "PATCH", "/api/inventory/"+created.ID, `{"quantity":"3","expiration_date":null}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rec.Code, rec.Body.String())
	}
	updated := decode[model.InventoryItem](t, rec)
	if updated.Name != "Milk" {
		t.Errorf("name = %q, want untouched Milk", updated.Name)
	}
	if !updated.Quantity.Equal(decimalOf(t, "3")) {
		t.Errorf("quantity = %s, want 3", updated.Quantity)
	}
	if updated.ExpirationDate != "" {
		t.Errorf("expiration_date = %q, want cleared", updated.ExpirationDate)
	}

	rec = env.do(t, "PATCH", "/api/inventory/"+created.ID, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty patch status = %d, want 400", rec.Code)
	}

	rec = env.do(t, "DELETE", "/api/inventory/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", rec.Code)
	}
	for _, m := range []string{"GET", "DELETE"} {
		if rec := env.do(t, m, "/api/inventory/"+created.ID, ""); rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete status = %d, want 404", m, rec.Code)
		}
	}
	if rec := env.do(t, "PATCH", "/api/inventory/"+created.ID, `{"name":"x"}`); rec.Code != http.StatusNotFound {
		t.Errorf("patch missing status = %d, want 404", rec.Code)
	}

	// create, patch, delete
	if len(env.notifier.calls) != 3 {
		t.Errorf("notify calls = %d, want 3", len(env.notifier.calls))
	}
}

func TestListEmpty(t *testing.T) {
	env := setupHandlerEnv(t)
	rec := env.do(t, "GET", "/api/prices", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s, want []", rec.Body.String())
	}
}

func TestBudgetView(t *testing.T) {
	env := setupHandlerEnv(t)

	env.do(t, "POST", "/api/budget", `{"name":"Groceries","amount":"10.00","category":"food","date":"2026-03-01"}`)
	env.do(t, "POST", "/api/budget", `{"name":"Milk","amount":"3.50","category":"food","date":"2026-03-02"}`)
	env.do(t, "POST", "/api/budget", `{"name":"Bus","amount":"2.00","category":"transport","date":"2026-03-02"}`)

	rec := env.do(t, "GET", "/api/budget/view?filter=food", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	v := decode[projection.Views[model.BudgetExpense]](t, rec)
	if !v.Total.Equal(decimalOf(t, "13.50")) {
		t.Errorf("total = %s, want 13.50", v.Total)
	}
	if len(v.Items) != 2 {
		t.Errorf("items = %d, want 2", len(v.Items))
	}
}

func TestInventoryViewSettings(t *testing.T) {
	env := setupHandlerEnv(t)

	env.do(t, "POST", "/api/inventory", `{"name":"Milk","quantity":"2","expiration_date":"2026-03-12"}`)
	env.do(t, "POST", "/api/inventory", `{"name":"Rice","quantity":"1","expiration_date":"2026-04-01"}`)

	v := decode[projection.Views[model.InventoryItem]](t, env.do(t, "GET", "/api/inventory/view", ""))
	if len(v.ExpiringSoon) != 1 || v.ExpiringSoon[0].Name != "Milk" {
		t.Errorf("expiring = %+v, want Milk", v.ExpiringSoon)
	}
	if len(v.LowStock) != 1 || v.LowStock[0].Name != "Rice" {
		t.Errorf("low stock = %+v, want Rice", v.LowStock)
	}

	v = decode[projection.Views[model.InventoryItem]](t, env.do(t, "GET", "/api/inventory/view?threshold=2&days=1", ""))
	if len(v.ExpiringSoon) != 0 {
		t.Errorf("expiring with days=1 = %d, want 0", len(v.ExpiringSoon))
	}
	if len(v.LowStock) != 2 {
		t.Errorf("low stock with threshold=2 = %d, want 2", len(v.LowStock))
	}

	if rec := env.do(t, "GET", "/api/inventory/view?days=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative days status = %d, want 400", rec.Code)
	}
}

func TestPriceViewCheapest(t *testing.T) {
	env := setupHandlerEnv(t)
	env.do(t, "POST", "/api/prices", `{"item":"Milk","price":"1.20","store":"Corner"}`)
	env.do(t, "POST", "/api/prices", `{"item":"Milk","price":"0.99","store":"Mart"}`)

	v := decode[struct {
		Cheapest []model.PriceEntry `json:"cheapest"`
		Items    []model.PriceEntry `json:"items"`
	}](t, env.do(t, "GET", "/api/prices/view", ""))
	if len(v.Items) != 2 {
		t.Errorf("items = %d, want 2", len(v.Items))
	}
	if len(v.Cheapest) != 1 || v.Cheapest[0].Store != "Mart" {
		t.Errorf("cheapest = %+v, want Mart", v.Cheapest)
	}
}

func TestPurchase(t *testing.T) {
	env := setupHandlerEnv(t)
	item := decode[model.ShoppingItem](t, env.do(t, "POST", "/api/shopping", `{"name":"Eggs","quantity":12}`))
	env.notifier.calls = nil

	rec := env.do(t, "POST", "/api/shopping/"+item.ID+"/purchase", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[model.ShoppingItem](t, rec)
	if !got.Purchased {
		t.Error("expected purchased")
	}
	if len(env.notifier.calls) != 1 {
		t.Errorf("notify calls = %d, want 1", len(env.notifier.calls))
	}

	if rec := env.do(t, "POST", "/api/shopping/missing/purchase", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", rec.Code)
	}
}

func imageRequest(t *testing.T, env *testEnv, id, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="eggs.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write([]byte("png-bytes"))
	mw.Close()

	req := httptest.NewRequest("PUT", "/api/shopping/"+id+"/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: env.userID}))
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	return rec
}

func TestUploadImage(t *testing.T) {
	env := setupHandlerEnv(t)
	item := decode[model.ShoppingItem](t, env.do(t, "POST", "/api/shopping", `{"name":"Eggs","quantity":12}`))

	rec := imageRequest(t, env, item.ID, "image/png")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[model.ShoppingItem](t, rec)
	key := "images/" + itoa(env.userID) + "/" + item.ID
	if !strings.HasPrefix(got.Image, "https://cdn.example.com/"+key+"?sig=") {
		t.Errorf("image = %q, want a signed URL for %s", got.Image, key)
	}
	if len(env.images.uploaded) != 1 {
		t.Errorf("uploaded = %d, want 1", len(env.images.uploaded))
	}

	stored, err := env.shopping.GetByID(env.userID, item.ID)
	if err != nil || stored == nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Image != "blob:"+key {
		t.Errorf("stored image = %q, want the handle", stored.Image)
	}

	// Every read signs again, so a stale URL is never served.
	again := decode[model.ShoppingItem](t, env.do(t, "GET", "/api/shopping/"+item.ID, ""))
	if again.Image == got.Image || !strings.HasPrefix(again.Image, "https://cdn.example.com/"+key) {
		t.Errorf("re-read image = %q, first = %q", again.Image, got.Image)
	}
	list := decode[[]model.ShoppingItem](t, env.do(t, "GET", "/api/shopping", ""))
	if len(list) != 1 || !strings.HasPrefix(list[0].Image, "https://cdn.example.com/"+key) {
		t.Errorf("listed image = %+v", list)
	}

	if rec := imageRequest(t, env, item.ID, "text/plain"); rec.Code != http.StatusBadRequest {
		t.Errorf("non-image status = %d, want 400", rec.Code)
	}

	env.images.err = errors.New("bucket gone")
	if rec := imageRequest(t, env, item.ID, "image/png"); rec.Code != http.StatusBadGateway {
		t.Errorf("upload failure status = %d, want 502", rec.Code)
	}

	env.images.configured = false
	if rec := imageRequest(t, env, item.ID, "image/png"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured status = %d, want 503", rec.Code)
	}
}

func TestPlainImageURLUntouched(t *testing.T) {
	env := setupHandlerEnv(t)
	item := decode[model.ShoppingItem](t, env.do(t, "POST", "/api/shopping",
		`{"name":"Eggs","quantity":12,"image":"https://example.com/eggs.png"}`))
	if item.Image != "https://example.com/eggs.png" {
		t.Errorf("image = %q", item.Image)
	}
	if env.images.signed != 0 {
		t.Errorf("signed %d URLs for a plain image", env.images.signed)
	}
}

func TestImageHandleDroppedWhenStorageOff(t *testing.T) {
	env := setupHandlerEnv(t)
	item := decode[model.ShoppingItem](t, env.do(t, "POST", "/api/shopping", `{"name":"Eggs","quantity":12}`))
	if rec := imageRequest(t, env, item.ID, "image/png"); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	env.images.configured = false
	got := decode[model.ShoppingItem](t, env.do(t, "GET", "/api/shopping/"+item.ID, ""))
	if got.Image != "" {
		t.Errorf("image = %q, want empty", got.Image)
	}
}

type fakeSearcher struct {
	hits []recipe.Hit
	err  error
}

func (f fakeSearcher) Search(context.Context, string) ([]recipe.Hit, error) {
	return f.hits, f.err
}

func TestRecipeSearch(t *testing.T) {
	tests := []struct {
		name   string
		s      fakeSearcher
		status int
		hits   int
	}{
		{"ok", fakeSearcher{hits: []recipe.Hit{{Label: "Omelette"}}}, http.StatusOK, 1},
		{"upstream failure", fakeSearcher{err: errors.New("timeout")}, http.StatusBadGateway, 0},
		{"empty query", fakeSearcher{err: recipe.ErrEmptyQuery}, http.StatusBadRequest, 0},
		{"not configured", fakeSearcher{err: recipe.ErrNotConfigured}, http.StatusServiceUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRecipeHandler(tt.s, slog.Default())
			rec := httptest.NewRecorder()
			h.Search(rec, httptest.NewRequest("GET", "/api/recipes?q=eggs", nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			body := decode[recipeResponse](t, rec)
			if body.Hits == nil || len(body.Hits) != tt.hits {
				t.Errorf("hits = %v, want %d", body.Hits, tt.hits)
			}
		})
	}
}
