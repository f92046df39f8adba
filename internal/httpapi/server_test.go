package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openpantry/pantryscan/internal/auth"
	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/events"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/model"
	"github.com/openpantry/pantryscan/internal/product"
	"github.com/openpantry/pantryscan/internal/storage"
)

type fakeDecoder struct {
	result barcode.Result
}

func (d *fakeDecoder) Decode(ctx context.Context, jpegFrame []byte) (barcode.Result, error) {
	return d.result, nil
}

type stubProducts struct {
	known map[string]model.Product
}

func (p *stubProducts) Lookup(ctx context.Context, upc string) (model.Product, error) {
	meta, ok := p.known[upc]
	if !ok {
		return model.Product{}, product.ErrNotFound
	}
	return meta, nil
}

type testEnv struct {
	server  *httptest.Server
	repo    *storage.Repository
	decoder *fakeDecoder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := storage.New(context.Background(), ":memory:", logger)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	decoder := &fakeDecoder{result: barcode.Result{Detected: true, Code: "036000291452"}}
	products := &stubProducts{known: map[string]model.Product{
		"036000291452": {Barcode: "036000291452", Title: "Whole Milk", Brand: "DairyCo", Category: "dairy"},
	}}
	hub := events.NewHub(logger)
	t.Cleanup(hub.Close)
	service := inventory.New(repo, products, hub, logger)
	tokens := auth.NewTokens("test-secret", time.Hour)

	api := New(service, repo, decoder, tokens, hub, logger)
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)
	return &testEnv{server: server, repo: repo, decoder: decoder}
}

func (e *testEnv) request(t *testing.T, method, path, token string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON body %q", method, path, raw)
		}
	}
	return resp, decoded
}

func (e *testEnv) registerUser(t *testing.T) string {
	t.Helper()
	resp, body := e.request(t, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email":    "pat@example.com",
		"username": "pat",
		"password": "secret-password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body = %v", resp.StatusCode, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("register returned no token: %v", body)
	}
	return token
}

func TestRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	env.registerUser(t)

	resp, body := env.request(t, http.MethodPost, "/api/auth/login/", "", map[string]string{
		"email":    "Pat@Example.com",
		"password": "secret-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %v", resp.StatusCode, body)
	}
	if body["token"] == "" {
		t.Fatalf("login returned no token")
	}

	resp, body = env.request(t, http.MethodPost, "/api/auth/login/", "", map[string]string{
		"email":    "pat@example.com",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "invalid_credentials" {
		t.Fatalf("error envelope = %v", body)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.request(t, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email": "not-an-email", "password": "secret-password",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid email status = %d, body = %v", resp.StatusCode, body)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email": "pat@example.com", "password": "short",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password status = %d", resp.StatusCode)
	}

	env.registerUser(t)
	resp, body = env.request(t, http.MethodPost, "/api/auth/register/", "", map[string]string{
		"email": "pat@example.com", "password": "secret-password",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, body = %v", resp.StatusCode, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.request(t, http.MethodGet, "/api/inventory/", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("missing error envelope: %v", body)
	}
}

func TestProcessBarcodeRecordsScan(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	resp, body := env.request(t, http.MethodPost, "/api/barcode/process/", token, map[string]string{
		"image": "aGVsbG8=",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process status = %d, body = %v", resp.StatusCode, body)
	}
	if body["detected"] != true || body["barcode_code"] != "036000291452" {
		t.Fatalf("process body = %v", body)
	}

	resp, body = env.request(t, http.MethodGet, "/api/scans/recent/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("recent scans status = %d", resp.StatusCode)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("recent scans = %v", body)
	}
}

func TestProcessBarcodeRejectsBadPayload(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	resp, _ := env.request(t, http.MethodPost, "/api/barcode/process/", token, map[string]string{"image": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty image status = %d", resp.StatusCode)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/barcode/process/", token, map[string]string{"image": "not base64!!"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad base64 status = %d", resp.StatusCode)
	}
}

func TestItemLookupCreateAndAdd(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	// Known UPC creates the item on first lookup.
	resp, body := env.request(t, http.MethodGet, "/api/items/036000291452/", token, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("lookup status = %d, body = %v", resp.StatusCode, body)
	}
	item, _ := body["item"].(map[string]any)
	if item["title"] != "Whole Milk" {
		t.Fatalf("item = %v", item)
	}

	// Second lookup finds the existing row.
	resp, _ = env.request(t, http.MethodGet, "/api/items/036000291452/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat lookup status = %d", resp.StatusCode)
	}

	// Unknown UPC is a 404 with the product_not_found code.
	resp, body = env.request(t, http.MethodGet, "/api/items/000000000000/", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown lookup status = %d", resp.StatusCode)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "product_not_found" {
		t.Fatalf("error = %v", body)
	}

	// Metadata-only endpoint does not create items.
	resp, body = env.request(t, http.MethodGet, "/api/items/lookup-product/036000291452/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lookup-product status = %d", resp.StatusCode)
	}
	if _, ok := body["product_data"]; !ok {
		t.Fatalf("lookup-product body = %v", body)
	}

	// Add to user twice increments the quantity.
	resp, body = env.request(t, http.MethodPost, "/api/items/1/add-to-user/", token, map[string]any{"location_name": "Pantry"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add status = %d, body = %v", resp.StatusCode, body)
	}
	_, body = env.request(t, http.MethodPost, "/api/items/1/add-to-user/", token, map[string]any{"location_name": "Pantry"})
	if body["quantity"].(float64) != 2 {
		t.Fatalf("quantity = %v, want 2", body["quantity"])
	}

	resp, body = env.request(t, http.MethodGet, "/api/inventory/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inventory status = %d", resp.StatusCode)
	}
	entries, _ := body["items"].([]any)
	if len(entries) != 1 {
		t.Fatalf("inventory = %v", body)
	}
}

func TestManualItemCreation(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	resp, body := env.request(t, http.MethodPost, "/api/items/", token, map[string]string{
		"barcode": "999", "title": "Homemade Jam", "category": "condiments",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", resp.StatusCode, body)
	}

	resp, body = env.request(t, http.MethodPost, "/api/items/", token, map[string]string{"title": "No Barcode"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing barcode status = %d", resp.StatusCode)
	}
	errObj, _ := body["error"].(map[string]any)
	if errObj["code"] != "barcode_required" {
		t.Fatalf("error = %v", body)
	}
}

func TestLocationEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	resp, body := env.request(t, http.MethodPost, "/api/locations/", token, map[string]string{"name": "Freezer"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create location status = %d, body = %v", resp.StatusCode, body)
	}

	// Same name again returns the existing row, not a new one.
	resp, _ = env.request(t, http.MethodPost, "/api/locations/", token, map[string]string{"name": "Freezer"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat create status = %d", resp.StatusCode)
	}

	resp, body = env.request(t, http.MethodGet, "/api/locations/", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("locations = %v", body)
	}

	resp, _ = env.request(t, http.MethodPost, "/api/locations/", token, map[string]string{"name": "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank name status = %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
}

func TestSearchUsersEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerUser(t)

	resp, body := env.request(t, http.MethodGet, "/api/auth/search-users/?q=pat", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, body = %v", resp.StatusCode, body)
	}
	items, _ := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("search results = %v", body)
	}

	resp, _ = env.request(t, http.MethodGet, "/api/auth/search-users/", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing query status = %d", resp.StatusCode)
	}
}
