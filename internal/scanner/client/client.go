// Package client is the scanner agent's HTTP client for the pantry server:
// login, frame processing, item lookup and creation, and location calls,
// all over the bearer token issued at login.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/model"
)

// ErrUnauthorized is returned on a 401: the token is missing or expired.
var ErrUnauthorized = errors.New("unauthorized")

// ErrProductNotFound is returned when the product database has no entry
// for the scanned code.
var ErrProductNotFound = errors.New("product not found")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:8099"
	}
	return &Client{
		baseURL: baseURL,
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken swaps the bearer token after a login.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// Token returns the current bearer token, empty when not logged in.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the server base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do runs one JSON request/response round trip. A non-nil out is decoded
// from the body on success.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		var envelope errorEnvelope
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.Error.Message != "" {
			if envelope.Error.Code == "product_not_found" {
				return fmt.Errorf("%w: %s", ErrProductNotFound, envelope.Error.Message)
			}
			return fmt.Errorf("%s %s: %s", method, path, envelope.Error.Message)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// LoginResult carries the token and the authenticated user.
type LoginResult struct {
	Token string `json:"token"`
	User  struct {
		ID       int64  `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
	} `json:"user"`
}

// Login exchanges credentials for a bearer token and stores it on the
// client for subsequent calls.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var result LoginResult
	payload := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login/", payload, &result); err != nil {
		return LoginResult{}, err
	}
	c.token = result.Token
	return result, nil
}

// Register creates an account and stores the issued token.
func (c *Client) Register(ctx context.Context, email, username, password string) (LoginResult, error) {
	var result LoginResult
	payload := map[string]string{"email": email, "username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register/", payload, &result); err != nil {
		return LoginResult{}, err
	}
	c.token = result.Token
	return result, nil
}

// ProcessBarcode ships one base64 JPEG frame to the server for decoding.
func (c *Client) ProcessBarcode(ctx context.Context, imageBase64 string) (barcode.Result, error) {
	var result barcode.Result
	payload := map[string]string{"image": imageBase64}
	if err := c.do(ctx, http.MethodPost, "/api/barcode/process/", payload, &result); err != nil {
		return barcode.Result{}, err
	}
	return result, nil
}

// LookupItem looks up a UPC server-side, creating the item when the
// product database knows it. ErrProductNotFound means manual entry is the
// only path forward.
func (c *Client) LookupItem(ctx context.Context, code string) (inventory.LookupResult, error) {
	var result inventory.LookupResult
	if err := c.do(ctx, http.MethodGet, "/api/items/"+code+"/", nil, &result); err != nil {
		return inventory.LookupResult{}, err
	}
	return result, nil
}

// LookupProduct fetches product metadata without creating an item.
func (c *Client) LookupProduct(ctx context.Context, code string) (model.Product, error) {
	var result struct {
		ProductData model.Product `json:"product_data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/items/lookup-product/"+code+"/", nil, &result); err != nil {
		return model.Product{}, err
	}
	return result.ProductData, nil
}

// CreateItem creates an item from user-entered fields.
func (c *Client) CreateItem(ctx context.Context, input inventory.CreateInput) (inventory.LookupResult, error) {
	var result inventory.LookupResult
	if err := c.do(ctx, http.MethodPost, "/api/items/", input, &result); err != nil {
		return inventory.LookupResult{}, err
	}
	return result, nil
}

// AddToUser links an item to the logged-in user at a location.
func (c *Client) AddToUser(ctx context.Context, itemID int64, input inventory.AddInput) (inventory.AddResult, error) {
	var result inventory.AddResult
	path := fmt.Sprintf("/api/items/%d/add-to-user/", itemID)
	if err := c.do(ctx, http.MethodPost, path, input, &result); err != nil {
		return inventory.AddResult{}, err
	}
	return result, nil
}

// Locations lists the user's storage locations.
func (c *Client) Locations(ctx context.Context) ([]model.Location, error) {
	var result struct {
		Items []model.Location `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/locations/", nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// CreateLocation creates a location by name, returning the existing one
// when the name is already taken.
func (c *Client) CreateLocation(ctx context.Context, name string) (model.Location, error) {
	var result model.Location
	payload := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/api/locations/", payload, &result); err != nil {
		return model.Location{}, err
	}
	return result, nil
}

// Inventory lists the user's current inventory entries.
func (c *Client) Inventory(ctx context.Context) ([]model.InventoryEntry, error) {
	var result struct {
		Items []model.InventoryEntry `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/inventory/", nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// RecentScans lists the user's most recent scan records.
func (c *Client) RecentScans(ctx context.Context, limit int) ([]model.Scan, error) {
	var result struct {
		Items []model.Scan `json:"items"`
	}
	path := "/api/scans/recent/"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}
