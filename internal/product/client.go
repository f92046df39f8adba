// Package product looks up external product metadata by UPC.
package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openpantry/pantryscan/internal/model"
)

// ErrNotFound is returned when the product database has no match for a UPC.
var ErrNotFound = errors.New("product not found")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.upcdatabase.org"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type productResponse struct {
	Success     bool   `json:"success"`
	Barcode     string `json:"barcode"`
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Lookup fetches product metadata for a UPC. A missing product is reported
// as ErrNotFound, not a transport error.
func (c *Client) Lookup(ctx context.Context, upc string) (model.Product, error) {
	endpoint := c.baseURL + "/product/" + url.PathEscape(upc)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Product{}, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Product{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.Product{}, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return model.Product{}, fmt.Errorf("product lookup status %d: %s", resp.StatusCode, string(body))
	}

	var payload productResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.Product{}, err
	}
	if !payload.Success || payload.Title == "" {
		return model.Product{}, ErrNotFound
	}
	return model.Product{
		Barcode:     upc,
		Title:       payload.Title,
		Brand:       payload.Brand,
		Description: payload.Description,
		Category:    payload.Category,
	}, nil
}
