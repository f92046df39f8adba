// Package inventory implements the item and location use-cases behind the
// HTTP API: UPC lookup-and-create, manual item creation, linking items to
// users with quantities, and location management.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openpantry/pantryscan/internal/events"
	"github.com/openpantry/pantryscan/internal/model"
	"github.com/openpantry/pantryscan/internal/product"
)

// ErrNameRequired is returned for create calls with a blank name.
var ErrNameRequired = errors.New("name is required")

// ErrBarcodeRequired is returned for item creation without a barcode.
var ErrBarcodeRequired = errors.New("barcode is required")

// Repository defines the storage operations the service consumes.
type Repository interface {
	GetItemByBarcode(ctx context.Context, barcode string) (model.Item, error)
	GetItemByID(ctx context.Context, id int64) (model.Item, error)
	GetOrCreateItem(ctx context.Context, item model.Item) (model.Item, bool, error)
	GetOrCreateBrand(ctx context.Context, name string) (model.Brand, error)
	AddToUser(ctx context.Context, userID, itemID, locationID int64) (int, error)
	ListInventory(ctx context.Context, userID int64) ([]model.InventoryEntry, error)
	ListLocations(ctx context.Context, userID int64) ([]model.Location, error)
	GetLocation(ctx context.Context, userID, id int64) (model.Location, error)
	GetOrCreateLocation(ctx context.Context, userID int64, name string) (model.Location, bool, error)
}

// ProductLookup supplies external product metadata by UPC.
type ProductLookup interface {
	Lookup(ctx context.Context, upc string) (model.Product, error)
}

// Broadcaster pushes inventory events to subscribers.
type Broadcaster interface {
	Broadcast(event events.Event)
}

type Service struct {
	repo     Repository
	products ProductLookup
	hub      Broadcaster
	logger   *slog.Logger
}

func New(repo Repository, products ProductLookup, hub Broadcaster, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, hub: hub, logger: logger}
}

// LookupResult is the response of a UPC lookup-and-create.
type LookupResult struct {
	Created     bool           `json:"created"`
	Item        model.Item     `json:"item"`
	ProductData *model.Product `json:"product_data"`
}

// LookupUPC fetches external metadata for the code and creates the item
// unless it already exists. A missing product propagates product.ErrNotFound
// so the handler can answer 404 while the capture UI still lets the user
// proceed with manual entry.
func (s *Service) LookupUPC(ctx context.Context, upc string) (LookupResult, error) {
	upc = strings.TrimSpace(upc)
	if upc == "" {
		return LookupResult{}, ErrBarcodeRequired
	}

	meta, err := s.products.Lookup(ctx, upc)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return LookupResult{}, err
		}
		return LookupResult{}, fmt.Errorf("product lookup: %w", err)
	}

	if meta.Brand != "" {
		if _, err := s.repo.GetOrCreateBrand(ctx, meta.Brand); err != nil {
			s.logger.Warn("brand upsert failed", "brand", meta.Brand, "err", err)
		}
	}

	item, created, err := s.repo.GetOrCreateItem(ctx, model.Item{
		Barcode:     upc,
		Title:       meta.Title,
		Description: meta.Description,
		Category:    model.NormalizeCategory(meta.Category),
	})
	if err != nil {
		return LookupResult{}, err
	}
	if created {
		s.logger.Info("item created from product lookup", "barcode", upc, "title", item.Title)
	}
	return LookupResult{Created: created, Item: item, ProductData: &meta}, nil
}

// LookupProduct returns external metadata without touching item storage.
func (s *Service) LookupProduct(ctx context.Context, upc string) (model.Product, error) {
	upc = strings.TrimSpace(upc)
	if upc == "" {
		return model.Product{}, ErrBarcodeRequired
	}
	return s.products.Lookup(ctx, upc)
}

// CreateInput is a manual item creation request.
type CreateInput struct {
	Barcode     string `json:"barcode"`
	Title       string `json:"title"`
	Alias       string `json:"alias"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// CreateItem creates an item from user-entered fields. An existing barcode
// returns the existing item with Created=false, matching lookup semantics.
func (s *Service) CreateItem(ctx context.Context, input CreateInput) (LookupResult, error) {
	if strings.TrimSpace(input.Barcode) == "" {
		return LookupResult{}, ErrBarcodeRequired
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return LookupResult{}, ErrNameRequired
	}
	item, created, err := s.repo.GetOrCreateItem(ctx, model.Item{
		Barcode:     strings.TrimSpace(input.Barcode),
		Title:       title,
		Alias:       strings.TrimSpace(input.Alias),
		Description: strings.TrimSpace(input.Description),
		Category:    model.NormalizeCategory(input.Category),
	})
	if err != nil {
		return LookupResult{}, err
	}
	return LookupResult{Created: created, Item: item}, nil
}

// AddInput selects where the item is stored: an existing location by id or
// a location by name, created on first use. Empty input defaults the name.
type AddInput struct {
	LocationID   int64  `json:"location_id"`
	LocationName string `json:"location_name"`
}

// AddResult reports the resulting quantity after linking.
type AddResult struct {
	Item     model.Item     `json:"item"`
	Location model.Location `json:"location"`
	Quantity int            `json:"quantity"`
}

// AddToUser links an item to the user at a location, creating the link at
// quantity 1 or incrementing it, then broadcasts the inventory event.
func (s *Service) AddToUser(ctx context.Context, userID, itemID int64, input AddInput) (AddResult, error) {
	item, err := s.repo.GetItemByID(ctx, itemID)
	if err != nil {
		return AddResult{}, err
	}

	var location model.Location
	switch {
	case input.LocationID > 0:
		location, err = s.repo.GetLocation(ctx, userID, input.LocationID)
	default:
		name := strings.TrimSpace(input.LocationName)
		if name == "" {
			name = "Pantry"
		}
		location, _, err = s.repo.GetOrCreateLocation(ctx, userID, name)
	}
	if err != nil {
		return AddResult{}, err
	}

	quantity, err := s.repo.AddToUser(ctx, userID, item.ID, location.ID)
	if err != nil {
		return AddResult{}, err
	}

	if s.hub != nil {
		s.hub.Broadcast(events.Event{
			Type:    events.TypeItemAdded,
			UserID:  userID,
			Barcode: item.Barcode,
			Title:   item.Title,
			At:      time.Now().UTC(),
		})
	}
	return AddResult{Item: item, Location: location, Quantity: quantity}, nil
}

// ListInventory returns the user's inventory entries.
func (s *Service) ListInventory(ctx context.Context, userID int64) ([]model.InventoryEntry, error) {
	return s.repo.ListInventory(ctx, userID)
}

// ListLocations returns the user's locations ordered by name.
func (s *Service) ListLocations(ctx context.Context, userID int64) ([]model.Location, error) {
	return s.repo.ListLocations(ctx, userID)
}

// CreateLocation creates a location for the user unless the name exists.
func (s *Service) CreateLocation(ctx context.Context, userID int64, name string) (model.Location, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Location{}, false, ErrNameRequired
	}
	return s.repo.GetOrCreateLocation(ctx, userID, name)
}
