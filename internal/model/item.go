package model

import (
	"strings"
	"time"
)

// Category classifies a pantry item.
type Category string

const (
	CategoryProduce    Category = "produce"
	CategoryDairy      Category = "dairy"
	CategoryMeat       Category = "meat"
	CategoryBakery     Category = "bakery"
	CategoryCanned     Category = "canned"
	CategoryFrozen     Category = "frozen"
	CategoryPantry     Category = "pantry"
	CategoryBeverages  Category = "beverages"
	CategorySnacks     Category = "snacks"
	CategoryCondiments Category = "condiments"
	CategoryOther      Category = "other"
)

// Categories lists all known item categories in display order.
func Categories() []Category {
	return []Category{
		CategoryProduce, CategoryDairy, CategoryMeat, CategoryBakery,
		CategoryCanned, CategoryFrozen, CategoryPantry, CategoryBeverages,
		CategorySnacks, CategoryCondiments, CategoryOther,
	}
}

// NormalizeCategory maps unknown or empty values to "other".
func NormalizeCategory(raw string) Category {
	candidate := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Categories() {
		if candidate == known {
			return known
		}
	}
	return CategoryOther
}

// Item is a pantry item identified by its barcode.
type Item struct {
	ID          int64     `json:"id"`
	Barcode     string    `json:"barcode"`
	Title       string    `json:"title"`
	Alias       string    `json:"alias"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UserItem links an item to a user at a location with a quantity.
type UserItem struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ItemID     int64     `json:"item_id"`
	LocationID int64     `json:"location_id"`
	Quantity   int       `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// InventoryEntry is a user item joined with its item and location names,
// the shape the dashboard consumes.
type InventoryEntry struct {
	Item     Item   `json:"item"`
	Location string `json:"location"`
	Quantity int    `json:"quantity"`
}

// Brand is a product brand captured from the product database.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Manufacturer is a product manufacturer captured from the product
// database. Recorded alongside brands; nothing in the API surfaces it yet.
type Manufacturer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
