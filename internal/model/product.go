package model

import "time"

// Product is external product metadata keyed by UPC.
type Product struct {
	Barcode     string `json:"barcode"`
	Title       string `json:"title"`
	Brand       string `json:"brand"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Scan records one processed barcode frame, whatever its source
// (live capture upload or spool ingest).
type Scan struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Barcode   string    `json:"barcode"`
	Detected  bool      `json:"detected"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Scan sources.
const (
	ScanSourceUpload = "upload"
	ScanSourceSpool  = "spool"
)
