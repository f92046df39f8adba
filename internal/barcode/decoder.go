// Package barcode extracts barcode payloads from captured camera frames.
//
// Two decoder backends exist: a Gemini-backed one matching the hosted
// deployment, and a local gozxing one for installs without an API key.
// Both report "no barcode in frame" as a non-error so callers can surface
// a soft retry message instead of a failure.
package barcode

import "context"

// Result is the outcome of decoding one frame.
type Result struct {
	Detected bool   `json:"detected"`
	Code     string `json:"barcode_code,omitempty"`
}

// Decoder extracts a barcode payload from a JPEG frame.
type Decoder interface {
	Decode(ctx context.Context, jpegFrame []byte) (Result, error)
}
