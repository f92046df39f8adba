// Package detect holds the barcode detection strategies of the scanner
// agent: probing for a native environment decoder, and the bundled
// library scanner used when the probe fails.
package detect

import (
	"fmt"
	"os/exec"
)

// DefaultNativeDecoder is the environment decoder probed for the native
// detection path.
const DefaultNativeDecoder = "zbarimg"

// ProbeNative attempts to instantiate the native detection capability. The
// capability exists when the environment decoder is present on PATH; any
// failure means the caller should fall back to the library scanner.
func ProbeNative(decoder string) error {
	if decoder == "" {
		decoder = DefaultNativeDecoder
	}
	if _, err := exec.LookPath(decoder); err != nil {
		return fmt.Errorf("native detector unavailable: %w", err)
	}
	return nil
}
