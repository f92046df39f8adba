package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/scanner/camera"
)

// throttleWindow is the minimum spacing between capture attempts. A
// rejected attempt performs no capture or network I/O.
const throttleWindow = 2000 * time.Millisecond

// BarcodeProcessor sends one captured frame to the backend for decoding.
type BarcodeProcessor interface {
	ProcessBarcode(ctx context.Context, imageBase64 string) (barcode.Result, error)
}

// Controller holds the scan-in-progress state shared by the capture paths:
// the last detected barcode, the throttle stamp, and the loading and
// processing flags the interactive workflow reads.
type Controller struct {
	mu         sync.Mutex
	processor  BarcodeProcessor
	logger     *slog.Logger
	now        func() time.Time
	lastAt     time.Time
	barcode    string
	detectedAt time.Time
	errMsg     string
	loading    bool
	processing bool
}

func NewController(processor BarcodeProcessor, logger *slog.Logger) *Controller {
	return &Controller{
		processor: processor,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessFrame grabs one frame from src, ships it to the backend, and
// records the decoded barcode. Attempts inside the throttle window, or
// while an earlier request is still in flight, are dropped before any
// frame is read: the return is (false, nil), matching a frame the backend
// could not read.
func (c *Controller) ProcessFrame(ctx context.Context, src camera.FrameSource, enc *camera.Encoder) (bool, error) {
	c.mu.Lock()
	now := c.now()
	if c.loading {
		c.mu.Unlock()
		return false, nil
	}
	if !c.lastAt.IsZero() && now.Sub(c.lastAt) < throttleWindow {
		c.mu.Unlock()
		return false, nil
	}
	c.lastAt = now
	c.loading = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	imageBase64, err := enc.Snapshot(src)
	if err != nil {
		return false, err
	}

	result, err := c.processor.ProcessBarcode(ctx, imageBase64)
	if err != nil {
		return false, err
	}
	if !result.Detected {
		return false, nil
	}

	c.mu.Lock()
	c.barcode = result.Code
	c.detectedAt = c.now()
	c.errMsg = ""
	c.mu.Unlock()
	c.logger.Info("barcode detected", "barcode", result.Code)
	return true, nil
}

// HandleDetection records a barcode decoded locally (library scanner path)
// without a backend round trip. The throttle window applies here too.
func (c *Controller) HandleDetection(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.lastAt.IsZero() && now.Sub(c.lastAt) < throttleWindow {
		return false
	}
	c.lastAt = now
	c.barcode = code
	c.detectedAt = now
	c.errMsg = ""
	return true
}

// Barcode returns the last detected code, empty when none.
func (c *Controller) Barcode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.barcode
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// beginProcessing raises the processing flag, refusing when a capture is
// already underway so two concurrent captures cannot race each other.
func (c *Controller) beginProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	c.processing = true
	return true
}

func (c *Controller) endProcessing() {
	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()
}

// Err returns the last user-visible capture error message.
func (c *Controller) Err() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

func (c *Controller) setErr(msg string) {
	c.mu.Lock()
	c.errMsg = msg
	c.mu.Unlock()
}

// ResetState returns the controller to its pre-scan state: barcode,
// throttle stamp, error message, and both flags cleared.
func (c *Controller) ResetState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.barcode = ""
	c.detectedAt = time.Time{}
	c.lastAt = time.Time{}
	c.errMsg = ""
	c.loading = false
	c.processing = false
}
