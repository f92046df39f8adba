package scanner

import (
	"context"
	"log/slog"

	"github.com/openpantry/pantryscan/internal/scanner/camera"
)

// CameraStopper releases whichever stream the frame came from once a
// barcode has been read.
type CameraStopper interface {
	Stop()
}

// Pauser suspends a decode loop without releasing its stream.
type Pauser interface {
	Pause() error
}

// Capture coordinates the manual "take a picture now" action for both the
// camera-preview path and the library-scanner path. Both funnel into one
// routine so the flags, error messages, and post-detection teardown behave
// identically.
type Capture struct {
	controller *Controller
	feedback   *Feedback
	encoder    *camera.Encoder
	logger     *slog.Logger
}

func NewCapture(controller *Controller, feedback *Feedback, logger *slog.Logger) *Capture {
	return &Capture{
		controller: controller,
		feedback:   feedback,
		encoder:    camera.NewEncoder(),
		logger:     logger,
	}
}

// FromCamera captures from the preview stream.
func (c *Capture) FromCamera(ctx context.Context, src camera.FrameSource, stopper CameraStopper) bool {
	return c.capture(ctx, src, stopper, nil)
}

// FromScanner captures from the library scanner's internal stream. On
// detection the scanner is paused in addition to the stream teardown; a
// pause failure is logged, not surfaced.
func (c *Capture) FromScanner(ctx context.Context, src camera.FrameSource, stopper CameraStopper, pauser Pauser) bool {
	return c.capture(ctx, src, stopper, pauser)
}

func (c *Capture) capture(ctx context.Context, src camera.FrameSource, stopper CameraStopper, pauser Pauser) bool {
	if !c.controller.beginProcessing() {
		c.controller.setErr("A capture is already in progress.")
		return false
	}
	defer c.controller.endProcessing()
	c.controller.setErr("")

	if src == nil || c.encoder == nil {
		c.controller.setErr("No camera stream available for capture.")
		return false
	}

	detected, err := c.controller.ProcessFrame(ctx, src, c.encoder)
	if err != nil {
		c.controller.setErr("Failed to capture frame: " + err.Error())
		return false
	}
	if !detected {
		c.controller.setErr("Could not read the barcode. Please try again.")
		return false
	}

	c.feedback.Pulse()
	if pauser != nil {
		if perr := pauser.Pause(); perr != nil {
			c.logger.Warn("scanner pause after capture failed", "err", perr)
		}
	}
	if stopper != nil {
		stopper.Stop()
	}
	return true
}
