package detect

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/scanner/camera"
)

// ErrMountMissing is returned when the scanner's device node does not
// exist. Fatal for the Start call; never retried internally.
var ErrMountMissing = errors.New("scanner mount point does not exist")

// ErrNoInstance is returned by Pause when no live scanner instance exists.
var ErrNoInstance = errors.New("no live scanner instance")

// FrameDecoder reads a barcode out of a decoded image.
type FrameDecoder interface {
	DecodeImage(img image.Image) (barcode.Result, error)
}

const (
	// Continuous decode rate and the default detection box when the
	// measured frame aspect is not yet known.
	decodeFPS        = 10
	defaultBoxWidth  = 640
	defaultBoxHeight = 480
	boxFraction      = 0.7
)

type instanceState int

const (
	stateUninitialized instanceState = iota
	stateInitializing
	stateRunning
	statePaused
	stateCleared
)

// instance owns one live decode loop. At most one exists per scanner.
type instance struct {
	device camera.Device
	stop   chan struct{}
	done   chan struct{}
	paused bool
	state  instanceState
}

// LibraryScanner wraps the bundled decoding library's lifecycle: continuous
// decoding against its own camera stream, pause-on-detect, and teardown
// that always clears the in-memory instance.
type LibraryScanner struct {
	mu         sync.Mutex
	open       camera.Opener
	devicePath string
	decoder    FrameDecoder
	onDetect   func(code string)
	logger     *slog.Logger

	inst     *instance
	starting bool
}

func NewLibraryScanner(devicePath string, open camera.Opener, decoder FrameDecoder, onDetect func(code string), logger *slog.Logger) *LibraryScanner {
	return &LibraryScanner{
		open:       open,
		devicePath: devicePath,
		decoder:    decoder,
		onDetect:   onDetect,
		logger:     logger,
	}
}

// Start is idempotent: an existing instance or an in-progress start returns
// immediately without creating a second decode loop. The device node must
// already exist; its absence is fatal for this call.
func (s *LibraryScanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.inst != nil || s.starting {
		s.mu.Unlock()
		return nil
	}
	s.starting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.starting = false
		s.mu.Unlock()
	}()

	if _, err := os.Stat(s.devicePath); err != nil {
		return fmt.Errorf("%w: %s", ErrMountMissing, s.devicePath)
	}

	device, err := s.open(s.devicePath, defaultBoxWidth, defaultBoxHeight)
	if err != nil {
		return fmt.Errorf("start library scanner: %w", err)
	}

	inst := &instance{
		device: device,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  stateInitializing,
	}
	s.mu.Lock()
	s.inst = inst
	inst.state = stateRunning
	s.mu.Unlock()

	go s.decodeLoop(ctx, inst)
	s.logger.Info("library scanner running", "device", s.devicePath, "fps", decodeFPS)
	return nil
}

// decodeLoop reads frames at the configured rate, crops to the detection
// box, and decodes. On detection it pauses itself and fires the callback,
// so the same code is not immediately re-reported.
func (s *LibraryScanner) decodeLoop(ctx context.Context, inst *instance) {
	defer close(inst.done)
	ticker := time.NewTicker(time.Second / decodeFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-inst.stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		paused := inst.paused
		s.mu.Unlock()
		if paused {
			continue
		}

		frame, err := inst.device.NextFrame(time.Second / decodeFPS * 2)
		if err != nil {
			if errors.Is(err, camera.ErrFrameTimeout) {
				continue
			}
			s.logger.Warn("library scanner frame read failed", "err", err)
			continue
		}
		img, err := camera.ToImage(frame)
		if err != nil {
			s.logger.Warn("library scanner frame convert failed", "err", err)
			continue
		}

		result, err := s.decoder.DecodeImage(cropDetectionBox(img))
		if err != nil || !result.Detected {
			continue
		}

		// Pause before the callback so the loop does not re-trigger on the
		// same code, and so a callback declining the code can Resume.
		// Detection already succeeded, so a pause fault is only logged.
		if err := s.Pause(); err != nil {
			s.logger.Warn("scanner pause after detection failed", "err", err)
		}
		if s.onDetect != nil {
			s.onDetect(result.Code)
		}
	}
}

// cropDetectionBox narrows decoding to a centered box sized from the
// measured frame aspect, falling back to the fixed default box.
func cropDetectionBox(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	boxW, boxH := defaultBoxWidth, defaultBoxHeight
	if width > 0 && height > 0 {
		boxW = int(float64(width) * boxFraction)
		boxH = int(float64(height) * boxFraction)
	}
	if boxW >= width && boxH >= height {
		return img
	}
	x0 := bounds.Min.X + (width-boxW)/2
	y0 := bounds.Min.Y + (height-boxH)/2
	rect := image.Rect(x0, y0, x0+boxW, y0+boxH)

	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if sub, ok := img.(subImager); ok {
		return sub.SubImage(rect)
	}
	return img
}

// Pause suspends the decode loop without releasing the camera.
func (s *LibraryScanner) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil || s.inst.state == stateCleared {
		return ErrNoInstance
	}
	s.inst.paused = true
	s.inst.state = statePaused
	return nil
}

// Resume restarts a paused decode loop.
func (s *LibraryScanner) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil || s.inst.state == stateCleared {
		return ErrNoInstance
	}
	s.inst.paused = false
	s.inst.state = stateRunning
	return nil
}

// Stop halts the decode loop and releases the device. Faults from an
// already-stopped or already-cleared instance are tolerated and logged;
// the stored instance reference is cleared regardless, so a subsequent
// Start is always possible.
func (s *LibraryScanner) Stop() {
	s.mu.Lock()
	inst := s.inst
	s.inst = nil
	s.mu.Unlock()
	if inst == nil {
		return
	}

	select {
	case <-inst.stop:
		// Already signalled; redundant cleanup.
	default:
		close(inst.stop)
	}
	select {
	case <-inst.done:
	case <-time.After(time.Second):
		s.logger.Warn("library scanner loop did not exit promptly")
	}

	if err := inst.device.Close(); err != nil {
		s.logger.Warn("library scanner device close failed", "err", err)
	}
	inst.state = stateCleared
}

// Source exposes the scanner's internal stream for manual capture on the
// library path. Nil when no instance is live.
func (s *LibraryScanner) Source() camera.FrameSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inst == nil {
		return nil
	}
	return s.inst.device
}

// Running reports whether a live instance exists.
func (s *LibraryScanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inst != nil
}
