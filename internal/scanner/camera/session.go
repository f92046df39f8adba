package camera

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DetectionMethod is the strategy selected for a camera session. Exactly
// one concrete method is chosen per successful Initialize and it never
// changes until the session is torn down.
type DetectionMethod string

const (
	MethodUndetermined DetectionMethod = "undetermined"
	MethodNative       DetectionMethod = "native-detector"
	MethodLibrary      DetectionMethod = "library-scanner"
)

// Probe attempts to instantiate the native detection capability. A nil
// error means the native strategy is usable in this environment.
type Probe func() error

const (
	// Requested acquisition size; the device negotiates the nearest match.
	targetWidth  = 1280
	targetHeight = 720

	firstFrameWait = 3 * time.Second
)

// Session represents one live acquisition of a video device.
type Session struct {
	mu         sync.Mutex
	open       Opener
	probe      Probe
	devicePath string
	logger     *slog.Logger

	device Device
	active bool
	errMsg string
	method DetectionMethod
}

func NewSession(devicePath string, open Opener, probe Probe, logger *slog.Logger) *Session {
	return &Session{
		open:       open,
		probe:      probe,
		devicePath: devicePath,
		logger:     logger,
		method:     MethodUndetermined,
	}
}

// Initialize acquires the camera and picks the detection strategy. It never
// returns an error: acquisition failure is recorded as the session's
// user-facing error string and is not retried. When the native capability
// cannot be instantiated the just-acquired stream is released and the
// method is set to library-scanner, whose adapter opens its own stream.
func (s *Session) Initialize(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.errMsg = ""
	device, err := s.open(s.devicePath, targetWidth, targetHeight)
	if err != nil {
		s.errMsg = "Unable to access the camera: " + err.Error()
		s.logger.Warn("camera acquisition failed", "device", s.devicePath, "err", err)
		return
	}

	if err := s.probe(); err != nil {
		// Native capability absent; release our stream and let the
		// library scanner request its own.
		s.logger.Info("native detector unavailable, falling back to library scanner", "err", err)
		if closeErr := device.Close(); closeErr != nil {
			s.logger.Warn("stream release failed", "err", closeErr)
		}
		s.method = MethodLibrary
		return
	}

	// Active only once frames actually flow, not merely on open. This
	// avoids handing a black frame to the first capture.
	if _, err := device.NextFrame(firstFrameWait); err != nil {
		s.errMsg = "Camera stream produced no frames: " + err.Error()
		s.logger.Warn("camera produced no frames", "device", s.devicePath, "err", err)
		if closeErr := device.Close(); closeErr != nil {
			s.logger.Warn("stream release failed", "err", closeErr)
		}
		return
	}

	if err := ctx.Err(); err != nil {
		_ = device.Close()
		return
	}

	s.device = device
	s.active = true
	s.method = MethodNative
	s.logger.Info("camera session active", "device", s.devicePath, "method", string(MethodNative))
}

// Stop releases the stream and marks the session inactive. Safe to call
// repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		if err := s.device.Close(); err != nil {
			s.logger.Warn("camera close failed", "err", err)
		}
		s.device = nil
	}
	s.active = false
}

// Reset stops the session and clears strategy and error so a fresh
// Initialize behaves like a first-time call.
func (s *Session) Reset() {
	s.Stop()
	s.mu.Lock()
	s.method = MethodUndetermined
	s.errMsg = ""
	s.mu.Unlock()
}

// Active reports whether frames are flowing.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Err returns the user-facing acquisition error, if any.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Method returns the detection strategy chosen by Initialize.
func (s *Session) Method() DetectionMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// Source returns the live frame source for manual capture, nil when the
// session is not active.
func (s *Session) Source() FrameSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return nil
	}
	return s.device
}
