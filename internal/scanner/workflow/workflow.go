// Package workflow drives the interactive scan-and-save loop of the
// scanner agent: camera request, barcode capture, confirmation, item
// lookup or manual entry, and the save that returns the operator to
// scanning. Transitions are plain method calls so the terminal frontend
// stays a thin prompt loop.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/model"
	"github.com/openpantry/pantryscan/internal/scanner"
	"github.com/openpantry/pantryscan/internal/scanner/camera"
	"github.com/openpantry/pantryscan/internal/scanner/client"
)

// State names one step of the scan-and-save loop.
type State string

const (
	StateUnauthenticated    State = "unauthenticated"
	StateAwaitingCamera     State = "awaiting-camera-request"
	StateInitializingCamera State = "initializing-camera"
	StateScanning           State = "scanning"
	StateBarcodeConfirmed   State = "barcode-confirmed"
	StateEditingItem        State = "editing-item"
	StateSaved              State = "saved"
)

// ErrNotAuthenticated gates every camera and save action behind a token.
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrInvalidTransition is returned when an action does not apply to the
// current state.
var ErrInvalidTransition = errors.New("action not valid in current state")

// savedHold is how long the save confirmation stays up before the loop
// returns to scanning on its own.
const savedHold = 3 * time.Second

// Backend is the slice of server calls the workflow performs.
type Backend interface {
	LookupItem(ctx context.Context, code string) (inventory.LookupResult, error)
	CreateItem(ctx context.Context, input inventory.CreateInput) (inventory.LookupResult, error)
	AddToUser(ctx context.Context, itemID int64, input inventory.AddInput) (inventory.AddResult, error)
	Locations(ctx context.Context) ([]model.Location, error)
}

// CameraSession is the camera lifecycle the workflow controls.
type CameraSession interface {
	Initialize(ctx context.Context)
	Stop()
	Reset()
	Active() bool
	Err() string
	Method() camera.DetectionMethod
	Source() camera.FrameSource
}

// LibraryScanner is the fallback decode loop the workflow controls when
// the native path is unavailable.
type LibraryScanner interface {
	Start(ctx context.Context) error
	Stop()
	Pause() error
	Source() camera.FrameSource
	Running() bool
}

// Workflow is the agent's scan-and-save state machine. All methods are
// safe for the prompt goroutine plus the auto-reset timer.
type Workflow struct {
	mu         sync.Mutex
	backend    Backend
	session    CameraSession
	scanner    LibraryScanner
	controller *scanner.Controller
	capture    *scanner.Capture
	feedback   *scanner.Feedback
	logger     *slog.Logger

	state        State
	stateChanged chan struct{}
	token        string
	lookup       inventory.LookupResult
	saveResult   inventory.AddResult
	hold         time.Duration
	holdTimer    *time.Timer
}

func New(backend Backend, session CameraSession, libScanner LibraryScanner, controller *scanner.Controller, capture *scanner.Capture, feedback *scanner.Feedback, logger *slog.Logger) *Workflow {
	return &Workflow{
		backend:      backend,
		session:      session,
		scanner:      libScanner,
		controller:   controller,
		capture:      capture,
		feedback:     feedback,
		logger:       logger,
		state:        StateUnauthenticated,
		stateChanged: make(chan struct{}),
		hold:         savedHold,
	}
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// setState records the new state and wakes AwaitChange waiters. Callers
// hold w.mu.
func (w *Workflow) setState(s State) {
	w.state = s
	close(w.stateChanged)
	w.stateChanged = make(chan struct{})
}

// AwaitChange blocks until the workflow leaves from, returning the new
// state. On cancellation it returns the state as last observed.
func (w *Workflow) AwaitChange(ctx context.Context, from State) State {
	for {
		w.mu.Lock()
		if w.state != from {
			current := w.state
			w.mu.Unlock()
			return current
		}
		changed := w.stateChanged
		w.mu.Unlock()
		select {
		case <-ctx.Done():
			return from
		case <-changed:
		}
	}
}

// Authenticate records the bearer token and unlocks the camera request.
func (w *Workflow) Authenticate(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.token = token
	if w.state == StateUnauthenticated {
		w.setState(StateAwaitingCamera)
	}
}

// RequestCamera starts the camera session. On a denied or failed camera
// the session keeps its error message and the state returns to awaiting,
// so the operator can retry. When the native detector probe fails the
// session has already fallen back to the library scanner method and the
// fallback loop is started here.
func (w *Workflow) RequestCamera(ctx context.Context) error {
	w.mu.Lock()
	if w.token == "" {
		w.mu.Unlock()
		return ErrNotAuthenticated
	}
	if w.state != StateAwaitingCamera {
		w.mu.Unlock()
		return ErrInvalidTransition
	}
	w.setState(StateInitializingCamera)
	w.mu.Unlock()

	w.session.Initialize(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if msg := w.session.Err(); msg != "" {
		w.setState(StateAwaitingCamera)
		return errors.New(msg)
	}
	if w.session.Method() == camera.MethodLibrary {
		if err := w.scanner.Start(ctx); err != nil {
			w.setState(StateAwaitingCamera)
			return err
		}
	}
	w.setState(StateScanning)
	return nil
}

// CaptureNow performs the manual capture on whichever path is live. On a
// read the state advances to barcode-confirmed; otherwise the controller
// holds the user-visible message and scanning continues.
func (w *Workflow) CaptureNow(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.state != StateScanning {
		w.mu.Unlock()
		return "", ErrInvalidTransition
	}
	method := w.session.Method()
	w.mu.Unlock()

	// The library scanner may have already decoded a code in its
	// continuous loop; confirm it instead of capturing another frame.
	if method == camera.MethodLibrary && w.controller.Barcode() != "" {
		w.scanner.Stop()
		w.mu.Lock()
		w.setState(StateBarcodeConfirmed)
		code := w.controller.Barcode()
		w.mu.Unlock()
		return code, nil
	}

	var detected bool
	switch method {
	case camera.MethodLibrary:
		detected = w.capture.FromScanner(ctx, w.scanner.Source(), stopperFunc(w.scanner.Stop), w.scanner)
	default:
		detected = w.capture.FromCamera(ctx, w.session.Source(), stopperFunc(w.session.Stop))
	}
	if !detected {
		return "", errors.New(w.controller.Err())
	}

	w.mu.Lock()
	w.setState(StateBarcodeConfirmed)
	code := w.controller.Barcode()
	w.mu.Unlock()
	return code, nil
}

// ConfirmBarcode accepts the read code and runs the server-side lookup.
// A known product lands in editing with fields prefilled; an unknown one
// lands in editing with only the barcode set.
func (w *Workflow) ConfirmBarcode(ctx context.Context) (inventory.LookupResult, error) {
	w.mu.Lock()
	if w.state != StateBarcodeConfirmed {
		w.mu.Unlock()
		return inventory.LookupResult{}, ErrInvalidTransition
	}
	code := w.controller.Barcode()
	w.mu.Unlock()

	result, err := w.backend.LookupItem(ctx, code)
	if err != nil && !errors.Is(err, client.ErrProductNotFound) {
		return inventory.LookupResult{}, err
	}
	if errors.Is(err, client.ErrProductNotFound) {
		result = inventory.LookupResult{Item: model.Item{Barcode: code}}
	}

	w.mu.Lock()
	w.lookup = result
	w.setState(StateEditingItem)
	w.mu.Unlock()
	return result, nil
}

// Lookup returns the pending lookup result while editing.
func (w *Workflow) Lookup() inventory.LookupResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lookup
}

// Locations proxies the location list for the editing prompt.
func (w *Workflow) Locations(ctx context.Context) ([]model.Location, error) {
	return w.backend.Locations(ctx)
}

// Save persists the edited item and links it to the operator's inventory,
// then shows the confirmation and schedules the return to scanning.
func (w *Workflow) Save(ctx context.Context, item inventory.CreateInput, add inventory.AddInput) (inventory.AddResult, error) {
	w.mu.Lock()
	if w.state != StateEditingItem {
		w.mu.Unlock()
		return inventory.AddResult{}, ErrInvalidTransition
	}
	itemID := w.lookup.Item.ID
	w.mu.Unlock()

	if itemID == 0 {
		created, err := w.backend.CreateItem(ctx, item)
		if err != nil {
			return inventory.AddResult{}, err
		}
		itemID = created.Item.ID
	}

	result, err := w.backend.AddToUser(ctx, itemID, add)
	if err != nil {
		return inventory.AddResult{}, err
	}

	w.mu.Lock()
	w.saveResult = result
	w.setState(StateSaved)
	if w.holdTimer != nil {
		w.holdTimer.Stop()
	}
	w.holdTimer = time.AfterFunc(w.hold, w.returnToScanning)
	w.mu.Unlock()
	w.logger.Info("item saved", "barcode", result.Item.Barcode, "location", result.Location.Name, "quantity", result.Quantity)
	return result, nil
}

// returnToScanning resets the scan state after the save confirmation and
// rearms whichever capture path the session selected.
func (w *Workflow) returnToScanning() {
	w.mu.Lock()
	if w.state != StateSaved {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	w.rearm(context.Background())
}

// Retry abandons the current scan and returns to a first-time scanning
// state: controller, feedback, and camera all reset.
func (w *Workflow) Retry(ctx context.Context) error {
	w.mu.Lock()
	if w.token == "" {
		w.mu.Unlock()
		return ErrNotAuthenticated
	}
	w.mu.Unlock()
	return w.rearm(ctx)
}

func (w *Workflow) rearm(ctx context.Context) error {
	w.controller.ResetState()
	w.feedback.Reset()
	w.scanner.Stop()
	w.session.Reset()

	w.mu.Lock()
	w.lookup = inventory.LookupResult{}
	w.saveResult = inventory.AddResult{}
	w.setState(StateInitializingCamera)
	w.mu.Unlock()

	w.session.Initialize(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if msg := w.session.Err(); msg != "" {
		w.setState(StateAwaitingCamera)
		return errors.New(msg)
	}
	if w.session.Method() == camera.MethodLibrary {
		if err := w.scanner.Start(ctx); err != nil {
			w.setState(StateAwaitingCamera)
			return err
		}
	}
	w.setState(StateScanning)
	return nil
}

// Shutdown releases the camera and fallback scanner and cancels timers.
func (w *Workflow) Shutdown() {
	w.mu.Lock()
	if w.holdTimer != nil {
		w.holdTimer.Stop()
		w.holdTimer = nil
	}
	w.mu.Unlock()
	w.scanner.Stop()
	w.session.Stop()
	w.feedback.Close()
}

type stopperFunc func()

func (f stopperFunc) Stop() { f() }
