package scanner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openpantry/pantryscan/internal/barcode"
)

type fakeStopper struct {
	stops int
}

func (s *fakeStopper) Stop() { s.stops++ }

type fakePauser struct {
	pauses int
	err    error
}

func (p *fakePauser) Pause() error {
	p.pauses++
	return p.err
}

func TestCaptureRejectsNilSource(t *testing.T) {
	controller := NewController(&fakeProcessor{}, testLogger())
	capture := NewCapture(controller, NewFeedback(&bytes.Buffer{}), testLogger())

	if capture.FromCamera(context.Background(), nil, &fakeStopper{}) {
		t.Fatalf("capture with nil source reported success")
	}
	if controller.Err() == "" {
		t.Fatalf("no user-facing error for nil source")
	}
	if controller.Processing() {
		t.Fatalf("Processing() = true after capture returned")
	}
}

func TestCaptureSuccessPulsesAndStopsCamera(t *testing.T) {
	processor := &fakeProcessor{result: barcode.Result{Detected: true, Code: "1234"}}
	controller := NewController(processor, testLogger())
	feedback := NewFeedback(&bytes.Buffer{})
	defer feedback.Close()
	capture := NewCapture(controller, feedback, testLogger())
	stopper := &fakeStopper{}

	if !capture.FromCamera(context.Background(), &countingSource{}, stopper) {
		t.Fatalf("capture reported failure: %s", controller.Err())
	}
	if !feedback.Detected() {
		t.Fatalf("feedback not pulsed on detection")
	}
	if stopper.stops != 1 {
		t.Fatalf("camera stopped %d times, want 1", stopper.stops)
	}
	if controller.Processing() {
		t.Fatalf("Processing() = true after capture returned")
	}
}

func TestCaptureRejectsConcurrentCapture(t *testing.T) {
	processor := &blockingProcessor{
		calls:   make(chan struct{}, 2),
		release: make(chan struct{}),
		result:  barcode.Result{Detected: true, Code: "1234"},
	}
	controller := NewController(processor, testLogger())
	feedback := NewFeedback(&bytes.Buffer{})
	defer feedback.Close()
	capture := NewCapture(controller, feedback, testLogger())

	first := make(chan bool, 1)
	go func() {
		first <- capture.FromCamera(context.Background(), &countingSource{}, &fakeStopper{})
	}()
	<-processor.calls

	stopper := &fakeStopper{}
	if capture.FromCamera(context.Background(), &countingSource{}, stopper) {
		t.Fatalf("second capture reported success while first was in flight")
	}
	if got := controller.Err(); got != "A capture is already in progress." {
		t.Fatalf("Err() = %q", got)
	}
	if stopper.stops != 0 {
		t.Fatalf("second capture stopped the camera")
	}
	if len(processor.calls) != 0 {
		t.Fatalf("second capture issued a backend request")
	}

	close(processor.release)
	if !<-first {
		t.Fatalf("first capture reported failure: %s", controller.Err())
	}
}

func TestCaptureMissSetsRetryMessage(t *testing.T) {
	processor := &fakeProcessor{result: barcode.Result{Detected: false}}
	controller := NewController(processor, testLogger())
	capture := NewCapture(controller, NewFeedback(&bytes.Buffer{}), testLogger())
	stopper := &fakeStopper{}

	if capture.FromCamera(context.Background(), &countingSource{}, stopper) {
		t.Fatalf("miss reported success")
	}
	if got := controller.Err(); got != "Could not read the barcode. Please try again." {
		t.Fatalf("Err() = %q", got)
	}
	if stopper.stops != 0 {
		t.Fatalf("camera stopped on miss")
	}
}

func TestCaptureErrorSetsFailureMessage(t *testing.T) {
	processor := &fakeProcessor{err: errors.New("connection refused")}
	controller := NewController(processor, testLogger())
	capture := NewCapture(controller, NewFeedback(&bytes.Buffer{}), testLogger())

	if capture.FromCamera(context.Background(), &countingSource{}, &fakeStopper{}) {
		t.Fatalf("errored capture reported success")
	}
	got := controller.Err()
	if !strings.HasPrefix(got, "Failed to capture frame: ") {
		t.Fatalf("Err() = %q, want capture failure prefix", got)
	}
	if !strings.Contains(got, "connection refused") {
		t.Fatalf("Err() = %q does not carry the cause", got)
	}
}

func TestCaptureFromScannerPausesAndToleratesPauseFault(t *testing.T) {
	processor := &fakeProcessor{result: barcode.Result{Detected: true, Code: "1234"}}
	controller := NewController(processor, testLogger())
	feedback := NewFeedback(&bytes.Buffer{})
	defer feedback.Close()
	capture := NewCapture(controller, feedback, testLogger())
	stopper := &fakeStopper{}
	pauser := &fakePauser{err: errors.New("already paused")}

	if !capture.FromScanner(context.Background(), &countingSource{}, stopper, pauser) {
		t.Fatalf("capture reported failure despite detection: %s", controller.Err())
	}
	if pauser.pauses != 1 {
		t.Fatalf("scanner paused %d times, want 1", pauser.pauses)
	}
	if stopper.stops != 1 {
		t.Fatalf("stream stopped %d times, want 1", stopper.stops)
	}
	if controller.Err() != "" {
		t.Fatalf("pause fault surfaced to the user: %q", controller.Err())
	}
}
