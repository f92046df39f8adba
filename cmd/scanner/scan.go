package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/config"
	"github.com/openpantry/pantryscan/internal/events"
	"github.com/openpantry/pantryscan/internal/inventory"
	"github.com/openpantry/pantryscan/internal/scanner"
	"github.com/openpantry/pantryscan/internal/scanner/camera"
	"github.com/openpantry/pantryscan/internal/scanner/client"
	"github.com/openpantry/pantryscan/internal/scanner/detect"
	"github.com/openpantry/pantryscan/internal/scanner/workflow"
)

// runScanLoop wires the capture stack together and drives the prompt loop
// until the context is cancelled.
func runScanLoop(ctx context.Context, cfg config.Scanner, token string, logger *slog.Logger) error {
	api := client.New(cfg.ServerURL, token)

	controller := scanner.NewController(api, logger)
	feedback := scanner.NewFeedback(os.Stdout)
	capture := scanner.NewCapture(controller, feedback, logger)

	probe := func() error { return detect.ProbeNative(detect.DefaultNativeDecoder) }
	session := camera.NewSession(cfg.DevicePath, camera.OpenV4L2, probe, logger)
	var libScanner *detect.LibraryScanner
	libScanner = detect.NewLibraryScanner(cfg.DevicePath, camera.OpenV4L2, barcode.NewLocalDecoder(logger), func(code string) {
		if !controller.HandleDetection(code) {
			// Throttled duplicate: resume the decode loop instead of
			// leaving it paused on a code nobody was asked to confirm.
			if err := libScanner.Resume(); err != nil {
				logger.Warn("scanner resume failed", "err", err)
			}
			return
		}
		feedback.Pulse()
		fmt.Printf("\nScanner read: %s (press enter to confirm)\n", code)
	}, logger)

	flow := workflow.New(api, session, libScanner, controller, capture, feedback, logger)
	defer flow.Shutdown()
	flow.Authenticate(token)

	watcher := client.NewWatcher(cfg.ServerURL, token, logger)
	go watcher.Run(ctx, func(event events.Event) {
		logger.Info("inventory updated", "type", event.Type, "title", event.Title)
	})

	fmt.Println("Press enter to start the camera.")
	reader := bufio.NewReader(os.Stdin)
	if _, err := readLine(ctx, reader); err != nil {
		return err
	}
	if err := flow.RequestCamera(ctx); err != nil {
		return fmt.Errorf("camera unavailable: %w", err)
	}
	fmt.Printf("Camera ready (%s). Press enter to capture, or type q to quit.\n", session.Method())

	for {
		if ctx.Err() != nil {
			return nil
		}
		switch flow.State() {
		case workflow.StateScanning:
			line, err := readLine(ctx, reader)
			if err != nil {
				return nil
			}
			if strings.TrimSpace(line) == "q" {
				return nil
			}
			code, err := flow.CaptureNow(ctx)
			if err != nil {
				fmt.Println(err.Error())
				continue
			}
			fmt.Printf("Read barcode: %s\n", code)
		case workflow.StateBarcodeConfirmed:
			if !promptYes(ctx, reader, fmt.Sprintf("Use barcode %s? [Y/n/r=rescan] ", controller.Barcode())) {
				if err := flow.Retry(ctx); err != nil {
					return fmt.Errorf("rescan: %w", err)
				}
				continue
			}
			result, err := flow.ConfirmBarcode(ctx)
			if err != nil {
				fmt.Println("Lookup failed:", err)
				if err := flow.Retry(ctx); err != nil {
					return err
				}
				continue
			}
			if result.ProductData != nil {
				fmt.Printf("Found product: %s (%s)\n", result.ProductData.Title, result.ProductData.Brand)
			} else {
				fmt.Println("Unknown product, enter details manually.")
			}
		case workflow.StateEditingItem:
			if err := editAndSave(ctx, reader, flow); err != nil {
				fmt.Println("Save failed:", err)
				if err := flow.Retry(ctx); err != nil {
					return err
				}
			}
		case workflow.StateSaved:
			// Block until the hold expires and the workflow rearms itself.
			flow.AwaitChange(ctx, workflow.StateSaved)
		default:
			if err := flow.Retry(ctx); err != nil {
				if errors.Is(err, workflow.ErrNotAuthenticated) {
					return err
				}
				fmt.Println("Camera unavailable:", err)
				if !promptYes(ctx, reader, "Retry camera? [Y/n] ") {
					return nil
				}
			}
		}
	}
}

// editAndSave prompts for the item fields and the destination location,
// then saves through the workflow.
func editAndSave(ctx context.Context, reader *bufio.Reader, flow *workflow.Workflow) error {
	lookup := flow.Lookup()
	input := inventory.CreateInput{
		Barcode:     lookup.Item.Barcode,
		Title:       lookup.Item.Title,
		Alias:       lookup.Item.Alias,
		Description: lookup.Item.Description,
		Category:    string(lookup.Item.Category),
	}

	input.Title = promptDefault(ctx, reader, "Title", input.Title)
	input.Alias = promptDefault(ctx, reader, "Alias", input.Alias)
	input.Category = promptDefault(ctx, reader, "Category", input.Category)

	add := inventory.AddInput{}
	locations, err := flow.Locations(ctx)
	if err == nil && len(locations) > 0 {
		fmt.Println("Locations:")
		for _, location := range locations {
			fmt.Printf("  %d: %s\n", location.ID, location.Name)
		}
		raw := promptDefault(ctx, reader, "Location id (or new name)", "")
		if id, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && id > 0 {
			add.LocationID = id
		} else {
			add.LocationName = raw
		}
	} else {
		add.LocationName = promptDefault(ctx, reader, "Location name", "Pantry")
	}

	result, err := flow.Save(ctx, input, add)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %s to %s (quantity %d). Re-arming scanner...\n", result.Item.Title, result.Location.Name, result.Quantity)
	return nil
}

func promptDefault(ctx context.Context, reader *bufio.Reader, label, fallback string) string {
	if fallback != "" {
		fmt.Printf("%s [%s]: ", label, fallback)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, err := readLine(ctx, reader)
	if err != nil {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}

func promptYes(ctx context.Context, reader *bufio.Reader, label string) bool {
	fmt.Print(label)
	line, err := readLine(ctx, reader)
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "" || answer == "y" || answer == "yes"
}

// readLine reads one line from stdin, abandoning the read when the
// context is cancelled.
func readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	type lineResult struct {
		line string
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-ch:
		return result.line, result.err
	}
}
