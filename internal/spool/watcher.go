// Package spool ingests barcode frames dropped into a directory as image
// files. Devices without a live upload path (or test fixtures) can write
// JPEGs into the spool; each file runs through the same decoder as an
// uploaded frame and the outcome is recorded.
package spool

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/openpantry/pantryscan/internal/barcode"
	"github.com/openpantry/pantryscan/internal/model"
)

// ScanRecorder persists spool scan outcomes.
type ScanRecorder interface {
	InsertScan(ctx context.Context, scan model.Scan) error
}

type Watcher struct {
	dir     string
	decoder barcode.Decoder
	scans   ScanRecorder
	logger  *slog.Logger
}

func NewWatcher(dir string, decoder barcode.Decoder, scans ScanRecorder, logger *slog.Logger) *Watcher {
	return &Watcher{dir: dir, decoder: decoder, scans: scans, logger: logger}
}

// Run watches the spool directory until the context is cancelled. Files
// already present at startup are processed first.
func (w *Watcher) Run(ctx context.Context) error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fs.Close()
	if err := fs.Add(w.dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			w.process(ctx, filepath.Join(w.dir, entry.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				info, err := os.Stat(event.Name)
				if err == nil && !info.IsDir() {
					w.process(ctx, event.Name)
				}
			}
		case err, ok := <-fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("spool watch error", "err", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return
	}
	frame, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("spool read failed", "path", path, "err", err)
		return
	}

	result, err := w.decoder.Decode(ctx, frame)
	if err != nil {
		w.logger.Error("spool decode failed", "path", path, "err", err)
		w.quarantine(path)
		return
	}

	scan := model.Scan{
		ID:        uuid.NewString(),
		Barcode:   result.Code,
		Detected:  result.Detected,
		Source:    model.ScanSourceSpool,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.scans.InsertScan(ctx, scan); err != nil {
		w.logger.Warn("spool scan record failed", "path", path, "err", err)
	}

	if result.Detected {
		w.logger.Info("spool frame decoded", "path", filepath.Base(path), "barcode", result.Code)
	} else {
		w.logger.Info("spool frame had no readable barcode", "path", filepath.Base(path))
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("spool cleanup failed", "path", path, "err", err)
	}
}

// quarantine renames a file the decoder rejected so it stops matching the
// image extensions and cannot wedge the spool on every later event.
func (w *Watcher) quarantine(path string) {
	if err := os.Rename(path, path+".rejected"); err != nil {
		w.logger.Warn("spool quarantine failed", "path", path, "err", err)
	}
}
