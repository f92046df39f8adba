package detect

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProbeNativeFindsDecoderOnPath(t *testing.T) {
	dir := t.TempDir()
	decoder := filepath.Join(dir, "fakedecoder")
	if err := os.WriteFile(decoder, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write decoder stub: %v", err)
	}
	t.Setenv("PATH", dir)

	if err := ProbeNative("fakedecoder"); err != nil {
		t.Fatalf("ProbeNative() error: %v", err)
	}
}

func TestProbeNativeFailsWhenDecoderMissing(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if err := ProbeNative("definitely-not-installed"); err == nil {
		t.Fatalf("ProbeNative() error = nil, want failure")
	}
}
