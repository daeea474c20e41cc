package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestMyRecoverSwallowsPanic checks that a deferred MyRecover stops the
// panic and leaves a dump file carrying the panic value and a stack trace.
func TestMyRecoverSwallowsPanic(t *testing.T) {
	dir := t.TempDir()
	orig := panicFilename
	panicFilename = filepath.Join(dir, "panic_dump")
	defer func() { panicFilename = orig }()

	func() {
		defer MyRecover()
		panic("ticker loop blew up")
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("found %d dump files, want exactly 1", len(entries))
	}
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "ticker loop blew up") {
		t.Fatalf("dump does not carry the panic value: %q", raw)
	}
	if !strings.Contains(string(raw), "goroutine") {
		t.Fatal("dump does not carry a stack trace")
	}
}

func TestMyRecoverNoPanic(t *testing.T) {
	dir := t.TempDir()
	orig := panicFilename
	panicFilename = filepath.Join(dir, "panic_dump")
	defer func() { panicFilename = orig }()

	func() {
		defer MyRecover()
	}()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("a clean return must not dump, found %d files", len(entries))
	}
}
