package stream

import (
	"os"
	"path/filepath"
	"testing"
)

// TestSaveLoad_RoundTrip verifies saving and loading preserves preferences.
func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs", "stream.yaml")
	in := Config{FPS: 20, Quality: 90, ScalePct: 60, Cursor: CursorNone}
	if err := Save(path, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	out, found, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !found || out != in {
		t.Fatalf("expected %+v (found), got %+v found=%v", in, out, found)
	}
}

// TestLoad_MissingFile_ReturnsDefaults verifies missing files return defaults.
func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	out, found, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if found || out != Default() {
		t.Fatalf("expected defaults, got %+v found=%v", out, found)
	}
}

// TestLoad_SnapsHandEditedValues verifies out-of-grid stored values are repaired.
func TestLoad_SnapsHandEditedValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.yaml")
	data := "fps: 99\nquality: 44\nscale_pct: 5\ncursor: arrow\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Config{FPS: 30, Quality: 40, ScalePct: 20, Cursor: CursorSimple}
	if out != want {
		t.Fatalf("expected %+v, got %+v", want, out)
	}
}

// TestClear_RemovesPreferences verifies cleared preferences load as defaults and clearing twice is fine.
func TestClear_RemovesPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.yaml")
	if err := Save(path, Default().WithFPS(25)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := Clear(path); err != nil {
		t.Fatalf("expected second Clear to succeed, got %v", err)
	}
	if _, found, _ := Load(path); found {
		t.Fatalf("expected no saved preferences")
	}
}
