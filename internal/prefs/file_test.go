package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	if _, err := s.Get(context.Background(), KeyShutterSpeed); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not be created before the first Set")
	}
}

func TestFileStore_SetPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "prefs.yaml")

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyShutterSpeed, "60"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Set(ctx, KeyEnableFlash, "true"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	reloaded, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reload error: %v", err)
	}
	if v, _ := reloaded.Get(ctx, KeyShutterSpeed); v != "60" {
		t.Errorf("shutter_speed = %q, want 60", v)
	}
	all, _ := reloaded.All(ctx)
	if len(all) != 2 {
		t.Errorf("All() = %v, want 2 entries", all)
	}
}

func TestFileStore_LoadsExistingYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	content := "shutter_speed: \"250\"\nlighting_mode: high_light\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatal(err)
	}
	settings := NewSettings(s)
	hz, _ := settings.ShutterRateHz(context.Background())
	if hz != 250 {
		t.Errorf("ShutterRateHz() = %d, want 250", hz)
	}
}

func TestFileStore_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, []byte("a: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	if err := s.Set(context.Background(), "k", "v"); err != nil {
		t.Errorf("Set() on empty file store: %v", err)
	}
}
