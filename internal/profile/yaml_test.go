package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const hdProfileYAML = `id: broadcast-hd
name: Broadcast HD
version: 2
rules:
  - id: resolution
    field: technical.resolution
    comparator: equals
    severity: error
    equals: 1920x1080
  - id: duration
    field: technical.duration_seconds
    comparator: range
    severity: warning
    min: 5
    max: 600
  - id: rating
    field: content.estimated_rating
    comparator: in
    severity: error
    in: [G, PG, PG-13]
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
}

func TestYAMLStoreResolve(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProfile(t, dir, "broadcast-hd.yaml", hdProfileYAML)

	store, err := NewYAMLStore(dir)
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	p, err := store.Resolve(context.Background(), "broadcast-hd")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ID != "broadcast-hd" {
		t.Errorf("expected id broadcast-hd, got %s", p.ID)
	}
	if p.Version != 2 {
		t.Errorf("expected version 2, got %d", p.Version)
	}
	if len(p.Rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(p.Rules))
	}
	if p.Rules[1].Min == nil || *p.Rules[1].Min != 5 {
		t.Errorf("expected min 5, got %v", p.Rules[1].Min)
	}
}

func TestYAMLStoreNotFound(t *testing.T) {
	t.Parallel()

	store, err := NewYAMLStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	_, err = store.Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestYAMLStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	store, err := NewYAMLStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	for _, id := range []string{"../etc/passwd", "a/b", `a\b`, ""} {
		if _, err := store.Resolve(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("id %q: expected ErrNotFound, got %v", id, err)
		}
	}
}

func TestYAMLStoreRejectsMismatchedID(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProfile(t, dir, "alias.yaml", "id: something-else\nrules: []\n")

	store, err := NewYAMLStore(dir)
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "alias"); err == nil {
		t.Fatal("expected an error for mismatched declared id")
	}
}

func TestYAMLStoreRejectsInvalidProfile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProfile(t, dir, "bad.yaml", `id: bad
rules:
  - id: r1
    field: technical.framerate
    comparator: range
    severity: error
`)

	store, err := NewYAMLStore(dir)
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	if _, err := store.Resolve(context.Background(), "bad"); err == nil {
		t.Fatal("expected a validation error for a range rule without bounds")
	}
}

func TestYAMLStoreList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeProfile(t, dir, "broadcast-hd.yaml", hdProfileYAML)
	writeProfile(t, dir, "audio-only.yaml", "id: audio-only\nname: Audio Only\nversion: 1\nrules: []\n")
	// A broken profile must not take the listing down with it.
	writeProfile(t, dir, "broken.yaml", "rules:\n  - id: r1\n    comparator: range\n")
	writeProfile(t, dir, "notes.txt", "not a profile")

	store, err := NewYAMLStore(dir)
	if err != nil {
		t.Fatalf("NewYAMLStore failed: %v", err)
	}

	profiles, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].ID != "audio-only" || profiles[1].ID != "broadcast-hd" {
		t.Fatalf("expected id order, got %s, %s", profiles[0].ID, profiles[1].ID)
	}
}

func TestNewYAMLStoreMissingDir(t *testing.T) {
	t.Parallel()

	if _, err := NewYAMLStore(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
