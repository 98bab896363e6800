package profile

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func validProfile() *Profile {
	eps := 0.05
	min := 5.0
	return &Profile{
		ID:      "hd",
		Name:    "HD",
		Version: 1,
		Rules: []Rule{
			{ID: "res", Field: "technical.resolution", Comparator: ComparatorEquals, Severity: SeverityError, Equals: "1920x1080"},
			{ID: "fps", Field: "technical.framerate", Comparator: ComparatorEquals, Severity: SeverityWarning, Equals: "29.97", Epsilon: &eps},
			{ID: "dur", Field: "technical.duration_seconds", Comparator: ComparatorRange, Severity: SeverityInfo, Min: &min},
		},
	}
}

func TestProfileValidate(t *testing.T) {
	t.Parallel()

	if err := validProfile().Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
}

func TestProfileValidateRejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Profile)
		want   string
	}{
		{"no id", func(p *Profile) { p.ID = "" }, "no id"},
		{"duplicate rule id", func(p *Profile) { p.Rules[1].ID = "res" }, "duplicate rule id"},
		{"missing field", func(p *Profile) { p.Rules[0].Field = "" }, "no field"},
		{"unknown severity", func(p *Profile) { p.Rules[0].Severity = "fatal" }, "unknown severity"},
		{"equals without value", func(p *Profile) { p.Rules[0].Equals = "" }, "needs an expected value"},
		{"range without bounds", func(p *Profile) { p.Rules[2].Min = nil }, "needs min or max"},
		{"unknown comparator", func(p *Profile) { p.Rules[0].Comparator = "between" }, "unknown comparator"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validProfile()
			tc.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(validProfile())

	p, err := store.Resolve(context.Background(), "hd")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.ID != "hd" {
		t.Errorf("expected hd, got %s", p.ID)
	}

	if _, err := store.Resolve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	t.Parallel()

	b := validProfile()
	b.ID = "b-profile"
	a := validProfile()
	a.ID = "a-profile"
	store := NewMemoryStore(b, a)

	profiles, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles[0].ID != "a-profile" || profiles[1].ID != "b-profile" {
		t.Fatalf("expected id order, got %s, %s", profiles[0].ID, profiles[1].ID)
	}
}
