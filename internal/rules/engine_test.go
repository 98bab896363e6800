package rules

import (
	"testing"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/pkg/validation"
)

func floatPtr(f float64) *float64 { return &f }

func okTechnical() *probe.TechnicalResult {
	return &probe.TechnicalResult{
		Resolution:      "1920x1080",
		Width:           1920,
		Height:          1080,
		Framerate:       29.970029,
		ColorSpace:      "bt709",
		AudioChannels:   2,
		AudioSampleRate: 48000,
		DurationSeconds: 42.5,
		Status:          validation.SourceOK,
	}
}

func okContent() *analyzer.ContentResult {
	return &analyzer.ContentResult{
		DetectedTags:    []string{"indoor", "dialogue"},
		EstimatedRating: "PG",
		FlaggedConcerns: []string{},
		Summary:         "Two people talking in a kitchen",
		Confidence:      0.92,
		Status:          validation.SourceOK,
	}
}

func TestEvaluateOutcomeOrder(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "order",
		Rules: []profile.Rule{
			{ID: "c", Field: "technical.resolution", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "1920x1080"},
			{ID: "a", Field: "technical.color_space", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "bt709"},
			{ID: "b", Field: "content.estimated_rating", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "PG"},
		},
	}

	outcomes := NewEngine(Config{}).Evaluate(p, okTechnical(), okContent())
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, want := range []string{"c", "a", "b"} {
		if outcomes[i].RuleID != want {
			t.Errorf("outcome %d: expected rule %s, got %s", i, want, outcomes[i].RuleID)
		}
	}
}

func TestEvaluateEqualsEpsilon(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		equals  string
		verdict validation.Verdict
	}{
		{"within default epsilon", "29.97", validation.VerdictPass},
		{"outside default epsilon", "30.00", validation.VerdictFail},
	}

	engine := NewEngine(Config{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &profile.Profile{
				ID: "fps",
				Rules: []profile.Rule{
					{ID: "fps", Field: "technical.framerate", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: tc.equals},
				},
			}
			out := engine.Evaluate(p, okTechnical(), okContent())[0]
			if out.Verdict != tc.verdict {
				t.Fatalf("expected %s, got %s (message: %s)", tc.verdict, out.Verdict, out.Message)
			}
		})
	}
}

func TestEvaluateRuleEpsilonOverride(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "fps",
		Rules: []profile.Rule{
			{ID: "fps", Field: "technical.framerate", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "30.00", Epsilon: floatPtr(0.1)},
		},
	}
	out := NewEngine(Config{}).Evaluate(p, okTechnical(), okContent())[0]
	if out.Verdict != validation.VerdictPass {
		t.Fatalf("expected pass with widened epsilon, got %s", out.Verdict)
	}
}

func TestEvaluateEqualsCaseInsensitive(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "cs",
		Rules: []profile.Rule{
			{ID: "cs", Field: "technical.color_space", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "BT709"},
		},
	}
	out := NewEngine(Config{}).Evaluate(p, okTechnical(), okContent())[0]
	if out.Verdict != validation.VerdictPass {
		t.Fatalf("expected case-insensitive match, got %s", out.Verdict)
	}
}

func TestEvaluateRange(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		min, max *float64
		verdict  validation.Verdict
	}{
		{"inside", floatPtr(10), floatPtr(60), validation.VerdictPass},
		{"at max boundary", floatPtr(10), floatPtr(42.5), validation.VerdictPass},
		{"below min", floatPtr(50), nil, validation.VerdictFail},
		{"above max", nil, floatPtr(40), validation.VerdictFail},
		{"min only satisfied", floatPtr(10), nil, validation.VerdictPass},
	}

	engine := NewEngine(Config{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &profile.Profile{
				ID: "dur",
				Rules: []profile.Rule{
					{ID: "dur", Field: "technical.duration_seconds", Comparator: profile.ComparatorRange, Severity: profile.SeverityError, Min: tc.min, Max: tc.max},
				},
			}
			out := engine.Evaluate(p, okTechnical(), okContent())[0]
			if out.Verdict != tc.verdict {
				t.Fatalf("expected %s, got %s (message: %s)", tc.verdict, out.Verdict, out.Message)
			}
		})
	}
}

func TestEvaluateIn(t *testing.T) {
	t.Parallel()

	engine := NewEngine(Config{})

	t.Run("scalar membership", func(t *testing.T) {
		p := &profile.Profile{
			ID: "rating",
			Rules: []profile.Rule{
				{ID: "rating", Field: "content.estimated_rating", Comparator: profile.ComparatorIn, Severity: profile.SeverityError, In: []string{"G", "PG", "PG-13"}},
			},
		}
		out := engine.Evaluate(p, okTechnical(), okContent())[0]
		if out.Verdict != validation.VerdictPass {
			t.Fatalf("expected pass, got %s", out.Verdict)
		}
	})

	t.Run("list values all allowed", func(t *testing.T) {
		p := &profile.Profile{
			ID: "tags",
			Rules: []profile.Rule{
				{ID: "tags", Field: "content.detected_tags", Comparator: profile.ComparatorIn, Severity: profile.SeverityError, In: []string{"indoor", "outdoor", "dialogue"}},
			},
		}
		out := engine.Evaluate(p, okTechnical(), okContent())[0]
		if out.Verdict != validation.VerdictPass {
			t.Fatalf("expected pass, got %s", out.Verdict)
		}
	})

	t.Run("list with disallowed element", func(t *testing.T) {
		p := &profile.Profile{
			ID: "tags",
			Rules: []profile.Rule{
				{ID: "tags", Field: "content.detected_tags", Comparator: profile.ComparatorIn, Severity: profile.SeverityError, In: []string{"indoor"}},
			},
		}
		out := engine.Evaluate(p, okTechnical(), okContent())[0]
		if out.Verdict != validation.VerdictFail {
			t.Fatalf("expected fail, got %s", out.Verdict)
		}
	})
}

func TestEvaluateRegex(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "res",
		Rules: []profile.Rule{
			{ID: "res", Field: "technical.resolution", Comparator: profile.ComparatorRegex, Severity: profile.SeverityError, Pattern: `^\d+x1080$`},
		},
	}
	out := NewEngine(Config{}).Evaluate(p, okTechnical(), okContent())[0]
	if out.Verdict != validation.VerdictPass {
		t.Fatalf("expected pass, got %s", out.Verdict)
	}
}

func TestEvaluateSeverityMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		severity profile.Severity
		verdict  validation.Verdict
	}{
		{profile.SeverityError, validation.VerdictFail},
		{profile.SeverityWarning, validation.VerdictWarn},
		{profile.SeverityInfo, validation.VerdictWarn},
	}

	engine := NewEngine(Config{})
	for _, tc := range cases {
		t.Run(string(tc.severity), func(t *testing.T) {
			p := &profile.Profile{
				ID: "cs",
				Rules: []profile.Rule{
					{ID: "cs", Field: "technical.color_space", Comparator: profile.ComparatorEquals, Severity: tc.severity, Equals: "bt2020"},
				},
			}
			out := engine.Evaluate(p, okTechnical(), okContent())[0]
			if out.Verdict != tc.verdict {
				t.Fatalf("severity %s: expected %s, got %s", tc.severity, tc.verdict, out.Verdict)
			}
			if out.Message == "" {
				t.Fatal("expected a mismatch message")
			}
		})
	}
}

func TestEvaluateSourceUnavailable(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "mixed",
		Rules: []profile.Rule{
			{ID: "rating", Field: "content.estimated_rating", Comparator: profile.ComparatorEquals, Severity: profile.SeverityInfo, Equals: "PG"},
			{ID: "res", Field: "technical.resolution", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "1920x1080"},
		},
	}

	failed := analyzer.Failed("analysis exhausted retries")
	outcomes := NewEngine(Config{}).Evaluate(p, okTechnical(), failed)

	// Content-backed rules are forced to fail regardless of severity.
	if outcomes[0].Verdict != validation.VerdictFail {
		t.Fatalf("expected forced fail, got %s", outcomes[0].Verdict)
	}
	if outcomes[0].Message != "source unavailable" {
		t.Fatalf("unexpected message: %q", outcomes[0].Message)
	}
	// Technical rules are unaffected.
	if outcomes[1].Verdict != validation.VerdictPass {
		t.Fatalf("expected pass, got %s", outcomes[1].Verdict)
	}
}

func TestEvaluateUnresolvableField(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "bad",
		Rules: []profile.Rule{
			{ID: "bad-field", Field: "technical.bitrate", Comparator: profile.ComparatorEquals, Severity: profile.SeverityInfo, Equals: "1"},
			{ID: "bad-source", Field: "metadata.title", Comparator: profile.ComparatorEquals, Severity: profile.SeverityInfo, Equals: "x"},
			{ID: "no-dot", Field: "framerate", Comparator: profile.ComparatorEquals, Severity: profile.SeverityInfo, Equals: "30"},
		},
	}

	for _, out := range NewEngine(Config{}).Evaluate(p, okTechnical(), okContent()) {
		if out.Verdict != validation.VerdictFail {
			t.Errorf("rule %s: expected fail, got %s", out.RuleID, out.Verdict)
		}
		if out.Message != "unresolvable field" {
			t.Errorf("rule %s: unexpected message %q", out.RuleID, out.Message)
		}
	}
}

func TestEvaluateRangeNonNumeric(t *testing.T) {
	t.Parallel()

	p := &profile.Profile{
		ID: "bad",
		Rules: []profile.Rule{
			{ID: "res-range", Field: "technical.resolution", Comparator: profile.ComparatorRange, Severity: profile.SeverityInfo, Min: floatPtr(1)},
		},
	}
	out := NewEngine(Config{}).Evaluate(p, okTechnical(), okContent())[0]
	if out.Verdict != validation.VerdictFail {
		t.Fatalf("expected fail for non-numeric range target, got %s", out.Verdict)
	}
}
