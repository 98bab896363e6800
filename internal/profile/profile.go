package profile

import (
	"fmt"
	"regexp"
)

// Severity controls how a failing rule affects the overall report status.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Comparator selects the evaluation semantics of a rule. Rules are tagged
// variants over these four kinds, never executable expressions, so profiles
// stay safely shareable across concurrent runs.
type Comparator string

const (
	ComparatorEquals Comparator = "equals"
	ComparatorRange  Comparator = "range"
	ComparatorIn     Comparator = "in"
	ComparatorRegex  Comparator = "regex"
)

// Rule is one checkable condition against a technical or content field.
// Field is a dot-path such as "technical.framerate" or
// "content.estimated_rating".
type Rule struct {
	ID         string     `json:"id" yaml:"id"`
	Field      string     `json:"field" yaml:"field"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Severity   Severity   `json:"severity" yaml:"severity"`

	// Operands; which ones apply depends on the comparator.
	Equals  string   `json:"equals,omitempty" yaml:"equals,omitempty"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Epsilon *float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	In      []string `json:"in,omitempty" yaml:"in,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Profile is a named, versioned rule set. Profiles are immutable at
// evaluation time; stores must not hand out profiles they later mutate.
type Profile struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Version int    `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// Validate checks structural integrity. A profile failing validation is
// corrupt configuration; callers treat that as fatal for the run rather
// than producing a normal error report.
func (p *Profile) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("profile has no id")
	}
	seen := make(map[string]bool, len(p.Rules))
	for i, r := range p.Rules {
		if r.ID == "" {
			return fmt.Errorf("profile %s: rule %d has no id", p.ID, i)
		}
		if seen[r.ID] {
			return fmt.Errorf("profile %s: duplicate rule id %q", p.ID, r.ID)
		}
		seen[r.ID] = true
		if r.Field == "" {
			return fmt.Errorf("profile %s: rule %s has no field", p.ID, r.ID)
		}
		switch r.Severity {
		case SeverityError, SeverityWarning, SeverityInfo:
		case "":
			return fmt.Errorf("profile %s: rule %s has no severity", p.ID, r.ID)
		default:
			return fmt.Errorf("profile %s: rule %s has unknown severity %q", p.ID, r.ID, r.Severity)
		}
		switch r.Comparator {
		case ComparatorEquals:
			if r.Equals == "" {
				return fmt.Errorf("profile %s: rule %s: equals comparator needs an expected value", p.ID, r.ID)
			}
		case ComparatorRange:
			if r.Min == nil && r.Max == nil {
				return fmt.Errorf("profile %s: rule %s: range comparator needs min or max", p.ID, r.ID)
			}
			if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
				return fmt.Errorf("profile %s: rule %s: range min %v exceeds max %v", p.ID, r.ID, *r.Min, *r.Max)
			}
		case ComparatorIn:
			if len(r.In) == 0 {
				return fmt.Errorf("profile %s: rule %s: in comparator needs allowed values", p.ID, r.ID)
			}
		case ComparatorRegex:
			if r.Pattern == "" {
				return fmt.Errorf("profile %s: rule %s: regex comparator needs a pattern", p.ID, r.ID)
			}
			if _, err := regexp.Compile(r.Pattern); err != nil {
				return fmt.Errorf("profile %s: rule %s: invalid pattern: %w", p.ID, r.ID, err)
			}
		default:
			return fmt.Errorf("profile %s: rule %s has unknown comparator %q", p.ID, r.ID, r.Comparator)
		}
	}
	return nil
}
