package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/pkg/validation"
)

// Config holds engine tuning.
type Config struct {
	// Epsilon is the default tolerance for numeric comparisons, absorbing
	// floating-point drift in framerates (29.97 vs 29.970029...).
	// Optional; defaults to 0.01. Rules may override it individually.
	Epsilon float64
}

// WithDefaults fills in default values for optional fields.
func (c *Config) WithDefaults() {
	if c.Epsilon == 0 {
		c.Epsilon = 0.01
	}
}

// Engine evaluates profile rules against measured technical properties and
// content-analysis output. Evaluation is total: every rule yields exactly
// one outcome, in profile declaration order.
type Engine struct {
	epsilon float64
}

// NewEngine creates an engine.
func NewEngine(cfg Config) *Engine {
	cfg.WithDefaults()
	return &Engine{epsilon: cfg.Epsilon}
}

const (
	msgSourceUnavailable = "source unavailable"
	msgUnresolvableField = "unresolvable field"
)

// Evaluate runs every rule in p against tech and content. Rules whose
// source result failed are forced to fail so profiles cannot pass by
// omission.
func (e *Engine) Evaluate(p *profile.Profile, tech *probe.TechnicalResult, content *analyzer.ContentResult) []validation.RuleOutcome {
	outcomes := make([]validation.RuleOutcome, 0, len(p.Rules))
	for _, rule := range p.Rules {
		outcomes = append(outcomes, e.evaluateRule(rule, tech, content))
	}
	return outcomes
}

func (e *Engine) evaluateRule(rule profile.Rule, tech *probe.TechnicalResult, content *analyzer.ContentResult) validation.RuleOutcome {
	out := validation.RuleOutcome{
		RuleID:   rule.ID,
		Severity: string(rule.Severity),
		Expected: expectedString(rule),
	}

	source, field, ok := strings.Cut(rule.Field, ".")
	if !ok {
		out.Verdict = validation.VerdictFail
		out.Message = msgUnresolvableField
		return out
	}

	var value any
	switch source {
	case "technical":
		if tech == nil || tech.Status != validation.SourceOK {
			out.Verdict = validation.VerdictFail
			out.Message = msgSourceUnavailable
			return out
		}
		value, ok = technicalField(tech, field)
	case "content":
		if content == nil || content.Status != validation.SourceOK {
			out.Verdict = validation.VerdictFail
			out.Message = msgSourceUnavailable
			return out
		}
		value, ok = contentField(content, field)
	default:
		ok = false
	}
	if !ok {
		out.Verdict = validation.VerdictFail
		out.Message = msgUnresolvableField
		return out
	}

	out.Evaluated = formatValue(value)

	match, problem := e.compare(rule, value)
	if problem != "" {
		out.Verdict = validation.VerdictFail
		out.Message = problem
		return out
	}
	if match {
		out.Verdict = validation.VerdictPass
		return out
	}

	// A mismatch fails hard only at error severity; warning and info
	// rules surface as warnings in the aggregate.
	if rule.Severity == profile.SeverityError {
		out.Verdict = validation.VerdictFail
	} else {
		out.Verdict = validation.VerdictWarn
	}
	out.Message = fmt.Sprintf("got %s, expected %s", out.Evaluated, out.Expected)
	return out
}

// compare applies the rule's comparator. A non-empty problem string marks
// rules that cannot be meaningfully applied to the resolved value; those
// fail regardless of severity.
func (e *Engine) compare(rule profile.Rule, value any) (match bool, problem string) {
	switch rule.Comparator {
	case profile.ComparatorEquals:
		return e.compareEquals(rule, value), ""

	case profile.ComparatorRange:
		num, ok := asFloat(value)
		if !ok {
			return false, fmt.Sprintf("range comparator needs a numeric value, got %s", formatValue(value))
		}
		eps := e.ruleEpsilon(rule)
		if rule.Min != nil && num < *rule.Min-eps {
			return false, ""
		}
		if rule.Max != nil && num > *rule.Max+eps {
			return false, ""
		}
		return true, ""

	case profile.ComparatorIn:
		allowed := make(map[string]bool, len(rule.In))
		for _, v := range rule.In {
			allowed[strings.ToLower(v)] = true
		}
		// List-valued fields (tags, concerns) pass when every element is
		// allowed; scalars must themselves be a member.
		for _, v := range asStrings(value) {
			if !allowed[strings.ToLower(v)] {
				return false, ""
			}
		}
		return true, ""

	case profile.ComparatorRegex:
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern: %v", err)
		}
		return re.MatchString(asString(value)), ""

	default:
		return false, fmt.Sprintf("unknown comparator %q", rule.Comparator)
	}
}

func (e *Engine) compareEquals(rule profile.Rule, value any) bool {
	// Numeric equality tolerates epsilon when both sides parse as numbers,
	// so "framerate equals 29.97" absorbs measurement drift.
	if num, ok := asFloat(value); ok {
		if want, err := strconv.ParseFloat(rule.Equals, 64); err == nil {
			return math.Abs(num-want) <= e.ruleEpsilon(rule)
		}
	}
	return strings.EqualFold(asString(value), rule.Equals)
}

func (e *Engine) ruleEpsilon(rule profile.Rule) float64 {
	if rule.Epsilon != nil {
		return *rule.Epsilon
	}
	return e.epsilon
}

// --- field resolution ---

func technicalField(t *probe.TechnicalResult, field string) (any, bool) {
	switch field {
	case "resolution":
		return t.Resolution, true
	case "width":
		return t.Width, true
	case "height":
		return t.Height, true
	case "framerate":
		return t.Framerate, true
	case "color_space":
		return t.ColorSpace, true
	case "audio_channels":
		return t.AudioChannels, true
	case "audio_sample_rate":
		return t.AudioSampleRate, true
	case "duration_seconds":
		return t.DurationSeconds, true
	default:
		return nil, false
	}
}

func contentField(c *analyzer.ContentResult, field string) (any, bool) {
	switch field {
	case "detected_tags":
		return c.DetectedTags, true
	case "estimated_rating":
		return c.EstimatedRating, true
	case "flagged_concerns":
		return c.FlaggedConcerns, true
	case "summary":
		return c.Summary, true
	case "confidence":
		return c.Confidence, true
	default:
		return nil, false
	}
}

// --- value coercion ---

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asStrings(value any) []string {
	if list, ok := value.([]string); ok {
		return list
	}
	return []string{asString(value)}
}

func formatValue(value any) string {
	if list, ok := value.([]string); ok {
		return "[" + strings.Join(list, ", ") + "]"
	}
	return asString(value)
}

func expectedString(rule profile.Rule) string {
	switch rule.Comparator {
	case profile.ComparatorEquals:
		return rule.Equals
	case profile.ComparatorRange:
		switch {
		case rule.Min != nil && rule.Max != nil:
			return fmt.Sprintf("range [%s, %s]", formatFloat(*rule.Min), formatFloat(*rule.Max))
		case rule.Min != nil:
			return fmt.Sprintf("at least %s", formatFloat(*rule.Min))
		case rule.Max != nil:
			return fmt.Sprintf("at most %s", formatFloat(*rule.Max))
		default:
			return "range"
		}
	case profile.ComparatorIn:
		return "one of [" + strings.Join(rule.In, ", ") + "]"
	case profile.ComparatorRegex:
		return "pattern " + rule.Pattern
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
