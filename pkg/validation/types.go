package validation

import "time"

// Status is the overall outcome of validating one scene.
type Status string

const (
	StatusPassed             Status = "passed"
	StatusWarning            Status = "warning"
	StatusError              Status = "error"
	StatusConfigurationError Status = "configuration-error"
)

// SourceStatus describes whether a technical or content inspection produced
// usable data.
type SourceStatus string

const (
	SourceOK             SourceStatus = "ok"
	SourceProbeFailed    SourceStatus = "probe-failed"
	SourceAnalysisFailed SourceStatus = "analysis-failed"
)

// Verdict is the per-rule result.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	VerdictWarn Verdict = "warn"
)

// Metadata is the declared (human-supplied) description of a scene.
type Metadata struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	IntendedAudience string   `json:"intended_audience"`
	ContentRating    string   `json:"content_rating"`
}

// TechnicalRequirements is the declared technical spec a scene claims to meet.
type TechnicalRequirements struct {
	Resolution      string  `json:"resolution"`
	Framerate       float64 `json:"framerate"`
	ColorSpace      string  `json:"color_space"`
	AudioChannels   int     `json:"audio_channels"`
	AudioSampleRate int     `json:"audio_sample_rate"`
}

// SceneDescriptor identifies one media asset submitted for validation.
// The media URL is an opaque locator; fetching bytes is the job of the
// probe/analyzer adapters. ProfileID, when set, overrides the batch-level
// profile for this scene.
type SceneDescriptor struct {
	SceneID      string                `json:"scene_id"`
	MediaURL     string                `json:"media_url"`
	ProfileID    string                `json:"profile_id,omitempty"`
	Metadata     Metadata              `json:"metadata"`
	Requirements TechnicalRequirements `json:"technical_requirements"`
}

// RuleOutcome records the evaluation of a single profile rule.
type RuleOutcome struct {
	RuleID    string  `json:"rule_id"`
	Severity  string  `json:"severity"`
	Verdict   Verdict `json:"verdict"`
	Evaluated string  `json:"evaluated"`
	Expected  string  `json:"expected"`
	Message   string  `json:"message"`
}

// ValidationReport is the final, immutable result of one pipeline run.
// It is built privately by the run that owns it and published once on
// completion; rule outcomes preserve profile declaration order.
type ValidationReport struct {
	ValidationID    string        `json:"validation_id"`
	SceneID         string        `json:"scene_id"`
	ProfileID       string        `json:"profile_id"`
	ProfileVersion  int           `json:"profile_version"`
	Status          Status        `json:"status"`
	Outcomes        []RuleOutcome `json:"rule_outcomes"`
	TechnicalStatus SourceStatus  `json:"technical_status"`
	TechnicalError  string        `json:"technical_error,omitempty"`
	ContentStatus   SourceStatus  `json:"content_status"`
	ContentError    string        `json:"content_error,omitempty"`
	AnalysisRetries int           `json:"analysis_retries"`

	// Recommendations carries fix suggestions for non-passing rules.
	// Best effort; empty when everything passed or the analyzer could
	// not produce them.
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// HardFailure records a scene whose pipeline run could not start at all,
// e.g. a malformed descriptor or an unknown profile.
type HardFailure struct {
	SceneID string `json:"scene_id"`
	Reason  string `json:"reason"`
}

// BatchEntry is the terminal result for one scene in a batch: exactly one
// of Report or Failure is set.
type BatchEntry struct {
	Report  *ValidationReport `json:"report,omitempty"`
	Failure *HardFailure      `json:"failure,omitempty"`
}

// BatchResult maps every submitted scene id to its terminal entry.
type BatchResult struct {
	BatchID string                `json:"batch_id"`
	Entries map[string]BatchEntry `json:"entries"`
}

// ValidateRequest is the public request shape for validating one scene.
type ValidateRequest struct {
	SceneID      string                `json:"scene_id"`
	MediaURL     string                `json:"media_url"`
	ProfileID    string                `json:"profile_id"`
	Metadata     Metadata              `json:"metadata"`
	Requirements TechnicalRequirements `json:"technical_requirements"`
}

// Scene converts the request into the descriptor the pipeline consumes.
func (r ValidateRequest) Scene() SceneDescriptor {
	return SceneDescriptor{
		SceneID:      r.SceneID,
		MediaURL:     r.MediaURL,
		Metadata:     r.Metadata,
		Requirements: r.Requirements,
	}
}

// Recommendation is an actionable fix suggestion for one failed or
// warned rule, produced by the content analyzer after evaluation.
type Recommendation struct {
	RuleID string `json:"rule_id"`
	Action string `json:"action"`
}

// AsyncResponse is returned when a validation is enqueued for durable
// execution instead of run inline.
type AsyncResponse struct {
	RunID string `json:"run_id"`
}

// BatchRequest is the public request shape for validating many scenes.
type BatchRequest struct {
	BatchID        string            `json:"batch_id,omitempty"`
	ProfileID      string            `json:"profile_id"`
	MaxConcurrency int               `json:"max_concurrency,omitempty"`
	Scenes         []SceneDescriptor `json:"scenes"`
}
