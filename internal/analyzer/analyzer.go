package analyzer

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/scene-validator/pkg/validation"
)

// ContentResult holds the AI-derived semantic properties of a scene.
// Confidence is in [0,1]. Status is analysis-failed when the backend could
// not produce a verdict; rules sourced from a failed result are forced to
// fail by the engine.
type ContentResult struct {
	DetectedTags    []string
	EstimatedRating string
	FlaggedConcerns []string
	Summary         string
	Confidence      float64

	Status validation.SourceStatus
	Error  string
}

// Failed builds an analysis-failed result carrying the error detail.
func Failed(reason string) *ContentResult {
	return &ContentResult{
		Status: validation.SourceAnalysisFailed,
		Error:  reason,
	}
}

// Analyzer produces a content verdict for a media reference and its
// declared metadata. Calls are external-service-bound; errors classified
// transient (rate limits, timeouts, upstream outages) may be retried by
// the caller, permanent errors may not.
type Analyzer interface {
	Analyze(ctx context.Context, mediaRef string, meta validation.Metadata) (*ContentResult, error)
}

// Recommender produces fix suggestions for rules that did not pass.
// Optional capability of an Analyzer; the pipeline treats it as best
// effort and drops recommendations on error.
type Recommender interface {
	Recommend(ctx context.Context, outcomes []validation.RuleOutcome) ([]validation.Recommendation, error)
}

// TransientError marks a failure worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) error {
	return &TransientError{Err: err}
}

// IsTransient reports whether err was classified as retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Disabled is an Analyzer for deployments without a content backend. Every
// call fails permanently, so content-sourced rules fail while technical
// validation still completes.
type Disabled struct{}

// Analyze implements Analyzer.
func (Disabled) Analyze(context.Context, string, validation.Metadata) (*ContentResult, error) {
	return nil, fmt.Errorf("content analyzer not configured")
}
