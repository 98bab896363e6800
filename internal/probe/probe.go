package probe

import (
	"context"

	"github.com/tendant/scene-validator/pkg/validation"
)

// TechnicalResult holds the measured properties of the actual media.
// Status is probe-failed when the media could not be inspected; rules
// sourced from a failed result are forced to fail by the engine.
type TechnicalResult struct {
	Resolution      string
	Width           int
	Height          int
	Framerate       float64
	ColorSpace      string
	AudioChannels   int
	AudioSampleRate int
	DurationSeconds float64

	Status validation.SourceStatus
	Error  string
}

// Failed builds a probe-failed result carrying the error detail.
func Failed(reason string) *TechnicalResult {
	return &TechnicalResult{
		Status: validation.SourceProbeFailed,
		Error:  reason,
	}
}

// Prober inspects a media reference and reports measured properties.
// Implementations return a probe-failed result for unreadable media rather
// than an error; the error return is reserved for contract violations.
type Prober interface {
	Probe(ctx context.Context, mediaRef string) (*TechnicalResult, error)
}
