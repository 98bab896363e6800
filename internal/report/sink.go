package report

import (
	"context"
	"log"

	"github.com/tendant/scene-validator/pkg/validation"
)

// Sink receives completed validation reports. The pipeline publishes each
// report exactly once, after it reaches Completed.
type Sink interface {
	Publish(ctx context.Context, rep *validation.ValidationReport) error
}

// LogSink writes a one-line summary per report.
type LogSink struct{}

// Publish implements Sink.
func (LogSink) Publish(_ context.Context, rep *validation.ValidationReport) error {
	log.Printf("[%s] report: scene=%s profile=%s@v%d status=%s rules=%d",
		rep.ValidationID, rep.SceneID, rep.ProfileID, rep.ProfileVersion, rep.Status, len(rep.Outcomes))
	return nil
}

// Multi fans a report out to several sinks. Each sink gets the report even
// if an earlier one fails; the first error is returned.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

type multiSink []Sink

func (m multiSink) Publish(ctx context.Context, rep *validation.ValidationReport) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, rep); err != nil {
			log.Printf("[%s] report sink failed: %v", rep.ValidationID, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
