package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/metrics"
	"github.com/tendant/scene-validator/pkg/validation"
)

// runAnalysis calls the content analyzer, retrying transient failures with
// exponential backoff up to the configured attempt budget. It returns the
// result (failed if the budget is exhausted or the error was permanent)
// and the number of retries performed.
func (p *Pipeline) runAnalysis(ctx context.Context, runID string, scene validation.SceneDescriptor) (*analyzer.ContentResult, int) {
	var lastErr error

	attempts := 0
	for attempts < p.cfg.AnalysisMaxAttempts {
		if attempts > 0 {
			delay := p.cfg.AnalysisRetryBase << (attempts - 1)
			log.Printf("[%s] retrying content analysis in %s (attempt %d/%d)",
				runID, delay, attempts+1, p.cfg.AnalysisMaxAttempts)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return analyzer.Failed("analysis cancelled: " + ctx.Err().Error()), attempts - 1
			}
			metrics.AnalysisRetries.Inc()
		}
		attempts++

		actx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
		res, err := p.analyzer.Analyze(actx, scene.MediaURL, scene.Metadata)
		cancel()

		if err == nil {
			if res == nil {
				// Contract violation, not worth a retry.
				log.Printf("[%s] analyzer returned no result", runID)
				return analyzer.Failed("analyzer returned no result"), attempts - 1
			}
			if res.Status == "" {
				res.Status = validation.SourceOK
			}
			return res, attempts - 1
		}
		lastErr = err

		if !analyzer.IsTransient(err) {
			log.Printf("[%s] content analysis failed permanently: %v", runID, err)
			return analyzer.Failed(err.Error()), attempts - 1
		}
		if ctx.Err() != nil {
			break
		}
		log.Printf("[%s] content analysis failed transiently: %v", runID, err)
	}

	log.Printf("[%s] content analysis retries exhausted: %v", runID, lastErr)
	return analyzer.Failed(lastErr.Error()), attempts - 1
}
