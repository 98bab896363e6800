package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/metrics"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/internal/report"
	"github.com/tendant/scene-validator/internal/rules"
	"github.com/tendant/scene-validator/pkg/validation"
)

// Config holds pipeline tuning. All fields are optional.
type Config struct {
	// ProbeTimeout bounds one technical inspection. Defaults to 30s.
	ProbeTimeout time.Duration

	// AnalysisTimeout bounds one content-analysis attempt. Defaults to 120s.
	AnalysisTimeout time.Duration

	// AnalysisMaxAttempts bounds content-analysis attempts, first try
	// included. Defaults to 3.
	AnalysisMaxAttempts int

	// AnalysisRetryBase is the first retry delay; it doubles per attempt.
	// Defaults to 500ms.
	AnalysisRetryBase time.Duration

	// Epsilon is the numeric comparison tolerance. Defaults to 0.01.
	Epsilon float64
}

// WithDefaults fills in default values for optional fields.
func (c *Config) WithDefaults() {
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 30 * time.Second
	}
	if c.AnalysisTimeout == 0 {
		c.AnalysisTimeout = 120 * time.Second
	}
	if c.AnalysisMaxAttempts == 0 {
		c.AnalysisMaxAttempts = 3
	}
	if c.AnalysisRetryBase == 0 {
		c.AnalysisRetryBase = 500 * time.Millisecond
	}
}

// Pipeline validates one scene per Run call: it resolves the profile,
// probes and analyzes concurrently, evaluates rules, and publishes the
// finished report to the sink. A Pipeline is safe for concurrent use.
type Pipeline struct {
	profiles profile.Store
	prober   probe.Prober
	analyzer analyzer.Analyzer
	engine   *rules.Engine
	sink     report.Sink
	cfg      Config
}

// Deps wires the pipeline's collaborators. Sink may be nil.
type Deps struct {
	Profiles profile.Store
	Prober   probe.Prober
	Analyzer analyzer.Analyzer
	Sink     report.Sink
}

// New creates a pipeline.
func New(deps Deps, cfg Config) *Pipeline {
	cfg.WithDefaults()
	return &Pipeline{
		profiles: deps.Profiles,
		prober:   deps.Prober,
		analyzer: deps.Analyzer,
		engine:   rules.NewEngine(rules.Config{Epsilon: cfg.Epsilon}),
		sink:     deps.Sink,
		cfg:      cfg,
	}
}

// Run validates one scene against the named profile. Probe and analysis
// failures are captured in the report, never returned as errors; a non-nil
// error means the run itself could not complete sanely (corrupt profile,
// contract violation) and no report exists.
func (p *Pipeline) Run(ctx context.Context, scene validation.SceneDescriptor, profileID string) (*validation.ValidationReport, error) {
	runID := uuid.New().String()
	submitted := time.Now().UTC()

	log.Printf("[%s] starting validation for scene=%s profile=%s", runID, scene.SceneID, profileID)

	prof, err := p.profiles.Resolve(ctx, profileID)
	if err != nil {
		if !errors.Is(err, profile.ErrNotFound) {
			log.Printf("[%s] profile resolution failed: %v", runID, err)
		}
		rep := p.configurationError(runID, scene, profileID, submitted, err)
		p.publish(ctx, rep)
		return rep, nil
	}
	if err := prof.Validate(); err != nil {
		// Corrupt configuration is fatal to the run, distinct from a
		// normal error report.
		return nil, fmt.Errorf("corrupted profile %s: %w", profileID, err)
	}

	// Probe and analyze concurrently with independent timeouts.
	var (
		wg      sync.WaitGroup
		tech    *probe.TechnicalResult
		content *analyzer.ContentResult
		retries int
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tech = p.runProbe(ctx, runID, scene.MediaURL)
	}()
	go func() {
		defer wg.Done()
		content, retries = p.runAnalysis(ctx, runID, scene)
	}()
	wg.Wait()

	outcomes := p.engine.Evaluate(prof, tech, content)
	status := aggregate(outcomes, tech, content)
	recs := p.recommend(ctx, runID, outcomes)

	rep := &validation.ValidationReport{
		ValidationID:    runID,
		SceneID:         scene.SceneID,
		ProfileID:       prof.ID,
		ProfileVersion:  prof.Version,
		Status:          status,
		Outcomes:        outcomes,
		TechnicalStatus: tech.Status,
		TechnicalError:  tech.Error,
		ContentStatus:   content.Status,
		ContentError:    content.Error,
		AnalysisRetries: retries,
		Recommendations: recs,
		SubmittedAt:     submitted,
		CompletedAt:     time.Now().UTC(),
	}

	metrics.ValidationRuns.WithLabelValues(string(status)).Inc()
	metrics.ValidationDuration.Observe(rep.CompletedAt.Sub(submitted).Seconds())

	log.Printf("[%s] completed with status=%s (technical=%s content=%s retries=%d)",
		runID, status, tech.Status, content.Status, retries)

	p.publish(ctx, rep)
	return rep, nil
}

func (p *Pipeline) runProbe(ctx context.Context, runID, mediaRef string) *probe.TechnicalResult {
	pctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	res, err := p.prober.Probe(pctx, mediaRef)
	if err != nil {
		// Probers report media failures in the result; an error here is a
		// contract violation, captured as a failed probe to keep the run
		// alive.
		log.Printf("[%s] prober returned error: %v", runID, err)
		return probe.Failed(err.Error())
	}
	if res == nil {
		log.Printf("[%s] prober returned no result", runID)
		return probe.Failed("prober returned no result")
	}
	if res.Status != validation.SourceOK {
		log.Printf("[%s] probe failed: %s", runID, res.Error)
	}
	return res
}

// recommend asks the analyzer for fix suggestions when any rule did not
// pass. Best effort: errors are logged and the report ships without
// recommendations.
func (p *Pipeline) recommend(ctx context.Context, runID string, outcomes []validation.RuleOutcome) []validation.Recommendation {
	rec, ok := p.analyzer.(analyzer.Recommender)
	if !ok {
		return nil
	}
	failed := false
	for _, o := range outcomes {
		if o.Verdict != validation.VerdictPass {
			failed = true
			break
		}
	}
	if !failed {
		return nil
	}

	rctx, cancel := context.WithTimeout(ctx, p.cfg.AnalysisTimeout)
	defer cancel()

	recs, err := rec.Recommend(rctx, outcomes)
	if err != nil {
		log.Printf("[%s] recommendation generation failed: %v", runID, err)
		return nil
	}
	return recs
}

func (p *Pipeline) configurationError(runID string, scene validation.SceneDescriptor, profileID string, submitted time.Time, cause error) *validation.ValidationReport {
	rep := &validation.ValidationReport{
		ValidationID: runID,
		SceneID:      scene.SceneID,
		ProfileID:    profileID,
		Status:       validation.StatusConfigurationError,
		SubmittedAt:  submitted,
		CompletedAt:  time.Now().UTC(),
	}
	metrics.ValidationRuns.WithLabelValues(string(validation.StatusConfigurationError)).Inc()
	log.Printf("[%s] configuration error for scene=%s: %v", runID, scene.SceneID, cause)
	return rep
}

func (p *Pipeline) publish(ctx context.Context, rep *validation.ValidationReport) {
	if p.sink == nil {
		return
	}
	// Sinks are best effort; a failed publish does not invalidate the run.
	if err := p.sink.Publish(ctx, rep); err != nil {
		log.Printf("[%s] report publish failed: %v", rep.ValidationID, err)
	}
}

// aggregate derives the overall status: error when any error-severity rule
// failed or the probe failed entirely; warning when anything else went
// sideways; passed otherwise.
func aggregate(outcomes []validation.RuleOutcome, tech *probe.TechnicalResult, content *analyzer.ContentResult) validation.Status {
	anyWarn := false
	for _, o := range outcomes {
		switch o.Verdict {
		case validation.VerdictFail:
			if o.Severity == string(profile.SeverityError) {
				return validation.StatusError
			}
			anyWarn = true
		case validation.VerdictWarn:
			anyWarn = true
		}
	}
	if tech.Status != validation.SourceOK {
		return validation.StatusError
	}
	if anyWarn || content.Status != validation.SourceOK {
		return validation.StatusWarning
	}
	return validation.StatusPassed
}
