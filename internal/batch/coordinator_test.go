package batch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tendant/scene-validator/internal/analyzer"
	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/internal/probe"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/pkg/validation"
)

// trackingProber counts concurrent probes so tests can assert the
// semaphore bound.
type trackingProber struct {
	inflight atomic.Int64
	peak     atomic.Int64
	delay    time.Duration
}

func (p *trackingProber) Probe(ctx context.Context, _ string) (*probe.TechnicalResult, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		cur := p.peak.Load()
		if n <= cur || p.peak.CompareAndSwap(cur, n) {
			break
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
		}
	}
	return &probe.TechnicalResult{
		Resolution: "1920x1080",
		Status:     validation.SourceOK,
	}, nil
}

type okAnalyzer struct{}

func (okAnalyzer) Analyze(_ context.Context, _ string, _ validation.Metadata) (*analyzer.ContentResult, error) {
	return &analyzer.ContentResult{EstimatedRating: "PG", Status: validation.SourceOK}, nil
}

func batchProfile() *profile.Profile {
	return &profile.Profile{
		ID:      "hd",
		Version: 1,
		Rules: []profile.Rule{
			{ID: "resolution", Field: "technical.resolution", Comparator: profile.ComparatorEquals, Severity: profile.SeverityError, Equals: "1920x1080"},
		},
	}
}

func newTestCoordinator(prober probe.Prober) *Coordinator {
	store := profile.NewMemoryStore(batchProfile())
	p := pipeline.New(pipeline.Deps{
		Profiles: store,
		Prober:   prober,
		Analyzer: okAnalyzer{},
	}, pipeline.Config{AnalysisRetryBase: time.Millisecond})
	return New(p, store)
}

func scenes(n int) []validation.SceneDescriptor {
	out := make([]validation.SceneDescriptor, n)
	for i := range out {
		out[i] = validation.SceneDescriptor{
			SceneID:  fmt.Sprintf("scene-%03d", i),
			MediaURL: fmt.Sprintf("/media/scene-%03d.mp4", i),
		}
	}
	return out
}

func TestRunBatchAllComplete(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(&trackingProber{})
	result, err := c.RunBatch(context.Background(), scenes(8), "hd", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.BatchID == "" {
		t.Fatal("expected a batch id")
	}
	if len(result.Entries) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(result.Entries))
	}
	for id, entry := range result.Entries {
		if entry.Report == nil {
			t.Errorf("scene %s: expected a report, got failure %+v", id, entry.Failure)
			continue
		}
		if entry.Report.Status != validation.StatusPassed {
			t.Errorf("scene %s: expected passed, got %s", id, entry.Report.Status)
		}
	}
}

func TestRunBatchBoundedConcurrency(t *testing.T) {
	t.Parallel()

	prober := &trackingProber{delay: 20 * time.Millisecond}
	c := newTestCoordinator(prober)

	if _, err := c.RunBatch(context.Background(), scenes(10), "hd", 2); err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if peak := prober.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent probes, saw %d", peak)
	}
}

func TestRunBatchUnknownProfileHardFails(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(&trackingProber{})

	batch := scenes(4)
	batch[2].ProfileID = "nonexistent"

	result, err := c.RunBatch(context.Background(), batch, "hd", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(result.Entries))
	}

	failures := 0
	for id, entry := range result.Entries {
		if entry.Failure != nil {
			failures++
			if id != "scene-002" {
				t.Errorf("unexpected hard failure for scene %s: %s", id, entry.Failure.Reason)
			}
			if !strings.Contains(entry.Failure.Reason, "unknown profile") {
				t.Errorf("unexpected reason: %q", entry.Failure.Reason)
			}
		}
	}
	if failures != 1 {
		t.Fatalf("expected exactly 1 hard failure, got %d", failures)
	}
}

func TestRunBatchDescriptorFaults(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(&trackingProber{})

	batch := []validation.SceneDescriptor{
		{SceneID: "", MediaURL: "/media/a.mp4"},
		{SceneID: "no-media", MediaURL: ""},
		{SceneID: "good", MediaURL: "/media/good.mp4"},
	}

	result, err := c.RunBatch(context.Background(), batch, "hd", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	entry, ok := result.Entries["no-media"]
	if !ok || entry.Failure == nil {
		t.Fatalf("expected a hard failure for no-media, got %+v", entry)
	}
	if entry.Failure.Reason != "missing media reference" {
		t.Errorf("unexpected reason: %q", entry.Failure.Reason)
	}

	good, ok := result.Entries["good"]
	if !ok || good.Report == nil {
		t.Fatalf("expected a report for good, got %+v", good)
	}
}

func TestRunBatchMissingProfileID(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(&trackingProber{})

	result, err := c.RunBatch(context.Background(), scenes(1), "", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	entry := result.Entries["scene-000"]
	if entry.Failure == nil {
		t.Fatalf("expected a hard failure, got %+v", entry)
	}
	if entry.Failure.Reason != "missing profile id" {
		t.Errorf("unexpected reason: %q", entry.Failure.Reason)
	}
}

func TestRunBatchDuplicateSceneIDs(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(&trackingProber{})

	batch := scenes(3)
	batch = append(batch, batch[1])

	result, err := c.RunBatch(context.Background(), batch, "hd", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	// Later duplicates are dropped; every id keeps exactly one entry.
	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result.Entries))
	}
	if entry := result.Entries["scene-001"]; entry.Report == nil {
		t.Fatalf("expected first occurrence to produce a report, got %+v", entry)
	}
}

// cancellingProber completes its first probe, then cancels the batch
// context mid-flight and reports the cancellation the way a killed
// ffprobe would.
type cancellingProber struct {
	cancel context.CancelFunc
	calls  atomic.Int64
}

func (p *cancellingProber) Probe(ctx context.Context, _ string) (*probe.TechnicalResult, error) {
	if p.calls.Add(1) == 1 {
		return &probe.TechnicalResult{Resolution: "1920x1080", Status: validation.SourceOK}, nil
	}
	p.cancel()
	<-ctx.Done()
	return probe.Failed("ffprobe: " + ctx.Err().Error()), nil
}

func TestRunBatchCancellationPreservesCompletedEntries(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &cancellingProber{cancel: cancel}
	c := newTestCoordinator(prober)

	// Concurrency 1 makes the schedule deterministic: scene-000 completes,
	// scene-001 is in flight when the context dies, the rest never start.
	result, err := c.RunBatch(ctx, scenes(4), "hd", 1)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(result.Entries))
	}

	done := result.Entries["scene-000"]
	if done.Report == nil || done.Report.Status != validation.StatusPassed {
		t.Fatalf("expected the completed scene to keep its passed report, got %+v", done)
	}

	inflight := result.Entries["scene-001"]
	if inflight.Report == nil {
		t.Fatalf("expected the in-flight scene to finish with a report, got %+v", inflight)
	}
	if inflight.Report.TechnicalStatus != validation.SourceProbeFailed {
		t.Errorf("expected probe-failed for the interrupted probe, got %s", inflight.Report.TechnicalStatus)
	}

	for _, id := range []string{"scene-002", "scene-003"} {
		entry := result.Entries[id]
		if entry.Failure == nil {
			t.Fatalf("scene %s: expected a hard failure, got %+v", id, entry)
		}
		if !strings.Contains(entry.Failure.Reason, "batch cancelled before start") {
			t.Errorf("scene %s: unexpected reason %q", id, entry.Failure.Reason)
		}
	}
}

func TestRunBatchPanicBecomesHardFailure(t *testing.T) {
	t.Parallel()

	store := profile.NewMemoryStore(batchProfile())
	p := pipeline.New(pipeline.Deps{
		Profiles: store,
		Prober:   &trackingProber{},
		Analyzer: okAnalyzer{},
		Sink:     panicSink{},
	}, pipeline.Config{AnalysisRetryBase: time.Millisecond})
	c := New(p, store)

	result, err := c.RunBatch(context.Background(), scenes(1), "hd", 0)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	entry := result.Entries["scene-000"]
	if entry.Failure == nil {
		t.Fatalf("expected a hard failure, got %+v", entry)
	}
	if !strings.Contains(entry.Failure.Reason, "internal fault") {
		t.Errorf("unexpected reason: %q", entry.Failure.Reason)
	}
}

// panicSink simulates an internal fault on the run's own goroutine.
type panicSink struct{}

func (panicSink) Publish(context.Context, *validation.ValidationReport) error {
	panic("sink blew up")
}
