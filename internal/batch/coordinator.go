package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tendant/scene-validator/internal/metrics"
	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/internal/profile"
	"github.com/tendant/scene-validator/pkg/validation"
)

// DefaultMaxConcurrency bounds a batch when the caller does not.
const DefaultMaxConcurrency = 4

// Coordinator runs the validation pipeline over many scenes with bounded
// concurrency. One scene's failure never aborts the batch; every submitted
// scene id ends up with exactly one terminal entry.
type Coordinator struct {
	pipeline *pipeline.Pipeline
	profiles profile.Store
}

// New creates a coordinator. The profile store is consulted up front per
// scene so descriptor-level faults (unknown profile) are recorded as hard
// failures before a run starts.
func New(p *pipeline.Pipeline, profiles profile.Store) *Coordinator {
	return &Coordinator{pipeline: p, profiles: profiles}
}

// RunBatch validates every scene against profileID (or the scene's own
// profile override) with at most maxConcurrency pipelines in flight.
// Scenes are scheduled in submission order; completion order is not
// guaranteed. The returned map holds a report or hard-failure record for
// every submitted scene id, even when the context deadline cuts the batch
// short.
func (c *Coordinator) RunBatch(ctx context.Context, scenes []validation.SceneDescriptor, profileID string, maxConcurrency int) (*validation.BatchResult, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	batchID := uuid.New().String()
	log.Printf("[batch %s] starting: scenes=%d profile=%s concurrency=%d",
		batchID, len(scenes), profileID, maxConcurrency)

	result := &validation.BatchResult{
		BatchID: batchID,
		Entries: make(map[string]validation.BatchEntry, len(scenes)),
	}

	var mu sync.Mutex
	record := func(sceneID string, entry validation.BatchEntry) {
		mu.Lock()
		defer mu.Unlock()
		// One key, one writer: entries are only ever inserted once.
		if _, exists := result.Entries[sceneID]; exists {
			return
		}
		result.Entries[sceneID] = entry
	}
	hardFailure := func(sceneID, reason string) {
		record(sceneID, validation.BatchEntry{Failure: &validation.HardFailure{
			SceneID: sceneID,
			Reason:  reason,
		}})
		metrics.BatchScenes.WithLabelValues("hard_failure").Inc()
	}

	sem := semaphore.NewWeighted(int64(maxConcurrency))
	var wg sync.WaitGroup
	seen := make(map[string]bool, len(scenes))

	for _, scene := range scenes {
		effectiveProfile := profileID
		if scene.ProfileID != "" {
			effectiveProfile = scene.ProfileID
		}

		if seen[scene.SceneID] {
			// The id already has a terminal entry coming from its first
			// occurrence; a second entry would break the one-entry-per-id
			// invariant.
			log.Printf("[batch %s] dropping duplicate scene id %q", batchID, scene.SceneID)
			continue
		}
		seen[scene.SceneID] = true

		if reason := c.descriptorFault(ctx, scene, effectiveProfile); reason != "" {
			log.Printf("[batch %s] scene %q rejected: %s", batchID, scene.SceneID, reason)
			hardFailure(scene.SceneID, reason)
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			// Batch deadline hit while queued; the scene never started.
			hardFailure(scene.SceneID, fmt.Sprintf("batch cancelled before start: %v", err))
			continue
		}

		wg.Add(1)
		go func(sc validation.SceneDescriptor, prof string) {
			defer wg.Done()
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[batch %s] scene %s panicked: %v", batchID, sc.SceneID, r)
					hardFailure(sc.SceneID, fmt.Sprintf("internal fault: %v", r))
				}
			}()

			rep, err := c.pipeline.Run(ctx, sc, prof)
			if err != nil {
				hardFailure(sc.SceneID, err.Error())
				return
			}
			record(sc.SceneID, validation.BatchEntry{Report: rep})
			metrics.BatchScenes.WithLabelValues("report").Inc()
		}(scene, effectiveProfile)
	}

	wg.Wait()
	log.Printf("[batch %s] done: entries=%d", batchID, len(result.Entries))
	return result, nil
}

// descriptorFault checks a descriptor before its run starts. A non-empty
// return is the hard-failure reason.
func (c *Coordinator) descriptorFault(ctx context.Context, scene validation.SceneDescriptor, profileID string) string {
	if scene.SceneID == "" {
		return "missing scene id"
	}
	if scene.MediaURL == "" {
		return "missing media reference"
	}
	if profileID == "" {
		return "missing profile id"
	}
	if _, err := c.profiles.Resolve(ctx, profileID); err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return fmt.Sprintf("unknown profile %q", profileID)
		}
		return fmt.Sprintf("profile resolution failed: %v", err)
	}
	return ""
}
