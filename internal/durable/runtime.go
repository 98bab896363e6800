// Package durable runs validations as durable DBOS workflows. It is
// optional: deployments without a DBOS database run everything inline.
package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	_ "github.com/lib/pq"

	"github.com/tendant/scene-validator/internal/pipeline"
	"github.com/tendant/scene-validator/pkg/validation"
)

// Config holds DBOS runtime configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string for DBOS state
	// storage. Required.
	DatabaseURL string

	// AppName identifies this application in DBOS.
	// Optional. Defaults to "scene-validator".
	AppName string

	// QueueName is the workflow queue validations are enqueued on.
	// Optional. Defaults to "validations".
	QueueName string

	// ApplicationVersion overrides the default binary hash for version
	// matching. Optional.
	ApplicationVersion string
}

// WithDefaults fills in default values for optional fields.
func (c *Config) WithDefaults() {
	if c.AppName == "" {
		c.AppName = "scene-validator"
	}
	if c.QueueName == "" {
		c.QueueName = "validations"
	}
}

// Runtime owns the DBOS lifecycle and the registered validation workflow.
type Runtime struct {
	dbosContext dbos.DBOSContext
	queue       *dbos.WorkflowQueue
	config      Config
	pipeline    *pipeline.Pipeline
}

// NewRuntime creates a runtime and registers the validation workflow.
// Launch must be called before enqueueing.
func NewRuntime(ctx context.Context, cfg Config, p *pipeline.Pipeline) (*Runtime, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DBOS database URL is required")
	}
	cfg.WithDefaults()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		ApplicationVersion: cfg.ApplicationVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize DBOS: %w", err)
	}

	queue := dbos.NewWorkflowQueue(dbosCtx, cfg.QueueName)

	rt := &Runtime{
		dbosContext: dbosCtx,
		queue:       &queue,
		config:      cfg,
		pipeline:    p,
	}
	dbos.RegisterWorkflow(dbosCtx, rt.validateWorkflow)

	return rt, nil
}

// validateWorkflow is the durable entry point: DBOS checkpoints it and
// re-runs it on worker crashes.
func (r *Runtime) validateWorkflow(dbosCtx dbos.DBOSContext, req validation.ValidateRequest) (*validation.ValidationReport, error) {
	return r.pipeline.Run(dbosCtx, req.Scene(), req.ProfileID)
}

// EnqueueValidation schedules a durable validation run and returns its
// workflow id.
func (r *Runtime) EnqueueValidation(ctx context.Context, req validation.ValidateRequest) (string, error) {
	// Timestamped ids keep re-submissions of the same scene distinct while
	// still giving each enqueue exactly-once execution.
	workflowID := fmt.Sprintf("validate-%s-%d", req.SceneID, time.Now().UnixNano())

	handle, err := dbos.RunWorkflow[validation.ValidateRequest, *validation.ValidationReport](
		r.dbosContext,
		r.validateWorkflow,
		req,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.config.QueueName),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue validation: %w", err)
	}
	return handle.GetWorkflowID(), nil
}

// Launch starts the DBOS runtime and workers. Call after all workflows are
// registered.
func (r *Runtime) Launch() error {
	return dbos.Launch(r.dbosContext)
}

// Shutdown gracefully stops the runtime.
func (r *Runtime) Shutdown(timeout time.Duration) {
	dbos.Shutdown(r.dbosContext, timeout)
}
