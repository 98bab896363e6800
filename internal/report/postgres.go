package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/tendant/scene-validator/pkg/validation"
)

// ErrNotFound is returned when no report exists for the requested id.
var ErrNotFound = errors.New("report not found")

// PostgresStore persists reports and serves lookups by validation id.
// It is both a Sink and the backing for GET /v1/validations/{id}.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and bootstraps its table.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure validation_reports table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS validation_reports (
			validation_id TEXT PRIMARY KEY,
			scene_id TEXT NOT NULL,
			profile_id TEXT NOT NULL,
			status TEXT NOT NULL,
			report JSONB NOT NULL,
			completed_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}
	log.Printf("validation_reports table ready")
	return nil
}

// Publish implements Sink. Re-publishing the same validation id overwrites
// the row, keeping writes idempotent.
func (s *PostgresStore) Publish(ctx context.Context, rep *validation.ValidationReport) error {
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	query := `
		INSERT INTO validation_reports (validation_id, scene_id, profile_id, status, report, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (validation_id) DO UPDATE
		SET status = EXCLUDED.status,
		    report = EXCLUDED.report,
		    completed_at = EXCLUDED.completed_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		rep.ValidationID, rep.SceneID, rep.ProfileID, string(rep.Status), body, rep.CompletedAt,
	); err != nil {
		return fmt.Errorf("persist report %s: %w", rep.ValidationID, err)
	}
	return nil
}

// Get retrieves a report by validation id.
func (s *PostgresStore) Get(ctx context.Context, validationID string) (*validation.ValidationReport, error) {
	query := `SELECT report FROM validation_reports WHERE validation_id = $1`

	var body []byte
	err := s.db.QueryRowContext(ctx, query, validationID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %q: %w", validationID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query report %q: %w", validationID, err)
	}

	var rep validation.ValidationReport
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode report %q: %w", validationID, err)
	}
	return &rep, nil
}
