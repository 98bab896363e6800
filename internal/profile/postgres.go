package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq"
)

// PostgresStore resolves profiles from a validation_profiles table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the store and bootstraps its table.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure validation_profiles table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS validation_profiles (
			id TEXT PRIMARY KEY,
			name TEXT,
			version INTEGER NOT NULL DEFAULT 1,
			rules JSONB NOT NULL,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}
	log.Printf("validation_profiles table ready")
	return nil
}

// Resolve implements Store.
func (s *PostgresStore) Resolve(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT name, version, rules FROM validation_profiles WHERE id = $1`

	p := Profile{ID: id}
	var rules []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.Name, &p.Version, &rules)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %q: %w", id, err)
	}
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return nil, fmt.Errorf("decode rules for profile %q: %w", id, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List implements Lister.
func (s *PostgresStore) List(ctx context.Context) ([]*Profile, error) {
	query := `SELECT id, name, version, rules FROM validation_profiles ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		var p Profile
		var rules []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &rules); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		if err := json.Unmarshal(rules, &p.Rules); err != nil {
			log.Printf("skipping profile %s: undecodable rules: %v", p.ID, err)
			continue
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}
