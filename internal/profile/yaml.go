package profile

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLStore resolves profiles from a directory of YAML documents, one file
// per profile id ("<id>.yaml").
type YAMLStore struct {
	dir string
}

// NewYAMLStore creates a store over an existing directory.
func NewYAMLStore(dir string) (*YAMLStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("profile directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profile directory %s is not a directory", dir)
	}
	return &YAMLStore{dir: dir}, nil
}

// Resolve implements Store.
func (s *YAMLStore) Resolve(_ context.Context, id string) (*Profile, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
	}

	path := filepath.Join(s.dir, id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profile %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read profile %q: %w", id, err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", id, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	if p.ID != id {
		return nil, fmt.Errorf("profile file %s declares id %q", path, p.ID)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List implements Lister. Files that fail to parse or validate are logged
// and skipped so one broken profile cannot hide the rest.
func (s *YAMLStore) List(ctx context.Context) ([]*Profile, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	sort.Strings(paths)

	out := make([]*Profile, 0, len(paths))
	for _, path := range paths {
		id := strings.TrimSuffix(filepath.Base(path), ".yaml")
		p, err := s.Resolve(ctx, id)
		if err != nil {
			log.Printf("skipping profile file %s: %v", path, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
