package credentials

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finopsmind/costengine/internal/model"
)

// profileFile is the on-disk layout of a FileStore.
type profileFile struct {
	Profiles []model.Profile `yaml:"profiles"`
}

// FileStore reads saved profiles from a YAML file on every lookup.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path. A missing file is an empty store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Get returns the named profile.
func (s *FileStore) Get(_ context.Context, name string) (*model.Profile, error) {
	profiles, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if profiles[i].Name == name {
			return &profiles[i], nil
		}
	}
	return nil, ErrProfileNotFound
}

// List returns every profile in the file.
func (s *FileStore) List() ([]model.Profile, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles file: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing profiles file %s: %w", s.path, err)
	}
	for _, p := range f.Profiles {
		if !p.Provider.Valid() {
			return nil, fmt.Errorf("profile %q: unknown provider %q", p.Name, p.Provider)
		}
	}
	return f.Profiles, nil
}

// ChainStore asks each store in order and returns the first hit.
type ChainStore []Store

// Get returns the first profile found. A non-miss error is returned only when
// no later store has the profile.
func (c ChainStore) Get(ctx context.Context, name string) (*model.Profile, error) {
	var firstErr error
	for _, s := range c {
		if s == nil {
			continue
		}
		p, err := s.Get(ctx, name)
		if err == nil && p != nil {
			return p, nil
		}
		if err != nil && !errors.Is(err, ErrProfileNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return nil, ErrProfileNotFound
}
