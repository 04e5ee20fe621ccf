// Package credentials resolves named profiles to provider credentials and regions.
//
// Lookups go to the saved-profile store first and fall back to an ambient
// source (the local AWS CLI configuration or environment variables) keyed by
// the same name.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/model"
)

// ErrProfileNotFound is returned by a Store that has no entry for a name.
var ErrProfileNotFound = errors.New("profile not found")

// Profile sources recorded on resolved profiles.
const (
	SourceSaved   = "saved"
	SourceAmbient = "ambient"
)

// Store looks up a profile by name. Implementations return ErrProfileNotFound
// on a miss and must not cache.
type Store interface {
	Get(ctx context.Context, name string) (*model.Profile, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, name string) (*model.Profile, error)

// Get calls f.
func (f StoreFunc) Get(ctx context.Context, name string) (*model.Profile, error) {
	return f(ctx, name)
}

// Resolver implements the two-tier lookup.
type Resolver struct {
	saved         Store
	ambient       Store
	defaultRegion string
	logger        *slog.Logger
}

// NewResolver creates a resolver. Either store may be nil.
func NewResolver(saved, ambient Store, defaultRegion string, logger *slog.Logger) *Resolver {
	return &Resolver{
		saved:         saved,
		ambient:       ambient,
		defaultRegion: defaultRegion,
		logger:        logger,
	}
}

// Resolve returns the profile for name, failing with
// apierrors.ErrCredentialNotFound only when both tiers miss.
func (r *Resolver) Resolve(ctx context.Context, name string) (*model.Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty profile name", apierrors.ErrCredentialNotFound)
	}

	if p := r.lookup(ctx, r.saved, name, SourceSaved); p != nil {
		return p, nil
	}
	if p := r.lookup(ctx, r.ambient, name, SourceAmbient); p != nil {
		return p, nil
	}

	return nil, fmt.Errorf("%w: profile %q", apierrors.ErrCredentialNotFound, name)
}

// ResolveRegion returns the first region named by either tier, or the
// default region.
func (r *Resolver) ResolveRegion(ctx context.Context, name string) string {
	for _, t := range []struct {
		store  Store
		source string
	}{{r.saved, SourceSaved}, {r.ambient, SourceAmbient}} {
		if p := r.lookup(ctx, t.store, name, t.source); p != nil && p.Region != "" {
			return p.Region
		}
	}
	return r.defaultRegion
}

// DefaultRegion returns the fallback region.
func (r *Resolver) DefaultRegion() string {
	return r.defaultRegion
}

// lookup treats store failures other than a miss as a miss too, so an
// unreachable saved store still lets the ambient tier answer.
func (r *Resolver) lookup(ctx context.Context, s Store, name, source string) *model.Profile {
	if s == nil {
		return nil
	}
	p, err := s.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			r.logger.Warn("profile store lookup failed", "profile", name, "source", source, "error", err)
		}
		return nil
	}
	if p == nil {
		return nil
	}
	out := *p
	out.Source = source
	if out.Name == "" {
		out.Name = name
	}
	return &out
}
