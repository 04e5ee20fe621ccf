// Package provider defines the contracts cloud adapters implement. Adapters
// normalize provider responses into model types before returning.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/finopsmind/costengine/internal/model"
)

// Grouping dimensions understood by every cost source.
const (
	DimensionService   = "service"
	DimensionRegion    = "region"
	DimensionAccount   = "account"
	DimensionUsageType = "usage_type"

	tagPrefix = "tag:"
)

// DefaultDimension is used when a caller does not name one.
const DefaultDimension = DimensionService

// ValidateDimension accepts the canonical dimensions and "tag:<key>".
func ValidateDimension(d string) error {
	switch d {
	case DimensionService, DimensionRegion, DimensionAccount, DimensionUsageType:
		return nil
	}
	if key, ok := TagKey(d); ok && key != "" {
		return nil
	}
	return fmt.Errorf("unsupported dimension %q", d)
}

// TagKey extracts the key of a "tag:<key>" dimension.
func TagKey(d string) (string, bool) {
	if !strings.HasPrefix(d, tagPrefix) {
		return "", false
	}
	return strings.TrimPrefix(d, tagPrefix), true
}

// CostQuery describes one cost query. Range.End is inclusive; adapters convert
// it with daterange.QueryEnd.
type CostQuery struct {
	Range       model.DateRange
	Granularity model.Granularity
	GroupBy     string
	Filters     model.CostFilters
}

// CostSource is a provider's cost API bound to one account.
type CostSource interface {
	Type() model.CloudProvider

	// AccountID performs the identity lookup.
	AccountID(ctx context.Context) (string, error)

	// TotalCost sums every period bucket of the filtered query.
	TotalCost(ctx context.Context, q CostQuery) (float64, error)

	// CostByDimension returns unrounded amounts per dimension label.
	CostByDimension(ctx context.Context, q CostQuery) (map[string]float64, error)
}

// ResourceScanner lists waste and budgets for one account.
type ResourceScanner interface {
	AccountID(ctx context.Context) (string, error)
	StoppedInstances(ctx context.Context, region string) ([]model.StoppedInstance, error)
	UnattachedVolumes(ctx context.Context, region string) ([]model.UnattachedVolume, error)
	UnassociatedIPs(ctx context.Context, region string) ([]model.UnassociatedFloatingIP, error)
	Budgets(ctx context.Context, accountID string) ([]model.BudgetStatus, error)
}

// InstanceCounter counts running compute instances in a project.
type InstanceCounter interface {
	CountRunning(ctx context.Context) (int, error)
}

// SourceFactory builds a CostSource for a resolved profile.
type SourceFactory func(ctx context.Context, profile *model.Profile, region string) (CostSource, error)

// ScannerFactory builds a ResourceScanner for a resolved profile.
type ScannerFactory func(ctx context.Context, profile *model.Profile, region string) (ResourceScanner, error)

// CounterFactory builds an InstanceCounter from GCP credentials.
type CounterFactory func(ctx context.Context, creds *model.GCPCredentials) (InstanceCounter, error)

// Registry maps provider types to cost source constructors.
type Registry struct {
	factories map[model.CloudProvider]SourceFactory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[model.CloudProvider]SourceFactory),
	}
}

// Register adds a constructor for provider type p.
func (r *Registry) Register(p model.CloudProvider, f SourceFactory) {
	r.factories[p] = f
}

// Get retrieves the constructor for p.
func (r *Registry) Get(p model.CloudProvider) (SourceFactory, bool) {
	f, ok := r.factories[p]
	return f, ok
}

// New builds a cost source for profile.
func (r *Registry) New(ctx context.Context, profile *model.Profile, region string) (CostSource, error) {
	f, ok := r.factories[profile.Provider]
	if !ok {
		return nil, fmt.Errorf("no cost source registered for provider %q", profile.Provider)
	}
	return f(ctx, profile, region)
}

// Names returns all registered provider types, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for p := range r.factories {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
