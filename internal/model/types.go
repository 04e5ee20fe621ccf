// Package model contains the core domain entities of the cost engine.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// CloudProvider represents supported cloud providers.
type CloudProvider string

const (
	CloudProviderAWS   CloudProvider = "aws"
	CloudProviderAzure CloudProvider = "azure"
	CloudProviderGCP   CloudProvider = "gcp"
)

// AllProviders lists every provider in display order.
var AllProviders = []CloudProvider{CloudProviderAWS, CloudProviderAzure, CloudProviderGCP}

// Valid reports whether p is a known provider.
func (p CloudProvider) Valid() bool {
	switch p {
	case CloudProviderAWS, CloudProviderAzure, CloudProviderGCP:
		return true
	}
	return false
}

// Granularity represents time granularity for cost data.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityMonthly Granularity = "monthly"
)

// DateRange represents a calendar window. End is inclusive; provider queries
// convert it with daterange.QueryEnd.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(math.Round(r.End.Sub(r.Start).Hours()/24)) + 1
}

// ProviderSet is the set of connected providers for a request.
type ProviderSet map[CloudProvider]struct{}

// NewProviderSet builds a set from the given providers.
func NewProviderSet(providers ...CloudProvider) ProviderSet {
	s := make(ProviderSet, len(providers))
	for _, p := range providers {
		s[p] = struct{}{}
	}
	return s
}

// ParseProviderSet parses a list such as ["aws", "azure"]. Unknown names are rejected.
func ParseProviderSet(names []string) (ProviderSet, error) {
	s := make(ProviderSet, len(names))
	for _, n := range names {
		p := CloudProvider(strings.ToLower(strings.TrimSpace(n)))
		if p == "" {
			continue
		}
		if !p.Valid() {
			return nil, fmt.Errorf("unknown provider %q", n)
		}
		s[p] = struct{}{}
	}
	return s, nil
}

// Has reports whether p is connected.
func (s ProviderSet) Has(p CloudProvider) bool {
	_, ok := s[p]
	return ok
}

// List returns the providers in display order.
func (s ProviderSet) List() []CloudProvider {
	out := make([]CloudProvider, 0, len(s))
	for _, p := range AllProviders {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Round2 rounds a currency amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ClampNonNegative returns v, or 0 when v is negative.
func ClampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
