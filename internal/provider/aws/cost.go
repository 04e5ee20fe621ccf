package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/finopsmind/costengine/internal/daterange"
	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

const costMetric = "UnblendedCost"

var dimensionKeys = map[string]types.Dimension{
	provider.DimensionService:   types.DimensionService,
	provider.DimensionRegion:    types.DimensionRegion,
	provider.DimensionAccount:   types.DimensionLinkedAccount,
	provider.DimensionUsageType: types.DimensionUsageType,
}

// CostSource implements provider.CostSource over Cost Explorer.
type CostSource struct {
	ce     CostExplorerAPI
	sts    STSAPI
	logger *slog.Logger
}

// NewCostSource creates a cost source from an AWS config.
func NewCostSource(cfg aws.Config, logger *slog.Logger) *CostSource {
	ce := costexplorer.NewFromConfig(cfg, func(o *costexplorer.Options) {
		o.Region = globalRegion
	})
	return NewCostSourceWithAPI(ce, sts.NewFromConfig(cfg), logger)
}

// NewCostSourceWithAPI creates a cost source with custom API implementations.
func NewCostSourceWithAPI(ce CostExplorerAPI, stsAPI STSAPI, logger *slog.Logger) *CostSource {
	return &CostSource{ce: ce, sts: stsAPI, logger: logger}
}

// Factory returns a provider.SourceFactory for AWS profiles.
func Factory(logger *slog.Logger) provider.SourceFactory {
	return func(ctx context.Context, profile *model.Profile, region string) (provider.CostSource, error) {
		cfg, err := LoadConfig(ctx, profile, region)
		if err != nil {
			return nil, err
		}
		return NewCostSource(cfg, logger), nil
	}
}

// Type returns the provider type.
func (s *CostSource) Type() model.CloudProvider {
	return model.CloudProviderAWS
}

// AccountID performs the STS identity lookup.
func (s *CostSource) AccountID(ctx context.Context) (string, error) {
	return accountID(ctx, s.sts)
}

// TotalCost sums the unblended cost of every period bucket.
func (s *CostSource) TotalCost(ctx context.Context, q provider.CostQuery) (float64, error) {
	input, err := s.buildInput(q)
	if err != nil {
		return 0, err
	}

	var total float64
	err = s.paginate(ctx, input, func(r types.ResultByTime) {
		total += metricAmount(r.Total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CostByDimension sums the unblended cost per group key across buckets.
func (s *CostSource) CostByDimension(ctx context.Context, q provider.CostQuery) (map[string]float64, error) {
	group, err := groupDefinition(q.GroupBy)
	if err != nil {
		return nil, err
	}
	input, err := s.buildInput(q)
	if err != nil {
		return nil, err
	}
	input.GroupBy = []types.GroupDefinition{group}

	amounts := make(map[string]float64)
	err = s.paginate(ctx, input, func(r types.ResultByTime) {
		for _, g := range r.Groups {
			if len(g.Keys) == 0 {
				continue
			}
			amounts[groupLabel(group, g.Keys[0])] += metricAmount(g.Metrics)
		}
	})
	if err != nil {
		return nil, err
	}
	return amounts, nil
}

func (s *CostSource) buildInput(q provider.CostQuery) (*costexplorer.GetCostAndUsageInput, error) {
	granularity := types.GranularityDaily
	if q.Granularity == model.GranularityMonthly {
		granularity = types.GranularityMonthly
	}

	filter, err := buildFilter(q.Filters)
	if err != nil {
		return nil, err
	}

	return &costexplorer.GetCostAndUsageInput{
		TimePeriod: &types.DateInterval{
			Start: aws.String(daterange.Format(q.Range.Start)),
			End:   aws.String(daterange.Format(daterange.QueryEnd(q.Range))),
		},
		Granularity: granularity,
		Metrics:     []string{costMetric},
		Filter:      filter,
	}, nil
}

func (s *CostSource) paginate(ctx context.Context, input *costexplorer.GetCostAndUsageInput, each func(types.ResultByTime)) error {
	s.logger.Debug("querying AWS costs",
		"start", aws.ToString(input.TimePeriod.Start),
		"end", aws.ToString(input.TimePeriod.End),
		"granularity", input.Granularity,
	)

	for {
		out, err := s.ce.GetCostAndUsage(ctx, input)
		if err != nil {
			return wrapErr("GetCostAndUsage", err)
		}
		for _, r := range out.ResultsByTime {
			each(r)
		}
		if out.NextPageToken == nil || aws.ToString(out.NextPageToken) == "" {
			return nil
		}
		input.NextPageToken = out.NextPageToken
	}
}

func groupDefinition(dimension string) (types.GroupDefinition, error) {
	if dimension == "" {
		dimension = provider.DefaultDimension
	}
	if key, ok := provider.TagKey(dimension); ok && key != "" {
		return types.GroupDefinition{Type: types.GroupDefinitionTypeTag, Key: aws.String(key)}, nil
	}
	key, ok := dimensionKeys[dimension]
	if !ok {
		return types.GroupDefinition{}, fmt.Errorf("aws: unsupported dimension %q", dimension)
	}
	return types.GroupDefinition{Type: types.GroupDefinitionTypeDimension, Key: aws.String(string(key))}, nil
}

// groupLabel strips the "key$" prefix Cost Explorer puts on tag group keys.
func groupLabel(group types.GroupDefinition, key string) string {
	if group.Type != types.GroupDefinitionTypeTag {
		return key
	}
	_, value, _ := strings.Cut(key, "$")
	if value == "" {
		return "(untagged)"
	}
	return value
}

func buildFilter(filters model.CostFilters) (*types.Expression, error) {
	var expressions []types.Expression

	dims := make([]string, 0, len(filters.Dimensions))
	for k := range filters.Dimensions {
		dims = append(dims, k)
	}
	sort.Strings(dims)
	for _, name := range dims {
		key, ok := dimensionKeys[name]
		if !ok {
			return nil, fmt.Errorf("aws: unsupported filter dimension %q", name)
		}
		expressions = append(expressions, types.Expression{
			Dimensions: &types.DimensionValues{
				Key:    key,
				Values: []string{filters.Dimensions[name]},
			},
		})
	}

	tags := make([]string, 0, len(filters.Tags))
	for k := range filters.Tags {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	for _, key := range tags {
		expressions = append(expressions, types.Expression{
			Tags: &types.TagValues{
				Key:    aws.String(key),
				Values: []string{filters.Tags[key]},
			},
		})
	}

	if len(expressions) == 0 {
		return nil, nil
	}

	if len(expressions) == 1 {
		return &expressions[0], nil
	}

	return &types.Expression{
		And: expressions,
	}, nil
}

func metricAmount(metrics map[string]types.MetricValue) float64 {
	m, ok := metrics[costMetric]
	if !ok || m.Amount == nil {
		return 0
	}
	v, err := strconv.ParseFloat(aws.ToString(m.Amount), 64)
	if err != nil {
		return 0
	}
	return v
}
