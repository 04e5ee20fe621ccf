package aws

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

// Scanner implements provider.ResourceScanner. EC2 calls are regional, so an
// EC2 client is built per region; budgets and identity are global.
type Scanner struct {
	ec2For  func(region string) EC2API
	budgets BudgetsAPI
	sts     STSAPI
	logger  *slog.Logger
}

// NewScanner creates a scanner from an AWS config.
func NewScanner(cfg aws.Config, logger *slog.Logger) *Scanner {
	return NewScannerWithAPI(
		func(region string) EC2API {
			return ec2.NewFromConfig(cfg, func(o *ec2.Options) {
				o.Region = region
			})
		},
		budgets.NewFromConfig(cfg, func(o *budgets.Options) {
			o.Region = globalRegion
		}),
		sts.NewFromConfig(cfg),
		logger,
	)
}

// NewScannerWithAPI creates a scanner with custom API implementations.
func NewScannerWithAPI(ec2For func(region string) EC2API, budgetsAPI BudgetsAPI, stsAPI STSAPI, logger *slog.Logger) *Scanner {
	return &Scanner{ec2For: ec2For, budgets: budgetsAPI, sts: stsAPI, logger: logger}
}

// ScannerFactory returns a provider.ScannerFactory for AWS profiles.
func ScannerFactory(logger *slog.Logger) provider.ScannerFactory {
	return func(ctx context.Context, profile *model.Profile, region string) (provider.ResourceScanner, error) {
		cfg, err := LoadConfig(ctx, profile, region)
		if err != nil {
			return nil, err
		}
		return NewScanner(cfg, logger), nil
	}
}

// AccountID performs the STS identity lookup.
func (s *Scanner) AccountID(ctx context.Context) (string, error) {
	return accountID(ctx, s.sts)
}

// StoppedInstances lists instances in the stopped state.
func (s *Scanner) StoppedInstances(ctx context.Context, region string) ([]model.StoppedInstance, error) {
	api := s.ec2For(region)
	input := &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("instance-state-name"), Values: []string{"stopped"}},
		},
	}

	var instances []model.StoppedInstance
	for {
		out, err := api.DescribeInstances(ctx, input)
		if err != nil {
			return nil, wrapErr("DescribeInstances", err)
		}

		for _, reservation := range out.Reservations {
			for _, inst := range reservation.Instances {
				state := ""
				if inst.State != nil {
					state = string(inst.State.Name)
				}
				instances = append(instances, model.StoppedInstance{
					ID:           aws.ToString(inst.InstanceId),
					Name:         nameTag(inst.Tags),
					InstanceType: string(inst.InstanceType),
					State:        state,
					LaunchTime:   inst.LaunchTime,
					Region:       region,
				})
			}
		}

		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	return instances, nil
}

// UnattachedVolumes lists volumes in the available state.
func (s *Scanner) UnattachedVolumes(ctx context.Context, region string) ([]model.UnattachedVolume, error) {
	api := s.ec2For(region)
	input := &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("status"), Values: []string{"available"}},
		},
	}

	var volumes []model.UnattachedVolume
	for {
		out, err := api.DescribeVolumes(ctx, input)
		if err != nil {
			return nil, wrapErr("DescribeVolumes", err)
		}

		for _, v := range out.Volumes {
			volumes = append(volumes, model.UnattachedVolume{
				ID:         aws.ToString(v.VolumeId),
				SizeGiB:    aws.ToInt32(v.Size),
				VolumeType: string(v.VolumeType),
				State:      string(v.State),
				Region:     region,
				CreateTime: v.CreateTime,
			})
		}

		if out.NextToken == nil {
			break
		}
		input.NextToken = out.NextToken
	}

	return volumes, nil
}

// UnassociatedIPs lists Elastic IPs without an association.
func (s *Scanner) UnassociatedIPs(ctx context.Context, region string) ([]model.UnassociatedFloatingIP, error) {
	out, err := s.ec2For(region).DescribeAddresses(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, wrapErr("DescribeAddresses", err)
	}

	var ips []model.UnassociatedFloatingIP
	for _, addr := range out.Addresses {
		if addr.AssociationId != nil {
			continue
		}
		ips = append(ips, model.UnassociatedFloatingIP{
			PublicIP:     aws.ToString(addr.PublicIp),
			AllocationID: aws.ToString(addr.AllocationId),
			Region:       region,
		})
	}
	return ips, nil
}

// Budgets reads every budget of the account and classifies it.
func (s *Scanner) Budgets(ctx context.Context, accountID string) ([]model.BudgetStatus, error) {
	input := &budgets.DescribeBudgetsInput{AccountId: aws.String(accountID)}

	var statuses []model.BudgetStatus
	for {
		out, err := s.budgets.DescribeBudgets(ctx, input)
		if err != nil {
			return nil, wrapErr("DescribeBudgets", err)
		}

		for _, b := range out.Budgets {
			var limit, actual, forecasted float64
			if b.BudgetLimit != nil {
				limit = parseAmount(b.BudgetLimit.Amount)
			}
			if b.CalculatedSpend != nil {
				if b.CalculatedSpend.ActualSpend != nil {
					actual = parseAmount(b.CalculatedSpend.ActualSpend.Amount)
				}
				if b.CalculatedSpend.ForecastedSpend != nil {
					forecasted = parseAmount(b.CalculatedSpend.ForecastedSpend.Amount)
				}
			}
			statuses = append(statuses, model.NewBudgetStatus(aws.ToString(b.BudgetName), limit, actual, forecasted))
		}

		if out.NextToken == nil || aws.ToString(out.NextToken) == "" {
			break
		}
		input.NextToken = out.NextToken
	}

	return statuses, nil
}

func nameTag(tags []ec2types.Tag) string {
	for _, tag := range tags {
		if aws.ToString(tag.Key) == "Name" {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}

func parseAmount(s *string) float64 {
	v, err := strconv.ParseFloat(aws.ToString(s), 64)
	if err != nil {
		return 0
	}
	return v
}
