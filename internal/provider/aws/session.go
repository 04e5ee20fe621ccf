// Package aws implements cost queries and waste scans against AWS.
package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/budgets"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/finopsmind/costengine/internal/model"
)

// Cost Explorer and Budgets are served from a single global endpoint.
const globalRegion = "us-east-1"

// CostExplorerAPI is the subset of the Cost Explorer client we use.
type CostExplorerAPI interface {
	GetCostAndUsage(ctx context.Context, params *costexplorer.GetCostAndUsageInput, optFns ...func(*costexplorer.Options)) (*costexplorer.GetCostAndUsageOutput, error)
}

// EC2API is the subset of the EC2 client we use.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeAddresses(ctx context.Context, params *ec2.DescribeAddressesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAddressesOutput, error)
}

// STSAPI is the subset of the STS client we use.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// BudgetsAPI is the subset of the Budgets client we use.
type BudgetsAPI interface {
	DescribeBudgets(ctx context.Context, params *budgets.DescribeBudgetsInput, optFns ...func(*budgets.Options)) (*budgets.DescribeBudgetsOutput, error)
}

// LoadConfig builds an SDK config for a resolved profile. Static keys win
// over a shared CLI profile; an assume-role ARN wraps whichever was chosen.
func LoadConfig(ctx context.Context, profile *model.Profile, region string) (aws.Config, error) {
	if profile == nil || profile.Provider != model.CloudProviderAWS {
		return aws.Config{}, fmt.Errorf("aws: profile is not an AWS profile")
	}
	creds := profile.Credentials.AWS
	if creds == nil {
		creds = &model.AWSCredentials{SharedProfile: profile.Name}
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	switch {
	case creds.AccessKeyID != "" && creds.SecretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretKey, creds.SessionToken),
		))
	case creds.SharedProfile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(creds.SharedProfile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}

	if creds.AssumeRoleARN != "" {
		provider := stscreds.NewAssumeRoleProvider(sts.NewFromConfig(cfg), creds.AssumeRoleARN, func(o *stscreds.AssumeRoleOptions) {
			if creds.ExternalID != "" {
				o.ExternalID = aws.String(creds.ExternalID)
			}
		})
		cfg.Credentials = aws.NewCredentialsCache(provider)
	}

	return cfg, nil
}

// accountID returns the caller's account via STS.
func accountID(ctx context.Context, api STSAPI) (string, error) {
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", wrapErr("GetCallerIdentity", err)
	}
	return aws.ToString(out.Account), nil
}

// opError names the failed SDK operation and renders service errors as
// "Code: message" instead of the full SDK chain.
type opError struct {
	op  string
	err error
}

func wrapErr(op string, err error) error {
	return &opError{op: op, err: err}
}

func (e *opError) Error() string {
	var ae smithy.APIError
	if errors.As(e.err, &ae) {
		return fmt.Sprintf("%s: %s: %s", e.op, ae.ErrorCode(), ae.ErrorMessage())
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *opError) Unwrap() error {
	return e.err
}
