package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"

	"github.com/finopsmind/costengine/internal/model"
)

// AWSSharedConfigSource reads profiles from the local AWS CLI configuration
// (~/.aws/config and ~/.aws/credentials). The returned credentials point the
// SDK at the shared profile rather than copying keys.
type AWSSharedConfigSource struct {
	configFiles      []string
	credentialsFiles []string
}

// NewAWSSharedConfigSource uses the SDK default file locations.
func NewAWSSharedConfigSource() *AWSSharedConfigSource {
	return &AWSSharedConfigSource{}
}

// WithFiles overrides the shared config and credentials file locations.
func (s *AWSSharedConfigSource) WithFiles(configFiles, credentialsFiles []string) *AWSSharedConfigSource {
	s.configFiles = configFiles
	s.credentialsFiles = credentialsFiles
	return s
}

// Get looks up name in the shared configuration.
func (s *AWSSharedConfigSource) Get(ctx context.Context, name string) (*model.Profile, error) {
	sc, err := config.LoadSharedConfigProfile(ctx, name, func(o *config.LoadSharedConfigOptions) {
		if s.configFiles != nil {
			o.ConfigFiles = s.configFiles
		}
		if s.credentialsFiles != nil {
			o.CredentialsFiles = s.credentialsFiles
		}
	})
	if err != nil {
		var notExist config.SharedConfigProfileNotExistError
		if errors.As(err, &notExist) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("loading shared AWS profile %q: %w", name, err)
	}

	return &model.Profile{
		Name:     name,
		Provider: model.CloudProviderAWS,
		Region:   sc.Region,
		Credentials: model.Credentials{
			AWS: &model.AWSCredentials{SharedProfile: name},
		},
	}, nil
}

// Well-known profile names served from the environment.
const (
	EnvProfileAzure = "azure"
	EnvProfileGCP   = "gcp"
)

// EnvSource serves the azure and gcp profiles from the standard SDK
// environment variables.
type EnvSource struct {
	lookupEnv func(string) (string, bool)
	readFile  func(string) ([]byte, error)
}

// NewEnvSource reads the process environment.
func NewEnvSource() *EnvSource {
	return &EnvSource{lookupEnv: os.LookupEnv, readFile: os.ReadFile}
}

// Get builds a profile from the environment.
func (s *EnvSource) Get(_ context.Context, name string) (*model.Profile, error) {
	switch name {
	case EnvProfileAzure:
		tenant, ok1 := s.lookupEnv("AZURE_TENANT_ID")
		client, ok2 := s.lookupEnv("AZURE_CLIENT_ID")
		secret, ok3 := s.lookupEnv("AZURE_CLIENT_SECRET")
		sub, ok4 := s.lookupEnv("AZURE_SUBSCRIPTION_ID")
		if !(ok1 && ok2 && ok3 && ok4) {
			return nil, ErrProfileNotFound
		}
		region, _ := s.lookupEnv("AZURE_LOCATION")
		return &model.Profile{
			Name:     name,
			Provider: model.CloudProviderAzure,
			Region:   region,
			Credentials: model.Credentials{Azure: &model.AzureCredentials{
				TenantID:       tenant,
				ClientID:       client,
				ClientSecret:   secret,
				SubscriptionID: sub,
			}},
		}, nil

	case EnvProfileGCP:
		project, ok := s.lookupEnv("GOOGLE_CLOUD_PROJECT")
		if !ok || project == "" {
			return nil, ErrProfileNotFound
		}
		creds := &model.GCPCredentials{ProjectID: project}
		if path, ok := s.lookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok && path != "" {
			data, err := s.readFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading GOOGLE_APPLICATION_CREDENTIALS: %w", err)
			}
			creds.ServiceAccountJSON = string(data)
		}
		region, _ := s.lookupEnv("GOOGLE_CLOUD_REGION")
		return &model.Profile{
			Name:        name,
			Provider:    model.CloudProviderGCP,
			Region:      region,
			Credentials: model.Credentials{GCP: creds},
		}, nil
	}

	return nil, ErrProfileNotFound
}
