package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finopsmind/costengine/internal/apierrors"
	"github.com/finopsmind/costengine/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticStore(profiles ...model.Profile) Store {
	return StoreFunc(func(_ context.Context, name string) (*model.Profile, error) {
		for i := range profiles {
			if profiles[i].Name == name {
				return &profiles[i], nil
			}
		}
		return nil, ErrProfileNotFound
	})
}

func TestResolverTwoTiers(t *testing.T) {
	saved := staticStore(model.Profile{Name: "prod", Provider: model.CloudProviderAWS, Region: "eu-west-1"})
	ambient := staticStore(
		model.Profile{Name: "prod", Provider: model.CloudProviderAWS, Region: "us-west-2"},
		model.Profile{Name: "dev", Provider: model.CloudProviderAWS},
	)
	r := NewResolver(saved, ambient, "us-east-1", testLogger())
	ctx := context.Background()

	p, err := r.Resolve(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", p.Region)
	assert.Equal(t, SourceSaved, p.Source)

	p, err = r.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, SourceAmbient, p.Source)

	_, err = r.Resolve(ctx, "missing")
	assert.True(t, errors.Is(err, apierrors.ErrCredentialNotFound))

	assert.Equal(t, "eu-west-1", r.ResolveRegion(ctx, "prod"))
	assert.Equal(t, "us-east-1", r.ResolveRegion(ctx, "dev"))
	assert.Equal(t, "us-east-1", r.ResolveRegion(ctx, "missing"))
}

func TestResolverRegionFallsThroughTiers(t *testing.T) {
	saved := staticStore(model.Profile{Name: "prod", Provider: model.CloudProviderAWS})
	ambient := staticStore(model.Profile{Name: "prod", Provider: model.CloudProviderAWS, Region: "ap-south-1"})
	r := NewResolver(saved, ambient, "us-east-1", testLogger())

	assert.Equal(t, "ap-south-1", r.ResolveRegion(context.Background(), "prod"))
}

func TestResolverSavedStoreFailureFallsBack(t *testing.T) {
	broken := StoreFunc(func(context.Context, string) (*model.Profile, error) {
		return nil, errors.New("connection refused")
	})
	ambient := staticStore(model.Profile{Name: "prod", Provider: model.CloudProviderAWS})
	r := NewResolver(broken, ambient, "us-east-1", testLogger())

	p, err := r.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, SourceAmbient, p.Source)
}

func TestResolverNilStores(t *testing.T) {
	r := NewResolver(nil, nil, "us-east-1", testLogger())
	_, err := r.Resolve(context.Background(), "any")
	assert.True(t, errors.Is(err, apierrors.ErrCredentialNotFound))
	_, err = r.Resolve(context.Background(), "")
	assert.True(t, errors.Is(err, apierrors.ErrCredentialNotFound))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  - name: prod
    provider: aws
    region: eu-central-1
    credentials:
      aws:
        access_key_id: AKIAEXAMPLE
        secret_key: secret
  - name: azure-main
    provider: azure
    credentials:
      azure:
        tenant_id: t
        client_id: c
        client_secret: s
        subscription_id: sub
`), 0o600))

	s := NewFileStore(path)
	p, err := s.Get(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", p.Region)
	require.NotNil(t, p.Credentials.AWS)
	assert.Equal(t, "AKIAEXAMPLE", p.Credentials.AWS.AccessKeyID)

	p, err = s.Get(context.Background(), "azure-main")
	require.NoError(t, err)
	assert.Equal(t, "sub", p.Credentials.Azure.SubscriptionID)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = NewFileStore(filepath.Join(dir, "absent.yaml")).Get(context.Background(), "prod")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFileStoreRejectsUnknownProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - name: x\n    provider: oracle\n"), 0o600))

	_, err := NewFileStore(path).Get(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrProfileNotFound)
}

func TestChainStore(t *testing.T) {
	broken := StoreFunc(func(context.Context, string) (*model.Profile, error) {
		return nil, errors.New("db down")
	})
	chain := ChainStore{staticStore(), broken, staticStore(model.Profile{Name: "prod"})}

	p, err := chain.Get(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "prod", p.Name)

	_, err = chain.Get(context.Background(), "other")
	assert.EqualError(t, err, "db down")

	_, err = ChainStore{staticStore()}.Get(context.Background(), "other")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAWSSharedConfigSource(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config")
	credPath := filepath.Join(dir, "credentials")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[profile staging]\nregion = us-west-2\n"), 0o600))
	require.NoError(t, os.WriteFile(credPath, []byte("[staging]\naws_access_key_id = AKIA\naws_secret_access_key = s\n"), 0o600))

	src := NewAWSSharedConfigSource().WithFiles([]string{cfgPath}, []string{credPath})

	p, err := src.Get(context.Background(), "staging")
	require.NoError(t, err)
	assert.Equal(t, "us-west-2", p.Region)
	assert.Equal(t, model.CloudProviderAWS, p.Provider)
	assert.Equal(t, "staging", p.Credentials.AWS.SharedProfile)

	_, err = src.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestEnvSource(t *testing.T) {
	env := map[string]string{
		"AZURE_TENANT_ID":       "tenant",
		"AZURE_CLIENT_ID":       "client",
		"AZURE_CLIENT_SECRET":   "secret",
		"AZURE_SUBSCRIPTION_ID": "sub",
		"GOOGLE_CLOUD_PROJECT":  "my-project",
		"GOOGLE_APPLICATION_CREDENTIALS": "/keys/sa.json",
	}
	src := &EnvSource{
		lookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
		readFile: func(path string) ([]byte, error) {
			assert.Equal(t, "/keys/sa.json", path)
			return []byte(`{"type":"service_account"}`), nil
		},
	}

	p, err := src.Get(context.Background(), EnvProfileAzure)
	require.NoError(t, err)
	assert.Equal(t, "sub", p.Credentials.Azure.SubscriptionID)

	p, err = src.Get(context.Background(), EnvProfileGCP)
	require.NoError(t, err)
	assert.Equal(t, "my-project", p.Credentials.GCP.ProjectID)
	assert.Contains(t, p.Credentials.GCP.ServiceAccountJSON, "service_account")

	_, err = src.Get(context.Background(), "prod")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	delete(env, "AZURE_CLIENT_SECRET")
	_, err = src.Get(context.Background(), EnvProfileAzure)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
