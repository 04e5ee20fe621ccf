package model

// Profile binds a name to the credentials and default region of one cloud account.
type Profile struct {
	Name        string        `json:"name" yaml:"name"`
	Provider    CloudProvider `json:"provider" yaml:"provider"`
	Region      string        `json:"region,omitempty" yaml:"region,omitempty"`
	Credentials Credentials   `json:"-" yaml:"credentials"`
	// Source records which lookup tier produced the profile.
	Source string `json:"source,omitempty" yaml:"-"`
}

// Credentials is the opaque credential handle of a profile. Exactly one of the
// provider blocks is expected to be set.
type Credentials struct {
	AWS   *AWSCredentials   `json:"aws,omitempty" yaml:"aws,omitempty"`
	Azure *AzureCredentials `json:"azure,omitempty" yaml:"azure,omitempty"`
	GCP   *GCPCredentials   `json:"gcp,omitempty" yaml:"gcp,omitempty"`
}

// AWSCredentials holds AWS access credentials. When SharedProfile is set the
// local AWS CLI configuration is used instead of static keys.
type AWSCredentials struct {
	AccessKeyID   string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty"`
	SecretKey     string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	SessionToken  string `json:"session_token,omitempty" yaml:"session_token,omitempty"`
	SharedProfile string `json:"shared_profile,omitempty" yaml:"shared_profile,omitempty"`
	AssumeRoleARN string `json:"assume_role_arn,omitempty" yaml:"assume_role_arn,omitempty"`
	ExternalID    string `json:"external_id,omitempty" yaml:"external_id,omitempty"`
}

// AzureCredentials holds Azure service principal credentials.
type AzureCredentials struct {
	TenantID       string `json:"tenant_id" yaml:"tenant_id"`
	ClientID       string `json:"client_id" yaml:"client_id"`
	ClientSecret   string `json:"client_secret" yaml:"client_secret"`
	SubscriptionID string `json:"subscription_id" yaml:"subscription_id"`
}

// GCPCredentials identifies a GCP project and the service account used to read it.
type GCPCredentials struct {
	ProjectID          string `json:"projectId" yaml:"project_id"`
	ServiceAccountJSON string `json:"serviceAccountJson,omitempty" yaml:"service_account_json,omitempty"`
	BillingAccountID   string `json:"billingAccountId,omitempty" yaml:"billing_account_id,omitempty"`
}
