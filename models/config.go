package models

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Application
	AppName    string `mapstructure:"app_name"`
	AppVersion string `mapstructure:"app_version"`
	AppEnv     string `mapstructure:"app_env"`
	AppHost    string `mapstructure:"app_host"`
	AppPort    string `mapstructure:"app_port"`

	// Portal variant
	Portal                   string `mapstructure:"portal_variant"` // recruiter or candidate
	DefaultRole              string `mapstructure:"default_role"`
	ProvisionOnMissingClaims bool   `mapstructure:"provision_on_missing_claims"`

	// Identity provider
	IdentityAPIKey        string        `mapstructure:"identity_api_key"`
	IdentityTokenURL      string        `mapstructure:"identity_token_url"`
	ClaimsNamespace       string        `mapstructure:"claims_namespace"`
	ClaimsProvisionerURL  string        `mapstructure:"claims_provisioner_url"`
	TokenExpirySkew       time.Duration `mapstructure:"token_expiry_skew"`
	TokenRotationInterval time.Duration `mapstructure:"token_rotation_interval"`

	// GraphQL API
	GraphQLURL         string        `mapstructure:"graphql_url"`
	RoleHeader         string        `mapstructure:"role_header"`
	BusinessHeader     string        `mapstructure:"business_header"`
	ExpiredTokenMarker string        `mapstructure:"expired_token_marker"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`

	// Business selection storage
	SelectionStore string `mapstructure:"selection_store"` // file or dynamodb
	SelectionDir   string `mapstructure:"selection_dir"`

	// AWS
	AWSRegion           string `mapstructure:"aws_region"`
	AWSAccessKeyID      string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey  string `mapstructure:"aws_secret_access_key"`
	DynamoDBEndpoint    string `mapstructure:"dynamodb_endpoint"`
	DynamoDBTablePrefix string `mapstructure:"dynamodb_table_prefix"`

	// Worker
	WorkerEnabled          bool   `mapstructure:"worker_enabled"`
	RotationSchedule       string `mapstructure:"rotation_schedule"`
	ProvisionRetrySchedule string `mapstructure:"provision_retry_schedule"`
	ProvisionMaxRetries    int    `mapstructure:"provision_max_retries"`
	WorkerStatusFile       string `mapstructure:"worker_status_file"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// CORS
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Base Path
	BasePath string `mapstructure:"basePath"`

	Tables []string `mapstructure:"tables"`
}

// BridgeConfig parameterizes the session bridge per portal variant.
type BridgeConfig struct {
	DefaultRole              string
	ClaimsNamespace          string
	ProvisionOnMissingClaims bool
	// BusinessID is sent along with the default role when set.
	BusinessID *int64
}

// BridgeConfig derives the bridge settings from the application config.
func (c *Config) BridgeConfig() BridgeConfig {
	return BridgeConfig{
		DefaultRole:              c.DefaultRole,
		ClaimsNamespace:          c.ClaimsNamespace,
		ProvisionOnMissingClaims: c.ProvisionOnMissingClaims,
	}
}

// StatusFilePath returns where the background worker records its status.
func (c *Config) StatusFilePath() string {
	if c.WorkerStatusFile != "" {
		return c.WorkerStatusFile
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("testrelay-portal-status-%s-%s.json", c.Portal, c.AppEnv))
}
