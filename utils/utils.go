package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"testrelay-portal/models"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

// Portal variants
const (
	PortalRecruiter = "recruiter"
	PortalCandidate = "candidate"
)

var defaultConfigPaths = []string{".", "./configs", "../", "../../"}

// GetConfig read the configuration from environment variables or config files
func GetConfig() (*models.Config, error) {
	config, err := Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return config, nil
}

// Load initializes and returns the application configuration using Viper
func Load() (*models.Config, error) {
	return LoadFrom(defaultConfigPaths...)
}

// LoadFrom loads configuration searching config.json in the given paths
func LoadFrom(paths ...string) (*models.Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, continue with defaults and env vars
		fmt.Printf("Config file not found (%v), using defaults and environment variables\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	// Handle nested JSON structure from config.json
	flattenNestedConfig(v)

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyPortalDefaults(v, &config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("app_name", "TestRelay Portal")
	v.SetDefault("app_version", "1.0.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_host", "127.0.0.1")
	v.SetDefault("app_port", "8081")

	// Portal defaults
	v.SetDefault("portal_variant", PortalRecruiter)
	v.SetDefault("default_role", "")

	// Identity defaults
	v.SetDefault("identity_api_key", "")
	v.SetDefault("identity_token_url", "https://securetoken.googleapis.com/v1/token")
	v.SetDefault("claims_namespace", models.DefaultClaimsNamespace)
	v.SetDefault("claims_provisioner_url", "")
	v.SetDefault("token_expiry_skew", 5*time.Minute)
	v.SetDefault("token_rotation_interval", 10*time.Minute)

	// GraphQL defaults
	v.SetDefault("graphql_url", "https://api.testrelay.io/v1/graphql")
	v.SetDefault("role_header", "X-Hasura-Role")
	v.SetDefault("business_header", "X-Hasura-Business-Id")
	v.SetDefault("expired_token_marker", "JWTExpired")
	v.SetDefault("http_timeout", 15*time.Second)

	// Selection storage defaults
	v.SetDefault("selection_store", "file")
	v.SetDefault("selection_dir", ".testrelay")

	// AWS defaults
	v.SetDefault("aws_region", "eu-west-2")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("dynamodb_endpoint", "")
	v.SetDefault("dynamodb_table_prefix", "dev")

	// Worker defaults
	v.SetDefault("worker_enabled", true)
	v.SetDefault("rotation_schedule", "@every 1m")
	v.SetDefault("provision_retry_schedule", "@every 30s")
	v.SetDefault("provision_max_retries", 5)
	v.SetDefault("worker_status_file", "")

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// CORS defaults
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})

	// Base Path default
	v.SetDefault("basePath", "/api/v1")

	v.SetDefault("tables", []string{"portal_selection"})
}

// applyPortalDefaults fills variant dependent settings the user left unset
func applyPortalDefaults(v *viper.Viper, c *models.Config) {
	c.Portal = strings.ToLower(strings.TrimSpace(c.Portal))
	if c.DefaultRole == "" {
		c.DefaultRole = c.Portal
	}
	if v.IsSet("provision_on_missing_claims") {
		c.ProvisionOnMissingClaims = v.GetBool("provision_on_missing_claims")
	} else {
		c.ProvisionOnMissingClaims = c.Portal == PortalRecruiter
	}
}

// validate checks if all required configuration is provided
func validate(c *models.Config) error {
	if c.Portal != PortalRecruiter && c.Portal != PortalCandidate {
		return fmt.Errorf("unknown portal variant %q", c.Portal)
	}

	if c.ClaimsNamespace == "" {
		return fmt.Errorf("claims_namespace cannot be empty")
	}

	if _, err := url.ParseRequestURI(c.GraphQLURL); err != nil {
		return fmt.Errorf("invalid graphql_url: %w", err)
	}

	if c.ProvisionOnMissingClaims && c.ClaimsProvisionerURL == "" && c.AppEnv == "production" {
		return fmt.Errorf("CLAIMS_PROVISIONER_URL must be set in production when provisioning is enabled")
	}

	if c.AppEnv == "production" && c.IdentityAPIKey == "" {
		return fmt.Errorf("IDENTITY_API_KEY must be set in production environment")
	}

	switch c.SelectionStore {
	case "file", "dynamodb":
	default:
		return fmt.Errorf("unknown selection_store %q", c.SelectionStore)
	}

	return nil
}

// flattenNestedConfig flattens the nested JSON structure to flat keys for easier mapping
func flattenNestedConfig(v *viper.Viper) {
	nested := map[string]string{
		"app.name":    "app_name",
		"app.version": "app_version",
		"app.env":     "app_env",
		"app.host":    "app_host",
		"app.port":    "app_port",

		"portal.variant":                     "portal_variant",
		"portal.default_role":                "default_role",
		"portal.provision_on_missing_claims": "provision_on_missing_claims",
		"portal.selection_store":             "selection_store",
		"portal.selection_dir":               "selection_dir",

		"identity.api_key":                "identity_api_key",
		"identity.token_url":              "identity_token_url",
		"identity.claims_namespace":       "claims_namespace",
		"identity.claims_provisioner_url": "claims_provisioner_url",
		"identity.token_expiry_skew":      "token_expiry_skew",
		"identity.token_rotation_interval": "token_rotation_interval",

		"api.graphql_url":          "graphql_url",
		"api.role_header":          "role_header",
		"api.business_header":      "business_header",
		"api.expired_token_marker": "expired_token_marker",
		"api.timeout":              "http_timeout",

		"aws.region":                "aws_region",
		"aws.access_key_id":         "aws_access_key_id",
		"aws.secret_access_key":     "aws_secret_access_key",
		"aws.dynamodb_endpoint":     "dynamodb_endpoint",
		"aws.dynamodb_table_prefix": "dynamodb_table_prefix",

		"worker.enabled":                  "worker_enabled",
		"worker.rotation_schedule":        "rotation_schedule",
		"worker.provision_retry_schedule": "provision_retry_schedule",
		"worker.provision_max_retries":    "provision_max_retries",
		"worker.status_file":              "worker_status_file",

		"logging.level":  "log_level",
		"logging.format": "log_format",

		"cors.origins": "cors_origins",
	}

	for from, to := range nested {
		if v.IsSet(from) {
			v.Set(to, v.Get(from))
		}
	}
}

// PrintPrettyJSON takes any struct or map and prints it as pretty JSON
func PrintPrettyJSON(data interface{}) string {
	prettyJSON, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		fmt.Println("Failed to generate JSON:", err)
		return ""
	}
	return string(prettyJSON)
}

// GenerateUUID returns a new UUID string
func GenerateUUID() string {
	return uuid.New().String()
}

// WriteFileAtomic writes data to a temp file next to path and renames it into place
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempFile := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tempFile, perm); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile) // Clean up temp file
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
