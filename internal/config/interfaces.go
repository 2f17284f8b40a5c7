package config

import "context"

// SecretProvider resolves secret values by identifier: SSM parameter paths in
// deployed environments, environment variable names locally.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every key it could
	// resolve. Unresolved keys are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
