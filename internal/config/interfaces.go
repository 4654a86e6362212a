package config

import "context"

// SecretProvider abstracts secret retrieval to support both AWS SSM Parameter
// Store (deployed environments) and plain environment variables (local
// development). The interface enables dependency injection for testing.
type SecretProvider interface {
	// GetParametersBatch retrieves multiple secret values, batching requests
	// to avoid throttling. Returns a map of key -> plaintext value for all
	// successfully resolved parameters; missing keys are omitted.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
