package config

import "context"

// SecretProvider resolves secret parameter paths to plaintext values.
// SSMProvider serves deployed environments; EnvVarProvider serves local runs.
type SecretProvider interface {
	// GetParametersBatch returns path -> value for every key it could resolve.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}

var (
	_ SecretProvider = (*SSMProvider)(nil)
	_ SecretProvider = (*EnvVarProvider)(nil)
)

// NewSecretProvider picks the provider for the given APP_ENV value.
func NewSecretProvider(appEnv, region string) SecretProvider {
	if appEnv == localEnv || appEnv == "" {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region)
}
