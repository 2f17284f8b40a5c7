// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent).
//  2. Scan environment for _SSM_PARAM suffix variables.
//  3. If APP_ENV != "local", resolve SSM parameters via the SecretProvider
//     and inject the resolved values back into the environment.
//  4. Use envconfig to process struct tags and populate the Config struct.
//  5. Populate BuildInfo from linker-injected variables.
//  6. Validate the struct using go-playground/validator.
//
// Which secrets are required depends on the binary, so the per-binary checks
// live in RequireCommerce and RequireWebhook rather than in struct tags.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is the diagnostic error type returned by LoadConfig.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix marks pointer variables: COINBASE_WEBHOOK_SECRET_SSM_PARAM
// holds the SSM path of COINBASE_WEBHOOK_SECRET.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution.
const localEnv = "local"

// ssmTimeout bounds the whole SSM resolution step.
const ssmTimeout = 30 * time.Second

// loaderDeps holds the injectable environment accessors so tests do not
// depend on process-global state beyond t.Setenv.
type loaderDeps struct {
	lookupEnv  func(key string) (string, bool)
	setEnv     func(key, value string) error
	environ    func() []string
	dotenvFile []string
}

func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the configuration.
//
// provider resolves _SSM_PARAM pointers outside the local environment. It
// may be nil when APP_ENV is "local" or when no pointers are present.
func LoadConfig(provider SecretProvider) (*Config, error) {
	return loadConfigWithDeps(provider, defaultDeps())
}

func loadConfigWithDeps(provider SecretProvider, deps loaderDeps) (*Config, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load(deps.dotenvFile...)

	appEnv, _ := deps.lookupEnv("APP_ENV")
	if appEnv != localEnv {
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	cfg.Build = NewBuildInfo()

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// RequireCommerce reports an ErrMissingEnv ConfigError when the Commerce API
// key is not configured.
func (c *Config) RequireCommerce() error {
	if c.Commerce.APIKey.IsZero() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "COINBASE_COMMERCE_API_KEY is required",
		}
	}
	return nil
}

// RequireWebhook reports an ErrMissingEnv ConfigError when the webhook
// shared secret is not configured.
func (c *Config) RequireWebhook() error {
	if c.Webhook.Secret.IsZero() {
		return &ConfigError{
			Type:    ErrMissingEnv,
			Message: "COINBASE_WEBHOOK_SECRET is required",
		}
	}
	return nil
}

// resolveSSMParams fetches every X_SSM_PARAM=/path pointer whose target X is
// not already set and injects the resolved value as X. Already-set targets
// are left alone (Env > Dotenv > SSM). Several pointers may name the same
// path; each of their targets receives the value.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	pathToTargets := make(map[string][]string)

	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasSuffix(key, ssmParamSuffix) || path == "" {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, exists := deps.lookupEnv(target); exists {
			continue
		}
		pathToTargets[path] = append(pathToTargets[path], target)
	}

	if len(pathToTargets) == 0 {
		return nil
	}

	paths := make([]string, 0, len(pathToTargets))
	for path, targets := range pathToTargets {
		sort.Strings(targets)
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if provider == nil {
		targets := make([]string, 0, len(paths))
		for _, path := range paths {
			targets = append(targets, pathToTargets[path]...)
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		targets := pathToTargets[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets...)
			continue
		}
		for _, target := range targets {
			if err := deps.setEnv(target, value); err != nil {
				return &ConfigError{
					Type:    ErrSSMResolution,
					Message: fmt.Sprintf("failed to set resolved value for %s", target),
					Err:     err,
				}
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}
