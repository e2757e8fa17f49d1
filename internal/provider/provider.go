// Package provider resolves a tenant's LLM configuration into a ready
// Genkit handle. Resolution is stateless: every call builds a fresh Genkit
// instance with only the requested tenant's credential, so keys never leak
// between tenants through shared plugin state.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/anthropic"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/openai/openai-go/option"

	"github.com/relaydesk/relaydesk/internal/tenant"
)

// ErrMissingAPIKey reports that neither the tenant nor the platform holds a
// credential for the tenant's configured provider.
var ErrMissingAPIKey = errors.New("no API key configured for provider")

// ErrUnknownProvider reports a provider name outside the supported set.
var ErrUnknownProvider = errors.New("unknown model provider")

// Handle is a resolved generation target: a Genkit instance with the
// tenant's provider plugin loaded, plus the fully qualified model name to
// pass to generation.
type Handle struct {
	Genkit    *genkit.Genkit
	ModelName string
}

// PlatformKeys holds the platform-level fallback credentials, used when a
// tenant has not supplied its own key.
type PlatformKeys struct {
	OpenAI    string
	Anthropic string
	Google    string
}

// ForProvider returns the platform key for p, or "".
func (k PlatformKeys) ForProvider(p tenant.Provider) string {
	switch p {
	case tenant.ProviderOpenAI:
		return k.OpenAI
	case tenant.ProviderAnthropic:
		return k.Anthropic
	case tenant.ProviderGoogle:
		return k.Google
	}
	return ""
}

// entry describes one supported provider: a constructor binding a credential
// to a fresh Genkit instance, and the model-name prefix its plugin expects.
type entry struct {
	build  func(ctx context.Context, apiKey string) *genkit.Genkit
	prefix string
}

// registry is the closed set of supported providers. Adding one is a single
// entry here plus its tenant.Provider constant.
var registry = map[tenant.Provider]entry{
	tenant.ProviderOpenAI: {
		prefix: "openai",
		build: func(ctx context.Context, key string) *genkit.Genkit {
			return genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{
				Opts: []option.RequestOption{option.WithAPIKey(key)},
			}))
		},
	},
	tenant.ProviderAnthropic: {
		prefix: "anthropic",
		build: func(ctx context.Context, key string) *genkit.Genkit {
			return genkit.Init(ctx, genkit.WithPlugins(&anthropic.Anthropic{
				Opts: []option.RequestOption{option.WithAPIKey(key)},
			}))
		},
	},
	tenant.ProviderGoogle: {
		prefix: "googleai",
		build: func(ctx context.Context, key string) *genkit.Genkit {
			return genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: key}))
		},
	},
}

// Resolve builds a Handle for the tenant's provider and model. The tenant's
// own key wins over the platform key; with neither present the turn cannot
// proceed and ErrMissingAPIKey is returned naming the provider.
func Resolve(ctx context.Context, t *tenant.Tenant, platform PlatformKeys) (*Handle, error) {
	e, ok := registry[t.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, t.Provider)
	}

	key := t.APIKey(t.Provider)
	if key == "" {
		key = platform.ForProvider(t.Provider)
	}
	if key == "" {
		return nil, fmt.Errorf("provider %s: %w", t.Provider, ErrMissingAPIKey)
	}

	return &Handle{
		Genkit:    e.build(ctx, key),
		ModelName: e.prefix + "/" + t.ModelName,
	}, nil
}
