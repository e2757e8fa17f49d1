// Package tenant defines the per-customer configuration snapshot consumed by
// the chat pipeline, the conversation message types, and a PostgreSQL-backed
// store for resolving tenants at the HTTP boundary.
//
// A Tenant value is immutable for the duration of a chat turn: the settings
// dashboard owns mutation, the pipeline only reads.
package tenant

import (
	"errors"
	"fmt"
	"time"
)

// Provider identifies a model backend. The set is closed; anything else is a
// configuration error.
type Provider string

// Supported model providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
)

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	switch p {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

// Sentinel errors for tenant resolution and validation.
var (
	// ErrNotFound indicates no tenant exists for the given slug or ID.
	ErrNotFound = errors.New("tenant not found")

	// ErrInvalidConfig indicates the tenant record is malformed
	// (unknown provider, out-of-range temperature).
	ErrInvalidConfig = errors.New("invalid tenant configuration")
)

// Tenant is the configuration snapshot used for one chat turn.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Bot configuration.
	Instructions   string   `json:"instructions"`
	Provider       Provider `json:"modelProvider"`
	ModelName      string   `json:"modelName"`
	Temperature    float32  `json:"temperature"`
	WelcomeMessage string   `json:"welcomeMessage"`

	// Optional per-tenant credentials overriding the platform defaults.
	// Never serialized.
	OpenAIAPIKey    string `json:"-"`
	AnthropicAPIKey string `json:"-"`
	GoogleAPIKey    string `json:"-"`

	// Widget settings.
	WidgetEnabled bool `json:"widgetEnabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// APIKey returns the tenant-level credential for the given provider,
// or empty string when the tenant carries no override.
func (t *Tenant) APIKey(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return t.OpenAIAPIKey
	case ProviderAnthropic:
		return t.AnthropicAPIKey
	case ProviderGoogle:
		return t.GoogleAPIKey
	}
	return ""
}

// Validate checks the fields the chat pipeline depends on.
// A tenant that fails validation must never reach model invocation.
func (t *Tenant) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConfig)
	}
	if !t.Provider.Valid() {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, t.Provider)
	}
	if t.ModelName == "" {
		return fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}
	if t.Temperature < 0 || t.Temperature > 1 {
		return fmt.Errorf("%w: temperature %v out of range [0,1]", ErrInvalidConfig, t.Temperature)
	}
	return nil
}
