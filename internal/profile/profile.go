// Package profile resolves caller profiles and extracts per-vendor
// credentials from them. Profiles are an external collaborator: the gateway
// only reads them and never caches a credential beyond the request that
// resolved it.
package profile

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"chat-gateway/internal/models"
)

// Profile holds the per-vendor credentials configured for one caller. Field
// names mirror the profile document keys (<vendor>_api_key).
type Profile struct {
	OpenAIAPIKey         string `yaml:"openai_api_key"`
	OpenAIOrganizationID string `yaml:"openai_organization_id"`
	GroqAPIKey           string `yaml:"groq_api_key"`
	OpenRouterAPIKey     string `yaml:"openrouter_api_key"`
	PerplexityAPIKey     string `yaml:"perplexity_api_key"`
	AnthropicAPIKey      string `yaml:"anthropic_api_key"`
	GoogleAPIKey         string `yaml:"google_api_key"`
}

// APIKey returns the raw key configured for vendor, or "" when absent.
func (p Profile) APIKey(vendor models.Vendor) string {
	switch vendor {
	case models.VendorOpenAI:
		return p.OpenAIAPIKey
	case models.VendorGroq:
		return p.GroqAPIKey
	case models.VendorOpenRouter:
		return p.OpenRouterAPIKey
	case models.VendorPerplexity:
		return p.PerplexityAPIKey
	case models.VendorAnthropic:
		return p.AnthropicAPIKey
	case models.VendorGoogle:
		return p.GoogleAPIKey
	default:
		return ""
	}
}

// Store supplies caller profiles. Implementations are read-only from the
// gateway's perspective.
type Store interface {
	Lookup(ctx context.Context, callerID string) (Profile, error)
}

// FileStore reads profiles from a YAML document on every lookup, so edits
// take effect without a restart and no credential outlives the request that
// read it. The document has a default profile plus optional per-caller
// overrides:
//
//	default:
//	  openai_api_key: ${OPENAI_API_KEY}
//	callers:
//	  10.0.0.7:
//	    openai_api_key: sk-caller-specific
//
// Values are expanded against the process environment, so keys can be
// referenced as ${VAR} instead of stored literally.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the YAML document at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type profileDocument struct {
	Default Profile            `yaml:"default"`
	Callers map[string]Profile `yaml:"callers"`
}

// Lookup reads the profile document and returns the effective profile for
// callerID: the default profile with any non-empty caller-specific fields
// laid over it.
func (s *FileStore) Lookup(ctx context.Context, callerID string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile store: %w", err)
	}

	var doc profileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("parse profile store: %w", err)
	}

	prof := doc.Default
	if override, ok := doc.Callers[callerID]; ok {
		prof = merge(prof, override)
	}
	return expand(prof), nil
}

func merge(base, override Profile) Profile {
	out := base
	if override.OpenAIAPIKey != "" {
		out.OpenAIAPIKey = override.OpenAIAPIKey
	}
	if override.OpenAIOrganizationID != "" {
		out.OpenAIOrganizationID = override.OpenAIOrganizationID
	}
	if override.GroqAPIKey != "" {
		out.GroqAPIKey = override.GroqAPIKey
	}
	if override.OpenRouterAPIKey != "" {
		out.OpenRouterAPIKey = override.OpenRouterAPIKey
	}
	if override.PerplexityAPIKey != "" {
		out.PerplexityAPIKey = override.PerplexityAPIKey
	}
	if override.AnthropicAPIKey != "" {
		out.AnthropicAPIKey = override.AnthropicAPIKey
	}
	if override.GoogleAPIKey != "" {
		out.GoogleAPIKey = override.GoogleAPIKey
	}
	return out
}

func expand(p Profile) Profile {
	p.OpenAIAPIKey = os.ExpandEnv(p.OpenAIAPIKey)
	p.OpenAIOrganizationID = os.ExpandEnv(p.OpenAIOrganizationID)
	p.GroqAPIKey = os.ExpandEnv(p.GroqAPIKey)
	p.OpenRouterAPIKey = os.ExpandEnv(p.OpenRouterAPIKey)
	p.PerplexityAPIKey = os.ExpandEnv(p.PerplexityAPIKey)
	p.AnthropicAPIKey = os.ExpandEnv(p.AnthropicAPIKey)
	p.GoogleAPIKey = os.ExpandEnv(p.GoogleAPIKey)
	return p
}
