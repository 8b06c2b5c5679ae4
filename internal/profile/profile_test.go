package profile

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
)

func writeStore(t *testing.T, doc string) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write profile store: %v", err)
	}
	return NewFileStore(path)
}

func TestFileStoreDefaultProfile(t *testing.T) {
	store := writeStore(t, `
default:
  openai_api_key: sk-default-0123456789abcdef
  anthropic_api_key: sk-ant-default-0123456789
`)

	prof, err := store.Lookup(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if prof.OpenAIAPIKey != "sk-default-0123456789abcdef" {
		t.Errorf("OpenAIAPIKey = %q, want default key", prof.OpenAIAPIKey)
	}
	if prof.AnthropicAPIKey != "sk-ant-default-0123456789" {
		t.Errorf("AnthropicAPIKey = %q, want default key", prof.AnthropicAPIKey)
	}
}

func TestFileStoreCallerOverride(t *testing.T) {
	store := writeStore(t, `
default:
  openai_api_key: sk-default-0123456789abcdef
  groq_api_key: gsk_default0123456789abcdef
callers:
  10.0.0.7:
    openai_api_key: sk-caller-0123456789abcdef
`)

	prof, err := store.Lookup(context.Background(), "10.0.0.7")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if prof.OpenAIAPIKey != "sk-caller-0123456789abcdef" {
		t.Errorf("OpenAIAPIKey = %q, want caller override", prof.OpenAIAPIKey)
	}
	if prof.GroqAPIKey != "gsk_default0123456789abcdef" {
		t.Errorf("GroqAPIKey = %q, want default retained", prof.GroqAPIKey)
	}
}

func TestFileStoreUnknownCallerGetsDefault(t *testing.T) {
	store := writeStore(t, `
default:
  openai_api_key: sk-default-0123456789abcdef
callers:
  10.0.0.7:
    openai_api_key: sk-caller-0123456789abcdef
`)

	prof, err := store.Lookup(context.Background(), "198.51.100.9")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if prof.OpenAIAPIKey != "sk-default-0123456789abcdef" {
		t.Errorf("OpenAIAPIKey = %q, want default key", prof.OpenAIAPIKey)
	}
}

func TestFileStoreExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "sk-from-env-0123456789abc")
	store := writeStore(t, `
default:
  openai_api_key: ${TEST_GATEWAY_KEY}
`)

	prof, err := store.Lookup(context.Background(), "192.0.2.1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if prof.OpenAIAPIKey != "sk-from-env-0123456789abc" {
		t.Errorf("OpenAIAPIKey = %q, want env-expanded key", prof.OpenAIAPIKey)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := store.Lookup(context.Background(), "192.0.2.1"); err == nil {
		t.Fatal("Lookup() error = nil, want read failure")
	}
}

func TestFileStoreMalformedDocument(t *testing.T) {
	store := writeStore(t, "default: [not, a, profile]\n")
	if _, err := store.Lookup(context.Background(), "192.0.2.1"); err == nil {
		t.Fatal("Lookup() error = nil, want parse failure")
	}
}

func TestCredentialResolves(t *testing.T) {
	prof := Profile{AnthropicAPIKey: "sk-ant-REDACTED"}

	secret, err := Credential(prof, models.VendorAnthropic)
	if err != nil {
		t.Fatalf("Credential() error = %v", err)
	}
	if secret.Expose() != "sk-ant-REDACTED" {
		t.Errorf("Expose() = %q, want configured key", secret.Expose())
	}
}

func TestCredentialMissingKeyIsAuthError(t *testing.T) {
	_, err := Credential(Profile{}, models.VendorOpenAI)
	if err == nil {
		t.Fatal("Credential() error = nil, want auth error")
	}

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Credential() error type = %T, want *apierr.Error", err)
	}
	if apiErr.Code != apierr.CodeAuth {
		t.Errorf("Code = %q, want %q", apiErr.Code, apierr.CodeAuth)
	}
	if apiErr.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want %d", apiErr.HTTPStatus, http.StatusUnauthorized)
	}
}

func TestCredentialMalformedKeyIsValidationError(t *testing.T) {
	tests := []struct {
		name   string
		prof   Profile
		vendor models.Vendor
	}{
		{
			name:   "wrong prefix",
			prof:   Profile{OpenAIAPIKey: "gsk_wrongvendor0123456789"},
			vendor: models.VendorOpenAI,
		},
		{
			name:   "too short",
			prof:   Profile{GroqAPIKey: "gsk_short"},
			vendor: models.VendorGroq,
		},
		{
			name:   "google too short",
			prof:   Profile{GoogleAPIKey: "abc123"},
			vendor: models.VendorGoogle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Credential(tt.prof, tt.vendor)
			if err == nil {
				t.Fatal("Credential() error = nil, want validation error")
			}

			var apiErr *apierr.Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("Credential() error type = %T, want *apierr.Error", err)
			}
			if apiErr.Code != apierr.CodeValidation {
				t.Errorf("Code = %q, want %q", apiErr.Code, apierr.CodeValidation)
			}
			if apiErr.HTTPStatus != http.StatusBadRequest {
				t.Errorf("HTTPStatus = %d, want %d", apiErr.HTTPStatus, http.StatusBadRequest)
			}
		})
	}
}

func TestOrganizationIDOnlyForOpenAI(t *testing.T) {
	prof := Profile{OpenAIOrganizationID: " org-acme "}

	if got := OrganizationID(prof, models.VendorOpenAI); got != "org-acme" {
		t.Errorf("OrganizationID(openai) = %q, want %q", got, "org-acme")
	}
	if got := OrganizationID(prof, models.VendorGroq); got != "" {
		t.Errorf("OrganizationID(groq) = %q, want empty", got)
	}
}
