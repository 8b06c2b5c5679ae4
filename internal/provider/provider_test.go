package provider

import (
	"context"
	"errors"
	"testing"

	"chat-gateway/internal/models"
	"chat-gateway/internal/stream"
)

type stubProvider struct {
	name models.Vendor
}

func (s stubProvider) Name() models.Vendor { return s.name }

func (s stubProvider) Send(ctx context.Context, cred Credential, settings models.ChatSettings, messages []models.Message) (*stream.Stream, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubProvider{name: models.VendorOpenAI}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p, err := r.Lookup(models.VendorOpenAI)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if p.Name() != models.VendorOpenAI {
		t.Errorf("Name() = %q, want %q", p.Name(), models.VendorOpenAI)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubProvider{name: models.VendorGroq}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(stubProvider{name: models.VendorGroq}); err == nil {
		t.Fatal("Register() error = nil, want duplicate rejection")
	}
}

func TestRegistryLookupUnknownVendor(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup(models.VendorAnthropic)
	if !errors.Is(err, ErrVendorNotConfigured) {
		t.Fatalf("Lookup() error = %v, want ErrVendorNotConfigured", err)
	}
}

func TestRegistryVendorsListsRegistered(t *testing.T) {
	r := NewRegistry()
	for _, v := range []models.Vendor{models.VendorGoogle, models.VendorOpenAI} {
		if err := r.Register(stubProvider{name: v}); err != nil {
			t.Fatalf("Register(%s) error = %v", v, err)
		}
	}

	got := r.Vendors()
	if len(got) != 2 {
		t.Fatalf("Vendors() returned %d entries, want 2", len(got))
	}
	// AllVendors order: openai first, google last.
	if got[0] != models.VendorOpenAI || got[1] != models.VendorGoogle {
		t.Errorf("Vendors() = %v, want [openai google]", got)
	}
}
