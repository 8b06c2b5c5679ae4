package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"chat-gateway/internal/models"
	"chat-gateway/internal/stream"
)

// ErrVendorNotConfigured indicates the requested vendor has no registered
// adapter on this gateway.
var ErrVendorNotConfigured = errors.New("vendor not configured")

// Credential carries the per-request secret material an adapter needs to
// authenticate with its vendor. It is resolved fresh for every request and
// must never be retained past the call that received it.
type Credential struct {
	APIKey       models.Secret
	Organization string
}

// Provider adapts one vendor's chat API to the gateway's uniform contract.
// Send performs exactly one upstream attempt and returns the response as a
// fragment stream; adapters never retry, because a completion request may
// bill on the vendor side even when the response is lost.
type Provider interface {
	Name() models.Vendor
	Send(ctx context.Context, cred Credential, settings models.ChatSettings, messages []models.Message) (*stream.Stream, error)
}

// Registry maintains the mapping of vendor names to adapters.
type Registry struct {
	mu     sync.RWMutex
	byName map[models.Vendor]Provider
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[models.Vendor]Provider)}
}

// Register adds the adapter under its vendor name.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return errors.New("provider must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("provider %q already registered", p.Name())
	}
	r.byName[p.Name()] = p
	return nil
}

// Lookup returns the adapter registered for vendor.
func (r *Registry) Lookup(vendor models.Vendor) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byName[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrVendorNotConfigured, vendor)
	}
	return p, nil
}

// Vendors lists the vendor names with a registered adapter.
func (r *Registry) Vendors() []models.Vendor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Vendor, 0, len(r.byName))
	for _, v := range models.AllVendors() {
		if _, ok := r.byName[v]; ok {
			out = append(out, v)
		}
	}
	return out
}
