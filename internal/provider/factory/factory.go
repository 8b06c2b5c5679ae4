package factory

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"chat-gateway/internal/config"
	"chat-gateway/internal/models"
	"chat-gateway/internal/provider"
	anthropicProvider "chat-gateway/internal/provider/anthropic"
	googleProvider "chat-gateway/internal/provider/google"
	"chat-gateway/internal/provider/openaicompat"
)

const (
	defaultHeaderTimeout   = 60 * time.Second
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs an adapter for every provider
// section present in the configuration and stores them in the registry.
func RegisterConfiguredProviders(cfg config.Config, registry *provider.Registry) error {
	if registry == nil {
		return errors.New("registry must not be nil")
	}

	compat := []struct {
		vendor  models.Vendor
		section *config.ProviderConfig
	}{
		{models.VendorOpenAI, cfg.Providers.OpenAI},
		{models.VendorGroq, cfg.Providers.Groq},
		{models.VendorOpenRouter, cfg.Providers.OpenRouter},
		{models.VendorPerplexity, cfg.Providers.Perplexity},
	}
	for _, entry := range compat {
		if entry.section == nil {
			continue
		}
		p, err := openaicompat.New(entry.vendor, *entry.section, newHTTPClient())
		if err != nil {
			return fmt.Errorf("initialise %s provider: %w", entry.vendor, err)
		}
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register %s provider: %w", entry.vendor, err)
		}
	}

	if cfg.Providers.Anthropic != nil {
		p, err := anthropicProvider.New(*cfg.Providers.Anthropic, newHTTPClient())
		if err != nil {
			return fmt.Errorf("initialise anthropic provider: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register anthropic provider: %w", err)
		}
	}

	if cfg.Providers.Google != nil {
		p, err := googleProvider.New(*cfg.Providers.Google, newHTTPClient())
		if err != nil {
			return fmt.Errorf("initialise google provider: %w", err)
		}
		if err := registry.Register(p); err != nil {
			return fmt.Errorf("register google provider: %w", err)
		}
	}

	return nil
}

// newHTTPClient builds a client for streaming upstream calls. There is no
// client-level timeout: that would cap the whole body read and kill long
// streams. ResponseHeaderTimeout bounds the wait for upstream headers
// instead; the per-request context bounds everything else.
func newHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: defaultHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}
}
