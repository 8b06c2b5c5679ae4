// Package google adapts the Gemini generateContent API to the gateway's
// uniform contract.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/config"
	"chat-gateway/internal/models"
	"chat-gateway/internal/provider"
	"chat-gateway/internal/stream"
)

const (
	contentTypeJSON = "application/json"
	userAgent       = "chat-gateway/0.1"
)

// Provider implements the gateway adapter contract for Google Gemini.
type Provider struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// New constructs a Gemini adapter.
func New(cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		baseURL: baseURL,
		headers: cfg.Headers,
		client:  client,
	}, nil
}

func (p *Provider) Name() models.Vendor {
	return models.VendorGoogle
}

// Send performs exactly one streaming generateContent call. Translation
// failures surface before any network traffic; upstream failures are never
// retried.
func (p *Provider) Send(ctx context.Context, cred provider.Credential, settings models.ChatSettings, messages []models.Message) (*stream.Stream, error) {
	payload, err := buildGenerateRequest(settings, messages)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse",
		p.baseURL, url.PathEscape(settings.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("x-goog-api-key", cred.APIKey.Expose())
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google chat request failed: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(httpResp)
	}

	fragments := make(chan stream.Fragment, 64)
	errs := make(chan error, 1)
	go processSSEStream(ctx, httpResp.Body, fragments, errs)

	return &stream.Stream{Fragments: fragments, Err: errs}, nil
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// parseAPIError normalizes an upstream failure into a VendorError. The raw
// body stays server-side; it never reaches the caller directly.
func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return &apierr.VendorError{
			Vendor:  string(models.VendorGoogle),
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("failed to read error body: %v", err),
		}
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &apierr.VendorError{
			Vendor:  string(models.VendorGoogle),
			Status:  resp.StatusCode,
			Code:    apiErr.Error.Status,
			Message: apiErr.Error.Message,
		}
	}

	return &apierr.VendorError{
		Vendor:  string(models.VendorGoogle),
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}
}
