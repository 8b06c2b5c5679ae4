// Package openaicompat adapts vendors that speak the OpenAI chat-completions
// wire format: OpenAI itself plus Groq, OpenRouter and Perplexity. One
// adapter instance serves one vendor; the differences between them are the
// base URL, the credential and any extra headers.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/config"
	"chat-gateway/internal/models"
	"chat-gateway/internal/provider"
	"chat-gateway/internal/stream"
)

const (
	contentTypeJSON     = "application/json"
	contentTypeSSE      = "text/event-stream"
	userAgent           = "chat-gateway/0.1"
	chatCompletionsPath = "/chat/completions"
)

// Provider implements the gateway adapter contract for OpenAI-compatible APIs.
type Provider struct {
	vendor  models.Vendor
	chatURL string
	headers map[string]string
	client  *http.Client
}

// New creates an adapter for one OpenAI-compatible vendor.
func New(vendor models.Vendor, cfg config.ProviderConfig, client *http.Client) (*Provider, error) {
	if client == nil {
		return nil, errors.New("http client must not be nil")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base url must not be empty")
	}

	return &Provider{
		vendor:  vendor,
		chatURL: baseURL + chatCompletionsPath,
		headers: cfg.Headers,
		client:  client,
	}, nil
}

func (p *Provider) Name() models.Vendor {
	return p.vendor
}

// Send performs exactly one streaming chat-completions call. Failures are
// never retried here: the vendor may already have started billing the
// request even when the response is lost.
func (p *Provider) Send(ctx context.Context, cred provider.Credential, settings models.ChatSettings, messages []models.Message) (*stream.Stream, error) {
	payload := buildChatPayload(settings, messages)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentTypeJSON)
	httpReq.Header.Set("Accept", contentTypeSSE)
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("Authorization", "Bearer "+cred.APIKey.Expose())
	if p.vendor == models.VendorOpenAI && cred.Organization != "" {
		httpReq.Header.Set("OpenAI-Organization", cred.Organization)
	}
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s chat request failed: %w", p.vendor, err)
	}

	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, parseAPIError(p.vendor, httpResp)
	}

	fragments := make(chan stream.Fragment, 64)
	errs := make(chan error, 1)
	go p.processSSEStream(ctx, httpResp.Body, fragments, errs)

	return &stream.Stream{Fragments: fragments, Err: errs}, nil
}

type chatPayload struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a plain string for text-only messages and a []contentPart
	// for structured ones.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

func buildChatPayload(settings models.ChatSettings, messages []models.Message) chatPayload {
	wire := make([]chatMessage, 0, len(messages)+1)
	if settings.Prompt != "" {
		wire = append(wire, chatMessage{Role: string(models.RoleSystem), Content: settings.Prompt})
	}
	for _, msg := range messages {
		wire = append(wire, chatMessage{Role: string(msg.Role), Content: messageContent(msg)})
	}

	payload := chatPayload{
		Model:       settings.Model,
		Messages:    wire,
		Temperature: models.ClampTemperature(settings.Temperature),
		Stream:      true,
	}
	if limit, ok := models.MaxOutputTokens(settings.Model); ok {
		payload.MaxTokens = &limit
	}
	return payload
}

func messageContent(msg models.Message) any {
	if msg.Parts == nil {
		return msg.Content
	}

	parts := make([]contentPart, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case models.PartImage:
			parts = append(parts, contentPart{
				Type:     "image_url",
				ImageURL: &imageURLPart{URL: part.ImageURL},
			})
		default:
			parts = append(parts, contentPart{Type: "text", Text: part.Text})
		}
	}
	return parts
}

type apiErrorResponse struct {
	Error apiErrorObject `json:"error"`
}

type apiErrorObject struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

func (o apiErrorObject) code() string {
	if s, ok := o.Code.(string); ok && s != "" {
		return s
	}
	return o.Type
}

// parseAPIError normalizes an upstream failure into a VendorError. The raw
// body stays server-side; it never reaches the caller directly.
func parseAPIError(vendor models.Vendor, resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return &apierr.VendorError{
			Vendor:  string(vendor),
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("failed to read error body: %v", err),
		}
	}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &apierr.VendorError{
			Vendor:  string(vendor),
			Status:  resp.StatusCode,
			Code:    apiErr.Error.code(),
			Message: apiErr.Error.Message,
		}
	}

	return &apierr.VendorError{
		Vendor:  string(vendor),
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(body)),
	}
}
