package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/config"
	"chat-gateway/internal/models"
	"chat-gateway/internal/provider"
	"chat-gateway/internal/stream"
)

type capturedRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text       string `json:"text"`
			InlineData *struct {
				MimeType string `json:"mimeType"`
				Data     string `json:"data"`
			} `json:"inlineData"`
			FileData *struct {
				FileURI string `json:"fileUri"`
			} `json:"fileData"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"system_instruction"`
	GenerationConfig *struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

func writeSSE(w http.ResponseWriter, payloads ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, p := range payloads {
		fmt.Fprintf(w, "data: %s\n\n", p)
	}
}

func testCredential() provider.Credential {
	return provider.Credential{APIKey: models.NewSecret("AIzaSyTest0123456789abcdef")}
}

func collect(t *testing.T, s *stream.Stream) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return stream.Collect(ctx, s)
}

func lastUserParts(text string) []models.Message {
	return []models.Message{{
		Role:  models.RoleUser,
		Parts: []models.ContentPart{{Type: models.PartText, Text: text}},
	}}
}

func TestSendBuildsGenerateContentRequest(t *testing.T) {
	var captured capturedRequest
	var gotPath, gotAlt, gotKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAlt = r.URL.Query().Get("alt")
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	settings := models.ChatSettings{
		Model:         "gemini-1.5-pro",
		Temperature:   0.4,
		ContextLength: 32000,
		Prompt:        "Answer concisely.",
	}
	messages := []models.Message{
		{Role: models.RoleSystem, Content: "Use metric units."},
		{Role: models.RoleUser, Content: "how far is the moon?"},
		{Role: models.RoleAssistant, Content: "About 384,400 km."},
		{Role: models.RoleUser, Parts: []models.ContentPart{{Type: models.PartText, Text: "and the sun?"}}},
	}

	st, err := p.Send(context.Background(), testCredential(), settings, messages)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := collect(t, st); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	if gotPath != "/v1beta/models/gemini-1.5-pro:streamGenerateContent" {
		t.Errorf("path = %q, want streamGenerateContent for the model", gotPath)
	}
	if gotAlt != "sse" {
		t.Errorf("alt = %q, want sse", gotAlt)
	}
	if gotKey != "AIzaSyTest0123456789abcdef" {
		t.Errorf("x-goog-api-key = %q, want credential", gotKey)
	}

	if captured.SystemInstruction == nil || len(captured.SystemInstruction.Parts) != 1 {
		t.Fatalf("system_instruction = %+v, want one part", captured.SystemInstruction)
	}
	if got := captured.SystemInstruction.Parts[0].Text; got != "Answer concisely.\n\nUse metric units." {
		t.Errorf("system_instruction text = %q, want prompt and system turns joined", got)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("contents length = %d, want 3 (system turns excluded)", len(captured.Contents))
	}
	for i, want := range []string{"user", "model", "user"} {
		if captured.Contents[i].Role != want {
			t.Errorf("contents[%d].Role = %q, want %q", i, captured.Contents[i].Role, want)
		}
	}
	if captured.Contents[0].Parts[0].Text != "how far is the moon?" {
		t.Errorf("history text = %q, want plain content mapped to a text part", captured.Contents[0].Parts[0].Text)
	}
	if captured.Contents[2].Parts[0].Text != "and the sun?" {
		t.Errorf("final text = %q, want structured part text", captured.Contents[2].Parts[0].Text)
	}

	if captured.GenerationConfig == nil {
		t.Fatal("generationConfig missing")
	}
	if captured.GenerationConfig.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", captured.GenerationConfig.Temperature)
	}
}

func TestSendRequiresPartsOnFinalMessage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	messages := []models.Message{{Role: models.RoleUser, Content: "plain text only"}}
	_, err = p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-1.5-flash", ContextLength: 1}, messages)
	if err == nil {
		t.Fatal("Send() error = nil, want validation failure")
	}

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeValidation {
		t.Errorf("Send() error = %v, want validation error", err)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, want 0 (failure before network)", calls.Load())
	}
}

func TestSendRequiresNonSystemMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	messages := []models.Message{{Role: models.RoleSystem, Content: "be nice"}}
	_, err = p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-1.5-flash", ContextLength: 1}, messages)
	if err == nil {
		t.Fatal("Send() error = nil, want validation failure")
	}

	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeValidation {
		t.Errorf("Send() error = %v, want validation error", err)
	}
}

func TestSendStreamsCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"candidates":[{"content":{"parts":[{"text":"The sun is "}]}}]}`,
			`{"candidates":[{"content":{"parts":[{"text":"about 150 million km away."}]},"finishReason":"STOP"}]}`,
		)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st, err := p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-2.0-flash", ContextLength: 1}, lastUserParts("how far is the sun?"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	text, err := collect(t, st)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if text != "The sun is about 150 million km away." {
		t.Errorf("Collect() = %q, want joined candidate text", text)
	}
}

func TestSendMapsImageParts(t *testing.T) {
	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		writeSSE(w, `{"candidates":[{"content":{"parts":[{"text":"a cat"}]}}]}`)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	messages := []models.Message{{
		Role: models.RoleUser,
		Parts: []models.ContentPart{
			{Type: models.PartText, Text: "what is in this picture?"},
			{Type: models.PartImage, ImageURL: "data:image/jpeg;base64,QkJCQg=="},
			{Type: models.PartImage, ImageURL: "https://example.com/cat.png"},
		},
	}}
	st, err := p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-1.5-pro", ContextLength: 1}, messages)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, err := collect(t, st); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("parts length = %d, want 3", len(parts))
	}
	if parts[0].Text != "what is in this picture?" {
		t.Errorf("first part = %+v, want text part", parts[0])
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/jpeg" || parts[1].InlineData.Data != "QkJCQg==" {
		t.Errorf("second part = %+v, want inlineData from data URL", parts[1])
	}
	if parts[2].FileData == nil || parts[2].FileData.FileURI != "https://example.com/cat.png" {
		t.Errorf("third part = %+v, want fileData for remote URL", parts[2])
	}
}

func TestSendUpstreamErrorBecomesVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"User location is not supported","status":"FAILED_PRECONDITION"}}`)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-1.5-pro", ContextLength: 1}, lastUserParts("hi"))
	if err == nil {
		t.Fatal("Send() error = nil, want upstream failure")
	}

	var vendorErr *apierr.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("Send() error type = %T, want *apierr.VendorError", err)
	}
	if vendorErr.Status != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", vendorErr.Status)
	}
	if vendorErr.Code != "FAILED_PRECONDITION" {
		t.Errorf("Code = %q, want FAILED_PRECONDITION", vendorErr.Code)
	}

	mapped := apierr.FromError(err)
	if mapped.Code != apierr.CodeValidation {
		t.Errorf("mapped Code = %q, want %q", mapped.Code, apierr.CodeValidation)
	}
}

func TestSendMidStreamErrorObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			`{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`,
			`{"error":{"code":500,"message":"Internal error encountered","status":"INTERNAL"}}`,
		)
	}))
	defer srv.Close()

	p, err := New(config.ProviderConfig{BaseURL: srv.URL}, srv.Client())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	st, err := p.Send(context.Background(), testCredential(), models.ChatSettings{Model: "gemini-1.5-pro", ContextLength: 1}, lastUserParts("hi"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	text, err := collect(t, st)
	if err == nil {
		t.Fatal("Collect() error = nil, want mid-stream failure")
	}
	if text != "partial" {
		t.Errorf("Collect() text = %q, want fragments before the failure", text)
	}

	var vendorErr *apierr.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("Collect() error type = %T, want *apierr.VendorError", err)
	}
	if vendorErr.Code != "INTERNAL" {
		t.Errorf("Code = %q, want INTERNAL", vendorErr.Code)
	}
}
