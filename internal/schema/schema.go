// Package schema validates inbound request bodies and produces the canonical
// GatewayRequest consumed by the rest of the pipeline. Validation performs no
// I/O and never logs payload contents.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
)

// htmlStripper removes characters usable for markup injection from free-text
// fields. Defense in depth only; renderers still own output encoding.
var htmlStripper = strings.NewReplacer("<", "", ">", "")

type requestBody struct {
	ChatSettings *settingsBody `json:"chatSettings"`
	Messages     []messageBody `json:"messages"`
}

type settingsBody struct {
	Model         string  `json:"model"`
	Temperature   float64 `json:"temperature"`
	ContextLength int     `json:"contextLength"`
	Prompt        string  `json:"prompt"`
}

type messageBody struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
	Parts   []partBody      `json:"parts"`
}

// partBody covers both inbound structured-content shapes: OpenAI-style
// content arrays ({type, text, image_url}) and Google-style parts
// ({text} / {inline_data}).
type partBody struct {
	Type       string          `json:"type"`
	Text       string          `json:"text"`
	ImageURL   *imageURLBody   `json:"image_url"`
	InlineData *inlineDataBody `json:"inline_data"`
}

type imageURLBody struct {
	URL string `json:"url"`
}

type inlineDataBody struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Validate parses and validates a raw request body for the given vendor,
// returning the immutable canonical request. Every failure is a *apierr.Error
// carrying a caller-safe message; an unknown vendor maps to NOT_FOUND, all
// other violations to VALIDATION_ERROR.
func Validate(vendorName string, body []byte) (models.Vendor, models.GatewayRequest, error) {
	if !models.KnownVendor(vendorName) {
		return "", models.GatewayRequest{}, apierr.NotFound(
			fmt.Sprintf("unknown vendor %q; supported vendors are openai, groq, openrouter, perplexity, anthropic and google", vendorName))
	}
	vendor := models.Vendor(vendorName)

	raw, err := decodeBody(body)
	if err != nil {
		return vendor, models.GatewayRequest{}, err
	}

	settings, err := validateSettings(raw.ChatSettings)
	if err != nil {
		return vendor, models.GatewayRequest{}, err
	}

	if len(raw.Messages) == 0 {
		return vendor, models.GatewayRequest{}, apierr.Validation("messages must be a non-empty array")
	}

	messages := make([]models.Message, 0, len(raw.Messages))
	for i, msg := range raw.Messages {
		converted, err := validateMessage(i, msg)
		if err != nil {
			return vendor, models.GatewayRequest{}, err
		}
		messages = append(messages, converted)
	}

	return vendor, models.GatewayRequest{Settings: settings, Messages: messages}, nil
}

func decodeBody(body []byte) (requestBody, error) {
	var raw requestBody

	decoder := json.NewDecoder(bytes.NewReader(body))
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return requestBody{}, apierr.Validation("request body is required")
		}
		return requestBody{}, apierr.Validation(fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return requestBody{}, apierr.Validation("request body must contain a single JSON object")
	}
	return raw, nil
}

func validateSettings(raw *settingsBody) (models.ChatSettings, error) {
	if raw == nil {
		return models.ChatSettings{}, apierr.Validation("chatSettings is required")
	}

	model := strings.TrimSpace(raw.Model)
	if model == "" {
		return models.ChatSettings{}, apierr.Validation("chatSettings.model is required")
	}

	if raw.ContextLength < models.ContextLengthMin || raw.ContextLength > models.ContextLengthMax {
		return models.ChatSettings{}, apierr.Validation(fmt.Sprintf(
			"chatSettings.contextLength must be between %d and %d", models.ContextLengthMin, models.ContextLengthMax))
	}

	prompt := htmlStripper.Replace(raw.Prompt)
	if len(prompt) > models.MaxPromptChars {
		return models.ChatSettings{}, apierr.Validation(fmt.Sprintf(
			"chatSettings.prompt must not exceed %d characters", models.MaxPromptChars))
	}

	return models.ChatSettings{
		Model:         model,
		Temperature:   models.ClampTemperature(raw.Temperature),
		ContextLength: raw.ContextLength,
		Prompt:        prompt,
	}, nil
}

func validateMessage(index int, raw messageBody) (models.Message, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(raw.Role)))
	if !models.ValidRole(role) {
		return models.Message{}, apierr.Validation(fmt.Sprintf(
			"messages[%d].role must be one of system, user or assistant", index))
	}

	msg := models.Message{Role: role}

	if len(raw.Content) > 0 && !bytes.Equal(raw.Content, []byte("null")) {
		text, parts, err := decodeContent(index, raw.Content)
		if err != nil {
			return models.Message{}, err
		}
		msg.Content = text
		msg.Parts = parts
	}

	// An explicit Google-style parts array wins over a content array; a plain
	// content string is kept alongside it.
	if len(raw.Parts) > 0 {
		parts, err := convertParts(index, raw.Parts)
		if err != nil {
			return models.Message{}, err
		}
		msg.Parts = parts
	}

	if err := checkContentBounds(index, msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func decodeContent(index int, raw json.RawMessage) (string, []models.ContentPart, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil, nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return "", nil, apierr.Validation(fmt.Sprintf("messages[%d].content is not a valid string", index))
		}
		return htmlStripper.Replace(text), nil, nil
	case '[':
		var rawParts []partBody
		if err := json.Unmarshal(trimmed, &rawParts); err != nil {
			return "", nil, apierr.Validation(fmt.Sprintf(
				"messages[%d].content must be a string or an array of content parts", index))
		}
		parts, err := convertParts(index, rawParts)
		if err != nil {
			return "", nil, err
		}
		return "", parts, nil
	default:
		return "", nil, apierr.Validation(fmt.Sprintf(
			"messages[%d].content must be a string or an array of content parts", index))
	}
}

func convertParts(index int, rawParts []partBody) ([]models.ContentPart, error) {
	parts := make([]models.ContentPart, 0, len(rawParts))
	for _, p := range rawParts {
		switch {
		case p.InlineData != nil:
			if p.InlineData.MimeType == "" || p.InlineData.Data == "" {
				return nil, apierr.Validation(fmt.Sprintf(
					"messages[%d] has an inline_data part without mime_type or data", index))
			}
			parts = append(parts, models.ContentPart{
				Type:     models.PartImage,
				ImageURL: "data:" + p.InlineData.MimeType + ";base64," + p.InlineData.Data,
			})
		case p.Type == "image_url":
			if p.ImageURL == nil || strings.TrimSpace(p.ImageURL.URL) == "" {
				return nil, apierr.Validation(fmt.Sprintf(
					"messages[%d] has an image_url part without a url", index))
			}
			parts = append(parts, models.ContentPart{
				Type:     models.PartImage,
				ImageURL: strings.TrimSpace(p.ImageURL.URL),
			})
		case p.Type == "text" || (p.Type == "" && p.Text != ""):
			parts = append(parts, models.ContentPart{
				Type: models.PartText,
				Text: htmlStripper.Replace(p.Text),
			})
		default:
			return nil, apierr.Validation(fmt.Sprintf(
				"messages[%d] contains an unsupported content part", index))
		}
	}
	return parts, nil
}

func checkContentBounds(index int, msg models.Message) error {
	if msg.Parts == nil {
		if n := len(msg.Content); n < 1 || n > models.MaxContentChars {
			return apierr.Validation(fmt.Sprintf(
				"messages[%d].content must be between 1 and %d characters", index, models.MaxContentChars))
		}
		return nil
	}

	if len(msg.Parts) == 0 {
		return apierr.Validation(fmt.Sprintf("messages[%d] has no usable content", index))
	}

	textLen := 0
	for _, p := range msg.Parts {
		textLen += len(p.Text)
	}
	if textLen > models.MaxContentChars {
		return apierr.Validation(fmt.Sprintf(
			"messages[%d] text content must not exceed %d characters", index, models.MaxContentChars))
	}
	return nil
}
