package anthropic

import (
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
)

// The Messages API caps temperature at 1.0, unlike the OpenAI-compatible
// vendors.
const temperatureCap = 1.0

type messagePayload struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// buildMessagePayload maps the canonical request onto the Messages API. The
// API does not accept a system role in the message list, so the prompt and
// every system message fold into the top-level system field. max_tokens is
// mandatory upstream and is always set: the per-model limit when known,
// DefaultAnthropicMaxTokens otherwise.
func buildMessagePayload(settings models.ChatSettings, messages []models.Message) (messagePayload, error) {
	wire := make([]anthropicMessage, 0, len(messages))
	var systemParts []string
	if settings.Prompt != "" {
		systemParts = append(systemParts, settings.Prompt)
	}

	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			text, err := systemText(msg)
			if err != nil {
				return messagePayload{}, err
			}
			if text != "" {
				systemParts = append(systemParts, text)
			}
		case models.RoleUser, models.RoleAssistant:
			blocks, err := contentBlocks(msg)
			if err != nil {
				return messagePayload{}, err
			}
			wire = append(wire, anthropicMessage{Role: string(msg.Role), Content: blocks})
		}
	}

	if len(wire) == 0 {
		return messagePayload{}, apierr.Validation("anthropic requests require at least one user message")
	}
	if wire[0].Role != string(models.RoleUser) {
		return messagePayload{}, apierr.Validation("anthropic conversations must start with a user message")
	}

	maxTokens, ok := models.MaxOutputTokens(settings.Model)
	if !ok {
		maxTokens = models.DefaultAnthropicMaxTokens
	}

	temperature := models.ClampTemperature(settings.Temperature)
	if temperature > temperatureCap {
		temperature = temperatureCap
	}

	return messagePayload{
		Model:       settings.Model,
		Messages:    wire,
		System:      strings.Join(systemParts, "\n\n"),
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Stream:      true,
	}, nil
}

func systemText(msg models.Message) (string, error) {
	if msg.Parts == nil {
		return strings.TrimSpace(msg.Content), nil
	}

	var texts []string
	for _, part := range msg.Parts {
		if part.Type != models.PartText {
			return "", apierr.Validation("anthropic system messages support text content only")
		}
		texts = append(texts, part.Text)
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}

func contentBlocks(msg models.Message) ([]contentBlock, error) {
	if msg.Parts == nil {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			return nil, apierr.Validation("anthropic messages must not be empty")
		}
		return []contentBlock{{Type: "text", Text: text}}, nil
	}

	blocks := make([]contentBlock, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		switch part.Type {
		case models.PartText:
			blocks = append(blocks, contentBlock{Type: "text", Text: part.Text})
		case models.PartImage:
			blocks = append(blocks, imageBlock(part.ImageURL))
		}
	}
	return blocks, nil
}

func imageBlock(imageURL string) contentBlock {
	if strings.HasPrefix(imageURL, "data:") {
		mimeType, data := parseDataURL(imageURL)
		return contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mimeType,
				Data:      data,
			},
		}
	}

	return contentBlock{
		Type:   "image",
		Source: &imageSource{Type: "url", URL: imageURL},
	}
}

// parseDataURL extracts the mime type and base64 payload from a
// data:mime/type;base64,<data> URL.
func parseDataURL(dataURL string) (mimeType, data string) {
	rest := strings.TrimPrefix(dataURL, "data:")

	commaIdx := strings.Index(rest, ",")
	if commaIdx == -1 {
		return "", ""
	}

	metadata := rest[:commaIdx]
	data = rest[commaIdx+1:]

	parts := strings.Split(metadata, ";")
	if len(parts) > 0 {
		mimeType = parts[0]
	}

	return mimeType, data
}
