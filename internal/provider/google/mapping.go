package google

import (
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
)

type generateRequest struct {
	Contents          []content  `json:"contents"`
	SystemInstruction *content   `json:"system_instruction,omitempty"`
	GenerationConfig  *genConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"` // "user" or "model"
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
	FileData   *fileData   `json:"fileData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type fileData struct {
	FileURI string `json:"fileUri"`
}

type genConfig struct {
	Temperature float64 `json:"temperature"`
}

// buildGenerateRequest maps the canonical request onto generateContent. The
// prompt and every system message fold into system_instruction; the
// remaining turns become contents with Gemini's user/model roles. History
// turns may carry plain text, but the final turn must arrive with structured
// parts so the upstream request is explicit about what Gemini should answer.
func buildGenerateRequest(settings models.ChatSettings, messages []models.Message) (generateRequest, error) {
	var systemParts []string
	if settings.Prompt != "" {
		systemParts = append(systemParts, settings.Prompt)
	}

	var contents []content
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleSystem:
			if text := systemText(msg); text != "" {
				systemParts = append(systemParts, text)
			}
		case models.RoleUser:
			contents = append(contents, content{Role: "user", Parts: mapParts(msg)})
		case models.RoleAssistant:
			contents = append(contents, content{Role: "model", Parts: mapParts(msg)})
		}
	}

	if len(contents) == 0 {
		return generateRequest{}, apierr.Validation("google requests require at least one user message")
	}
	if last := messages[lastNonSystem(messages)]; last.Parts == nil {
		return generateRequest{}, apierr.Validation(
			"google requests require the final message to use the structured parts form")
	}

	req := generateRequest{
		Contents: contents,
		GenerationConfig: &genConfig{
			Temperature: models.ClampTemperature(settings.Temperature),
		},
	}
	if len(systemParts) > 0 {
		req.SystemInstruction = &content{
			Parts: []part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	return req, nil
}

func lastNonSystem(messages []models.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != models.RoleSystem {
			return i
		}
	}
	return -1
}

func systemText(msg models.Message) string {
	if msg.Parts == nil {
		return strings.TrimSpace(msg.Content)
	}

	var texts []string
	for _, p := range msg.Parts {
		if p.Type == models.PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}

// mapParts converts message content to Gemini parts. Plain history text
// becomes a single text part.
func mapParts(msg models.Message) []part {
	if msg.Parts == nil {
		return []part{{Text: msg.Content}}
	}

	parts := make([]part, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch p.Type {
		case models.PartImage:
			parts = append(parts, imagePart(p.ImageURL))
		default:
			parts = append(parts, part{Text: p.Text})
		}
	}
	return parts
}

func imagePart(imageURL string) part {
	if strings.HasPrefix(imageURL, "data:") {
		mimeType, data := parseDataURL(imageURL)
		return part{InlineData: &inlineData{MimeType: mimeType, Data: data}}
	}
	return part{FileData: &fileData{FileURI: imageURL}}
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
