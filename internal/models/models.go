package models

// Vendor identifies an upstream chat-completion service reachable through the
// gateway. OpenAI, Groq, OpenRouter and Perplexity all speak the
// OpenAI-compatible wire format; Anthropic and Google use their own.
type Vendor string

const (
	VendorOpenAI     Vendor = "openai"
	VendorGroq       Vendor = "groq"
	VendorOpenRouter Vendor = "openrouter"
	VendorPerplexity Vendor = "perplexity"
	VendorAnthropic  Vendor = "anthropic"
	VendorGoogle     Vendor = "google"
)

// AllVendors returns every vendor the gateway can dispatch to.
func AllVendors() []Vendor {
	return []Vendor{
		VendorOpenAI,
		VendorGroq,
		VendorOpenRouter,
		VendorPerplexity,
		VendorAnthropic,
		VendorGoogle,
	}
}

// KnownVendor reports whether name identifies a supported vendor.
func KnownVendor(name string) bool {
	switch Vendor(name) {
	case VendorOpenAI, VendorGroq, VendorOpenRouter, VendorPerplexity, VendorAnthropic, VendorGoogle:
		return true
	default:
		return false
	}
}

// Role labels a conversational turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRole reports whether r is one of the three accepted roles.
func ValidRole(r Role) bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

// PartType discriminates structured content parts.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// ContentPart is one element of a structured message body: a text segment or
// an image reference (remote URL or data URL).
type ContentPart struct {
	Type     PartType
	Text     string
	ImageURL string
}

// Message represents a single conversational message in the canonical schema.
// Parts is non-nil only when the caller supplied structured content; plain
// string content lives in Content.
type Message struct {
	Role    Role
	Content string
	Parts   []ContentPart
}

// Bounds enforced by the schema validator. Temperature is clamped into range
// rather than rejected; violations of the remaining bounds reject the request.
const (
	TemperatureMin   = 0.0
	TemperatureMax   = 2.0
	ContextLengthMin = 1
	ContextLengthMax = 128000
	MaxPromptChars   = 10000
	MaxContentChars  = 100000
)

// ChatSettings carries the generation parameters shared by every vendor.
// Prompt, when non-empty, is treated as a system preamble that precedes the
// caller's messages. Immutable once validated.
type ChatSettings struct {
	Model         string
	Temperature   float64
	ContextLength int
	Prompt        string
}

// GatewayRequest is the validated canonical form of an inbound chat request.
// It is constructed once by the schema validator and never mutated afterwards.
type GatewayRequest struct {
	Settings ChatSettings
	Messages []Message
}

// ClampTemperature forces v into the accepted temperature range.
func ClampTemperature(v float64) float64 {
	if v < TemperatureMin {
		return TemperatureMin
	}
	if v > TemperatureMax {
		return TemperatureMax
	}
	return v
}
