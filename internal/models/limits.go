package models

import "strings"

// maxOutputTokens maps model identifiers to the largest max_tokens value the
// vendor accepts for that model. Lookups match exactly first, then by longest
// prefix, so dated snapshots such as "claude-3-5-sonnet-20241022" inherit the
// family ceiling.
var maxOutputTokens = map[string]int{
	// OpenAI
	"gpt-4o":        16384,
	"gpt-4o-mini":   16384,
	"gpt-4-turbo":   4096,
	"gpt-4":         8192,
	"gpt-3.5-turbo": 4096,
	"o1":            32768,
	"o1-mini":       65536,

	// Anthropic
	"claude-3-5-sonnet": 8192,
	"claude-3-5-haiku":  8192,
	"claude-3-opus":     4096,
	"claude-3-sonnet":   4096,
	"claude-3-haiku":    4096,

	// Google
	"gemini-1.5-pro":   8192,
	"gemini-1.5-flash": 8192,
	"gemini-2.0-flash": 8192,

	// Groq hosts open-weight models under their upstream names.
	"llama-3.1-8b-instant":    8192,
	"llama-3.3-70b-versatile": 32768,
	"mixtral-8x7b-32768":      32768,

	// Perplexity
	"sonar":           8192,
	"sonar-pro":       8192,
	"sonar-reasoning": 8192,
}

// DefaultAnthropicMaxTokens is sent when an Anthropic model has no table
// entry. The Anthropic API rejects requests without max_tokens, so the
// adapter must always supply a value.
const DefaultAnthropicMaxTokens = 4096

// MaxOutputTokens returns the output-token ceiling for model. ok is false
// when the model has no table entry, in which case the vendor's own default
// applies and max_tokens may be omitted (Anthropic excepted, see
// DefaultAnthropicMaxTokens).
func MaxOutputTokens(model string) (limit int, ok bool) {
	if v, found := maxOutputTokens[model]; found {
		return v, true
	}

	best := ""
	for key, v := range maxOutputTokens {
		if strings.HasPrefix(model, key) && len(key) > len(best) {
			best = key
			limit = v
		}
	}
	if best == "" {
		return 0, false
	}
	return limit, true
}
