package profile

import (
	"strings"

	"chat-gateway/internal/apierr"
	"chat-gateway/internal/models"
)

// keyShape describes the expected surface of a vendor API key. Prefix and
// length checks catch the common misconfiguration of pasting the wrong
// vendor's key; they are deliberately loose so vendor format changes do not
// lock callers out.
type keyShape struct {
	prefix string
	minLen int
}

var keyShapes = map[models.Vendor]keyShape{
	models.VendorOpenAI:     {prefix: "sk-", minLen: 20},
	models.VendorGroq:       {prefix: "gsk_", minLen: 20},
	models.VendorOpenRouter: {prefix: "sk-or-", minLen: 20},
	models.VendorPerplexity: {prefix: "pplx-", minLen: 20},
	models.VendorAnthropic:  {prefix: "sk-ant-", minLen: 20},
	models.VendorGoogle:     {minLen: 20}, // Google keys carry no stable prefix.
}

// Credential extracts the API key for vendor from prof. An absent key is an
// authentication failure; a key that is present but malformed is a
// validation failure. The returned secret is scoped to the current request
// and must not be cached or logged.
func Credential(prof Profile, vendor models.Vendor) (models.Secret, error) {
	raw := strings.TrimSpace(prof.APIKey(vendor))
	if raw == "" {
		return models.Secret{}, apierr.Auth(
			"no " + string(vendor) + " API key configured for this caller; add " +
				string(vendor) + "_api_key to your profile")
	}

	shape, ok := keyShapes[vendor]
	if !ok {
		return models.Secret{}, apierr.Validation("unsupported vendor " + string(vendor))
	}
	if shape.prefix != "" && !strings.HasPrefix(raw, shape.prefix) {
		return models.Secret{}, apierr.Validation(
			"the configured " + string(vendor) + " API key does not look like a " +
				string(vendor) + " key (expected prefix " + shape.prefix + ")")
	}
	if len(raw) < shape.minLen {
		return models.Secret{}, apierr.Validation(
			"the configured " + string(vendor) + " API key is too short to be valid")
	}

	return models.NewSecret(raw), nil
}

// OrganizationID returns the OpenAI organization configured for prof, if
// any. Only the openai vendor consumes it.
func OrganizationID(prof Profile, vendor models.Vendor) string {
	if vendor != models.VendorOpenAI {
		return ""
	}
	return strings.TrimSpace(prof.OpenAIOrganizationID)
}
