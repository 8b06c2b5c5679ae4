package models

// Secret wraps a provider credential so it cannot leak through logging or
// serialization. String, GoString, JSON and text marshaling all redact the
// value; Expose returns it for use in authentication headers.
type Secret struct {
	value string
}

// NewSecret wraps value in a Secret.
func NewSecret(value string) Secret {
	return Secret{value: value}
}

// String implements fmt.Stringer with a redacted placeholder.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer so %#v formatting also redacts.
func (s Secret) GoString() string {
	return "models.Secret{[REDACTED]}"
}

// MarshalJSON always emits a redacted JSON string.
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText always emits a redacted text value.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// Expose returns the wrapped credential value.
func (s Secret) Expose() string {
	return s.value
}

// IsEmpty reports whether the secret holds no value.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}
