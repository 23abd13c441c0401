package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// sensitiveKeys are masked by every logger built with New, whatever the
// caller passes.
var sensitiveKeys = map[string]struct{}{
	"passphrase":    {},
	"password":      {},
	"private_key":   {},
	"secret":        {},
	"auth_token":    {},
	"authorization": {},
	"jwt":           {},
}

// IsSensitive reports whether values logged under key are always masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskValue returns RedactedValue for non-blank values. Blank input is
// returned unchanged.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// ShortHex keeps the head and tail of a hex blob such as a signature so log
// lines can be correlated without carrying the full value.
func ShortHex(value string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) <= 20 {
		return trimmed
	}
	return trimmed[:10] + ".." + trimmed[len(trimmed)-8:]
}

// MaskField logs key with its value masked.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}

func redact(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindString && IsSensitive(attr.Key) {
		return slog.String(attr.Key, MaskValue(attr.Value.String()))
	}
	return attr
}
