package logger

import (
	"log/slog"
	"strings"
)

// Key fragments whose values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"passphrase",
	"salt",
	"secret",
	"key",
	"credential",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces the value of attributes whose key names a
// secret. Groups are walked recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// Mask keeps the first and last two characters of a secret for
// correlation and hides the rest.
func Mask(value string) string {
	if len(value) <= 6 {
		return "***"
	}
	return value[:2] + "***" + value[len(value)-2:]
}
