package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = []string{"password", "secret", "token", "iban", "account_holder"}

// MaskSecret redacts a secret while keeping a minimal suffix.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// RedactSensitive returns a copy of input with string values under
// sensitive keys masked. Nested objects and arrays are walked.
func RedactSensitive(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		if isSensitive(key) {
			if s, ok := value.(string); ok {
				out[key] = MaskSecret(s)
				continue
			}
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return RedactSensitive(cast)
	case []any:
		items := make([]any, 0, len(cast))
		for _, item := range cast {
			items = append(items, redactValue(item))
		}
		return items
	default:
		return value
	}
}

func isSensitive(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, candidate := range sensitiveKeys {
		if strings.Contains(key, candidate) {
			return true
		}
	}
	return false
}
