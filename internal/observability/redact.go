package observability

import (
	"encoding/json"
	"strings"
)

// sensitiveKeys names the JSON keys RedactJSON masks before a value reaches
// the log stream, covering the credential fields config.Config carries
// (GeminiAPIKey, OpenAIAPIKey, AnthropicAPIKey, PostgresDSN, ...) plus the
// common header/token forms a provider response body might echo back.
var sensitiveKeys = []string{
	"api_key", "apikey", "apiKey", "x-api-key", "authorization", "auth",
	"token", "access_token", "refresh_token", "password", "secret", "bearer",
	"dsn",
}

// RedactJSON masks sensitive values in a JSON payload by key name, so
// main1's debug dump of the loaded config never puts a provider API key or
// a Postgres DSN into a log file.
func RedactJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return raw
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	redacted := redactValue(v)
	b, err := json.Marshal(redacted)
	if err != nil {
		return raw
	}
	return b
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if low == s || strings.Contains(low, s) {
			return true
		}
	}
	return false
}
