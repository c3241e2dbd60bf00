package logging

import (
	"regexp"
)

const (
	// MaxPromptLogLength is the maximum length of a prompt to log
	MaxPromptLogLength = 200
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match bearer tokens and provider API keys in error text
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_.]+`)

	// Pattern to match potential API keys (sk-..., key=... forms)
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key|key)[=:]\s*[A-Za-z0-9-_]{16,}`)

	// Pattern to match provider-prefixed secret keys appearing bare in
	// request dumps (OpenAI-style sk-..., Anthropic-style sk-ant-...)
	secretKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9-_]{16,}`)
)

// SanitizeError sanitizes error messages that might contain credentials.
// Oracle SDK errors can echo request headers back; use this before logging
// any error from an oracle call.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString removes bearer tokens and API keys from a string.
func SanitizeString(s string) string {
	sanitized := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, RedactedText)
	return sanitized
}

// TruncatePrompt shortens a prompt for logging.
func TruncatePrompt(prompt string) string {
	if len(prompt) <= MaxPromptLogLength {
		return prompt
	}
	return prompt[:MaxPromptLogLength] + "..."
}
