// Package redact removes credentials from strings before they are logged.
// Remote and database errors can echo connection strings, request URLs with
// key parameters, or authorization headers; every error that reaches a log
// line from the API, the retrying client or the stage runner passes through
// Error first.
package redact

import "regexp"

// Placeholders substituted for redacted values.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules are applied in order; earlier rules consume the values later rules
// would otherwise match.
var rules = []rule{
	// userinfo of connection strings
	{
		regexp.MustCompile(`(?i)\b(postgres(?:ql)?|mysql|mongodb)://[^@\s/]+@`),
		"${1}://" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[=:]\s*[^\s&'"]+`),
		"${1}=" + RedactedCredentialPlaceholder,
	},
	// ?key=... on REST endpoints
	{
		regexp.MustCompile(`(?i)([?&](?:key|api_key|apikey|access_token|token)=)[^&\s"']+`),
		"${1}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|x-goog-api-key)(["']?\s*[:=]\s*["']?)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9_\-.~+/=]{8,}`),
		"${1} " + RedactedKeyPlaceholder,
	},
	// bare Google and OpenAI style keys
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},
}

// String returns input with every credential replaced by a placeholder.
func String(input string) string {
	if input == "" {
		return input
	}
	for _, r := range rules {
		input = r.pattern.ReplaceAllString(input, r.replacement)
	}
	return input
}

// Error redacts err's message. A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
