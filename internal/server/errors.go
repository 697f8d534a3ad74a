package server

import "strings"

// ErrorCode extracts the machine-readable code from a "CODE: message"
// error string. Returns "" when the message carries no code.
func ErrorCode(msg string) string {
	code, _, found := strings.Cut(msg, ":")
	if !found || code == "" {
		return ""
	}
	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && ch != '_' {
			return ""
		}
	}
	return code
}
