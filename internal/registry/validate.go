package registry

import (
	"fmt"
	"strings"
)

// ValidateName rejects tool names that could be mistaken for a path
// component: separators, parent-directory references, percent-encoded
// separators, and whitespace. Adapted from the teacher's
// sandbox.ValidateToolName (originally written to keep an HTTP-routed tool
// name from escaping a workspace directory); the same shape of name is
// used here as a registry key and a [tool:<name>] config-section header, so
// the same constraints still apply even without an HTTP path to defend.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return fmt.Errorf("tool name contains whitespace")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("tool name contains a path separator")
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("tool name contains a parent directory reference")
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%5c") {
		return fmt.Errorf("tool name contains an encoded path separator")
	}
	for _, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z':
		case ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
		case ch == '-' || ch == '_':
		default:
			return fmt.Errorf("tool name contains invalid character: %c", ch)
		}
	}
	return nil
}
