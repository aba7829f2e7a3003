package classify

import "strings"

// icalPrefix is the fixed path shape for referee calendar feeds.
const icalPrefix = "/iCal/referee/"

// IsValidICalCode reports whether code is exactly six case-sensitive
// alphanumeric characters.
func IsValidICalCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// ExtractICalCode returns the trailing segment iff pathname equals exactly
// "/iCal/referee/<segment>" with no further path components. Returns ""
// and false otherwise.
func ExtractICalCode(pathname string) (string, bool) {
	if !strings.HasPrefix(pathname, icalPrefix) {
		return "", false
	}
	rest := pathname[len(icalPrefix):]
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
