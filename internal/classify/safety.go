package classify

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnsafePath is returned by IsPathSafe's decode step; callers generally
// only care about the boolean, but the error is exposed for logging.
var ErrUnsafePath = errors.New("unsafe path")

// IsPathSafe percent-decodes pathname once and rejects any occurrence of
// "..", "//", or a NUL byte in the decoded form. Backslashes are
// intentionally permitted — the upstream's own namespace separator uses
// them.
func IsPathSafe(pathname string) bool {
	decoded, err := url.PathUnescape(pathname)
	if err != nil {
		return false
	}
	if strings.Contains(decoded, "..") {
		return false
	}
	if strings.Contains(decoded, "//") {
		return false
	}
	if strings.ContainsRune(decoded, 0) {
		return false
	}
	return true
}
