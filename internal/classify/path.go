package classify

import "strings"

// exactPaths are forwarded verbatim with no prefix matching involved.
var exactPaths = map[string]bool{
	"/":       true,
	"/login":  true,
	"/logout": true,
}

// withAPIPrefixes is the base group of prefixes whose forwarded path must
// have the literal segment "api" inserted immediately after the matched
// prefix.
var withAPIPrefixes = []string{
	"/indoorvolleyball.refadmin",
}

// noAPIPrefixes is the base group of prefixes that forward without any
// path rewriting.
var noAPIPrefixes = []string{
	"/sportmanager.volleyball",
}

// noAPIExceptions are prefixes from the withAPIPrefixes base group (binary
// download endpoints) that must NOT receive the "api" insertion despite
// matching a WITH_API prefix.
var noAPIExceptions = []string{
	"/indoorvolleyball.refadmin/refereestatementofexpenses/downloadrefereestatementofexpenses",
}

// needAPIExceptions are prefixes from the noAPIPrefixes base group that
// require the "api" insertion anyway.
var needAPIExceptions = []string{
	"/sportmanager.volleyball/authentication",
}

func matchesAny(pathname string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(pathname, p) {
			return true
		}
	}
	return false
}

// IsAllowedPath reports whether pathname is an exact match or falls under
// the union of the two prefix groups.
func IsAllowedPath(pathname string) bool {
	if exactPaths[pathname] {
		return true
	}
	return matchesAny(pathname, withAPIPrefixes) || matchesAny(pathname, noAPIPrefixes)
}

// RequiresAPIPrefix reports whether the literal "/api" segment must be
// inserted after the matched prefix. Exception sets override the base
// classification in both directions; NO_API exceptions are checked first
// so a path that happens to match both a WITH_API prefix and a NO_API
// exception is correctly excluded.
func RequiresAPIPrefix(pathname string) bool {
	if matchesAny(pathname, noAPIExceptions) {
		return false
	}
	if matchesAny(pathname, needAPIExceptions) {
		return true
	}
	return matchesAny(pathname, withAPIPrefixes)
}

// MatchedPrefix returns the longest prefix from either base group that
// pathname matches, for use when splicing in the "/api" segment. Returns
// "" if no prefix matches (callers should not reach this for allowed
// paths other than exact matches).
func MatchedPrefix(pathname string) string {
	best := ""
	for _, p := range withAPIPrefixes {
		if strings.HasPrefix(pathname, p) && len(p) > len(best) {
			best = p
		}
	}
	for _, p := range noAPIPrefixes {
		if strings.HasPrefix(pathname, p) && len(p) > len(best) {
			best = p
		}
	}
	return best
}
