// Package transform reshapes request bodies and rewrites response
// Set-Cookie headers for upstream/downstream compatibility.
package transform

import (
	"net/url"
	"strings"
)

// Upstream's nested login field names. The upstream's login form expects
// credentials namespaced under its own authentication object rather than
// flat "username"/"password" keys.
const (
	nestedUsernameField = "sportmanager.volleyball.authentication[username]"
	nestedPasswordField = "sportmanager.volleyball.authentication[password]"
)

// hasNestedUsernameField reports whether body already carries the
// upstream's nested field, in either its raw bracketed form or its
// percent-encoded form ("[" -> "%5B", "]" -> "%5D").
func hasNestedUsernameField(body string) bool {
	if strings.Contains(body, "authentication[username]") {
		return true
	}
	lower := strings.ToLower(body)
	return strings.Contains(lower, "authentication%5busername%5d")
}

// HasAuthCredentials reports whether body, treated as a form-encoded
// payload, either already carries the nested username field or carries
// both a "username" and a "password" key.
func HasAuthCredentials(body string) bool {
	if hasNestedUsernameField(body) {
		return true
	}
	values, err := url.ParseQuery(body)
	if err != nil {
		return false
	}
	return values.Has("username") && values.Has("password")
}

// TransformAuthFormData reshapes a simple username/password form body into
// the nested field layout the upstream expects, preserving every
// unrelated key/value. If body already carries the nested form, it is
// returned unchanged (transform is idempotent on already-nested bodies).
func TransformAuthFormData(body string) string {
	if hasNestedUsernameField(body) {
		return body
	}

	values, err := url.ParseQuery(body)
	if err != nil {
		return body
	}

	username := values.Get("username")
	password := values.Get("password")
	if username == "" || password == "" {
		return body
	}

	out := url.Values{}
	for k, vs := range values {
		if k == "username" || k == "password" {
			continue
		}
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	out.Set(nestedUsernameField, username)
	out.Set(nestedPasswordField, password)

	return out.Encode()
}
