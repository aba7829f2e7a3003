package sniff

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeResponse struct {
	status int
	header http.Header
}

func (f fakeResponse) StatusCode() int                   { return f.status }
func (f fakeResponse) HeaderGet(name string) string      { return f.header.Get(name) }
func (f fakeResponse) HeaderValues(name string) []string { return f.header.Values(name) }

func newFakeResponse(status int, headers map[string]string) fakeResponse {
	h := make(http.Header)
	for k, v := range headers {
		h.Set(k, v)
	}
	return fakeResponse{status: status, header: h}
}

func TestIsDynamicContent(t *testing.T) {
	assert.True(t, IsDynamicContent(""))
	assert.True(t, IsDynamicContent("text/html; charset=utf-8"))
	assert.True(t, IsDynamicContent("application/json"))
	assert.False(t, IsDynamicContent("image/png"))
	assert.False(t, IsDynamicContent("text/calendar"))
	assert.False(t, IsDynamicContent("application/pdf"))
}

func TestIsFailedLoginResponse_RedirectToLogin(t *testing.T) {
	resp := newFakeResponse(302, map[string]string{"Location": "/login"})
	assert.True(t, IsFailedLoginResponse(resp, nil))
}

func TestIsSuccessfulLoginResponse_SessionCookie(t *testing.T) {
	h := make(http.Header)
	h.Add("Set-Cookie", "Neos_Session=abc123; Path=/; HttpOnly")
	resp := fakeResponse{status: 302, header: h}
	assert.True(t, IsSuccessfulLoginResponse(resp))
}

func TestIsSuccessfulLoginResponse_RedirectToDashboard(t *testing.T) {
	resp := newFakeResponse(302, map[string]string{"Location": "/sportmanager.volleyball/main/dashboard"})
	assert.True(t, IsSuccessfulLoginResponse(resp))
}

func TestIsSuccessfulLoginResponse_RedirectBackToLoginIsNotSuccess(t *testing.T) {
	resp := newFakeResponse(302, map[string]string{"Location": "/login"})
	assert.False(t, IsSuccessfulLoginResponse(resp))
}

func TestDetectSessionIssue_Forbidden(t *testing.T) {
	resp := newFakeResponse(403, nil)
	assert.True(t, DetectSessionIssue(resp, nil))
}

func TestDetectSessionIssue_LoginFormBody(t *testing.T) {
	resp := newFakeResponse(200, nil)
	body := []byte(`<form><input name="username"><input name="password"><button>login</button></form>`)
	assert.True(t, DetectSessionIssue(resp, body))
}
