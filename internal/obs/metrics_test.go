package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                           "/",
		"/metrics":                   "/metrics",
		"/v1/auth/login":             "/v1/auth/login",
		"/v1/tenants/current":        "/v1/tenants/current",
		"/v1/tenants/tenant_acmeco":  "/v1/tenants/:key",
		"/v1/tenants/abc?pretty=1":   "/v1/tenants/:key",
		"/v1/auth/me?verbose=1":      "/v1/auth/me",
		"/healthz":                   "/healthz",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
