package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/audits/abc":                  "/v1/audits/:id",
		"/v1/audits/abc/transition":       "/v1/audits/:id/transition",
		"/v1/audits/abc/findings?limit=5": "/v1/audits/:id/findings",
		"/v1/users/abc/deactivate":        "/v1/users/:id/deactivate",
		"/v1/followups/overdue":           "/v1/followups/overdue",
		"/v1/departments":                 "/v1/departments",
		"/v1/auth/login":                  "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
