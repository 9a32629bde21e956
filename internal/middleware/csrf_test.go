// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func csrfCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == CSRFCookieName {
			return c
		}
	}
	return nil
}

func TestCSRFIssuesEditorReadableCookie(t *testing.T) {
	for _, secure := range []bool{true, false} {
		h := NewCSRF(secure)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/designs", nil))

		c := csrfCookie(rr)
		if c == nil {
			t.Fatalf("secure=%v: no CSRF cookie set", secure)
		}
		if len(c.Value) != 2*csrfTokenLength {
			t.Errorf("token length = %d, want %d hex chars", len(c.Value), 2*csrfTokenLength)
		}
		if c.HttpOnly {
			t.Error("the editor script must be able to read the token")
		}
		if c.Secure != secure || c.SameSite != http.SameSiteStrictMode {
			t.Errorf("secure=%v samesite=%v", c.Secure, c.SameSite)
		}
	}
}

func TestCSRFKeepsExistingCookie(t *testing.T) {
	h := NewCSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/api/designs", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "existing"})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if c := csrfCookie(rr); c != nil {
		t.Errorf("cookie reissued: %q", c.Value)
	}
}

func TestCSRFChecksStateChangingMethods(t *testing.T) {
	const token = "0123abcd"
	tests := []struct {
		name   string
		method string
		cookie string
		header string
		want   int
	}{
		{"get needs no header", http.MethodGet, token, "", http.StatusOK},
		{"head needs no header", http.MethodHead, "", "", http.StatusOK},
		{"options needs no header", http.MethodOptions, token, "", http.StatusOK},
		{"post with matching header", http.MethodPost, token, token, http.StatusOK},
		{"patch with matching header", http.MethodPatch, token, token, http.StatusOK},
		{"put with matching header", http.MethodPut, token, token, http.StatusOK},
		{"delete with matching header", http.MethodDelete, token, token, http.StatusOK},
		{"post without header", http.MethodPost, token, "", http.StatusForbidden},
		{"patch with wrong header", http.MethodPatch, token, "ffff", http.StatusForbidden},
		{"delete without cookie", http.MethodDelete, "", token, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(tt.method, "/api/sessions/s/objects", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(CSRFHeaderName, tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestGenerateCSRFTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		tok, err := generateCSRFToken()
		if err != nil {
			t.Fatal(err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}
