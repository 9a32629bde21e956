// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package assets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRemoveBGClientWithoutKey(t *testing.T) {
	if c := NewRemoveBGClient("", ""); c != nil {
		t.Errorf("expected nil client without API key, got %+v", c)
	}
}

func TestRemoveBGClient(t *testing.T) {
	input := []byte("original-bytes")
	output := []byte("\x89PNG cutout")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1.0/removebg" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "bg-key" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		if r.FormValue("format") != "png" || r.FormValue("size") != "auto" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		f, _, err := r.FormFile("image_file")
		if err != nil {
			t.Errorf("image_file: %v", err)
			return
		}
		got, _ := io.ReadAll(f)
		if !bytes.Equal(got, input) {
			t.Errorf("uploaded %q, want %q", got, input)
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(output)
	}))
	defer srv.Close()

	c := NewRemoveBGClient("bg-key", srv.URL+"/v1.0/")
	got, err := c.RemoveBackground(context.Background(), input)
	if err != nil {
		t.Fatalf("RemoveBackground: %v", err)
	}
	if !bytes.Equal(got, output) {
		t.Errorf("got %q, want %q", got, output)
	}
}

func TestRemoveBGClientErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantStatus    int
		wantRetryable bool
	}{
		{name: "payment required", status: 402, body: `{"errors":[{"title":"Insufficient credits"}]}`, wantStatus: 402},
		{name: "rate limited", status: 429, body: `{"errors":[{"title":"Rate limit exceeded"}]}`, wantStatus: 429, wantRetryable: true},
		{name: "server error", status: 500, body: "oops", wantStatus: 500, wantRetryable: true},
		{name: "empty body", status: 200, body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewRemoveBGClient("k", srv.URL).RemoveBackground(context.Background(), []byte("x"))
			if err == nil {
				t.Fatal("expected error")
			}
			var re *RemoverError
			if tt.wantStatus == 0 {
				if errors.As(err, &re) {
					t.Errorf("unexpected RemoverError %v", re)
				}
				return
			}
			if !errors.As(err, &re) || re.Code != tt.wantStatus {
				t.Fatalf("err = %v, want status %d", err, tt.wantStatus)
			}
			if retryable(err) != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", retryable(err), tt.wantRetryable)
			}
		})
	}
}
