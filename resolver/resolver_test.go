package resolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resolve" {
			t.Errorf("path = %s, want /resolve", r.URL.Path)
		}
		if got := r.URL.Query().Get("url"); got != "https://example/watch?v=abc" {
			t.Errorf("locator = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"title": "Test Track",
			"thumbnailUrl": "https://example/thumb.jpg",
			"durationSeconds": 213.4,
			"uploaderName": "Test Uploader"
		}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	info, err := c.Resolve(context.Background(), "https://example/watch?v=abc")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if info.Title != "Test Track" {
		t.Errorf("Title = %q", info.Title)
	}
	if info.DurationSeconds != 213.4 {
		t.Errorf("DurationSeconds = %v, want 213.4", info.DurationSeconds)
	}
	if info.UploaderName != "Test Uploader" {
		t.Errorf("UploaderName = %q", info.UploaderName)
	}
}

func TestResolveErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error": "extraction failed", "details": "video unavailable"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.Resolve(context.Background(), "whatever")

	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve() error = %v, want *ResolveError", err)
	}
	if re.Status != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", re.Status)
	}
	if re.Message != "extraction failed" || re.Details != "video unavailable" {
		t.Errorf("payload = %q / %q", re.Message, re.Details)
	}
}

func TestResolveErrorWithoutPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second)
	_, err := c.Resolve(context.Background(), "whatever")

	var re *ResolveError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve() error = %v, want *ResolveError", err)
	}
	if !strings.Contains(re.Error(), "500") {
		t.Errorf("Error() = %q, want the HTTP status as fallback", re.Error())
	}
}

func TestStreamURLEscapesLocator(t *testing.T) {
	c := New("https://svc.example/", 5*time.Second)
	got := c.StreamURL("https://example/watch?v=a&b")
	want := "https://svc.example/stream?url=https%3A%2F%2Fexample%2Fwatch%3Fv%3Da%26b"
	if got != want {
		t.Errorf("StreamURL() = %q, want %q", got, want)
	}
}
