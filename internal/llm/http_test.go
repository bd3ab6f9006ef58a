package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestJSONEndpoint_APIErrorTruncatesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer server.Close()

	e := jsonEndpoint{provider: "test", client: server.Client()}
	var out struct{}
	err := e.post(context.Background(), server.URL, map[string]string{"a": "b"}, &out)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", apiErr.StatusCode)
	}
	if len(apiErr.Message) != maxErrorBody+3 {
		t.Errorf("Expected truncated message, got %d bytes", len(apiErr.Message))
	}
}

func TestJSONEndpoint_SendsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("Expected X-Token header, got %q", r.Header.Get("X-Token"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	e := jsonEndpoint{provider: "test", client: server.Client(), headers: map[string]string{"X-Token": "secret"}}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := e.post(context.Background(), server.URL, struct{}{}, &out); err != nil {
		t.Fatalf("post failed: %v", err)
	}
	if !out.OK {
		t.Error("Expected decoded response")
	}
}

func TestTemperatureOr(t *testing.T) {
	if got := temperatureOr(0, 0.3); got != 0.3 {
		t.Errorf("Expected configured temperature, got %v", got)
	}
	if got := temperatureOr(0.9, 0.3); got != 0.9 {
		t.Errorf("Expected requested temperature, got %v", got)
	}
}
