package util

import (
	"net/http"
	"testing"
	"time"
)

func TestNewProxyFunc_SchemeSelection(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "http://secure:3129")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u.Host != "secure:3129" {
		t.Errorf("expected https proxy, got %s", u.Host)
	}

	req, _ = http.NewRequest(http.MethodGet, "http://example.com", nil)
	u, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u.Host != "plain:3128" {
		t.Errorf("expected http proxy, got %s", u.Host)
	}
}

func TestNewProxyFunc_HTTPProxyServesHTTPS(t *testing.T) {
	proxy := NewProxyFunc("http://plain:3128", "")

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	u, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if u.Host != "plain:3128" {
		t.Errorf("expected http proxy fallback, got %s", u.Host)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient(5*time.Second, "", "")
	if client.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", client.Timeout)
	}
	if _, ok := client.Transport.(*http.Transport); !ok {
		t.Errorf("expected *http.Transport, got %T", client.Transport)
	}
}
