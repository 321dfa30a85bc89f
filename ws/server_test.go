package ws

import (
	"net/http/httptest"
	"testing"
)

func TestURLFromPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page    string
		path    string
		want    string
		wantErr bool
	}{
		{page: "https://play.example.com/index.html", want: "wss://play.example.com/ws"},
		{page: "http://localhost:5173/", want: "ws://localhost:5173/ws"},
		{page: "HTTPS://example.com", path: "/game", want: "wss://example.com/game"},
		{page: "file:///tmp/index.html", wantErr: true},
		{page: "::nonsense", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			t.Parallel()

			got, err := URLFromPage(tt.page, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("URLFromPage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("URLFromPage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Parallel()

	check := AllowedOrigins("http://localhost:5173/")

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"HTTP://LOCALHOST:5173", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q allowed = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestAllOrigins(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anything")
	if !AllOrigins()(r) {
		t.Error("AllOrigins should accept every origin")
	}
}

func TestRateLimitHelpers(t *testing.T) {
	t.Parallel()

	if !DefaultRateLimitConfig().Enabled {
		t.Error("default config should be enabled")
	}
	if NoRateLimit().Enabled {
		t.Error("NoRateLimit should be disabled")
	}
	cfg := NewConfig(":3001", nil, nil)
	if cfg.Addr != ":3001" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if New(cfg) == nil {
		t.Error("New returned nil")
	}
}
