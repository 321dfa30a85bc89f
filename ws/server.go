// Package ws is the public entry point to the WebSocket transport.
package ws

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/peronio/realmnet/internal/dispatch"
	"github.com/peronio/realmnet/internal/websocket"
)

// DefaultPath is where the upgrade endpoint is mounted when
// ServerConfig.Path is empty.
const DefaultPath = websocket.DefaultPath

type RateLimitConfig = websocket.RateLimitConfig
type CheckOriginFn = websocket.CheckOriginFn
type OnConnectFn = websocket.OnConnectFn
type OnDisconnectFn = websocket.OnClientDisconnectFn
type ServerConfig = websocket.ServerConfig
type Server = websocket.Server
type ClientConfig = websocket.ClientConfig
type Client = websocket.Client
type Metrics = websocket.Metrics

// Registry is the live connection set returned by Server.Registry.
type Registry = dispatch.Registry

// Filter selects broadcast targets.
type Filter = dispatch.Filter

// New creates a WebSocket server. Mount it with ServeHTTP or run it alone
// with Start.
//
// Example:
//
//	server := ws.New(ws.NewConfig(":3001", ws.DefaultRateLimitConfig(), ws.AllowedOrigins("http://localhost:5173")))
func New(cfg *ServerConfig) *Server {
	return websocket.New(cfg)
}

func NewConfig(addr string, rateLimitConfig *RateLimitConfig, checkOrigin CheckOriginFn) *ServerConfig {
	return &websocket.ServerConfig{
		Addr:            addr,
		RateLimitConfig: rateLimitConfig,
		CheckOrigin:     checkOrigin,
	}
}

// Dial returns a reconnecting client for url. Call Connect on it to start.
func Dial(url string) *Client {
	return websocket.NewClient(&websocket.ClientConfig{URL: url})
}

// NewClient returns a reconnecting client configured by cfg.
func NewClient(cfg *ClientConfig) *Client {
	return websocket.NewClient(cfg)
}

// AllOrigins returns the default checkOrigin function that allows all origins
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool {
		return true
	}
}

// AllowedOrigins accepts requests without an Origin header and requests
// whose Origin matches one of origins, compared case-insensitively.
func AllowedOrigins(origins ...string) CheckOriginFn {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

// URLFromPage derives the socket URL from the URL of the page that hosts
// the client: https pages get wss, anything else gets ws.
func URLFromPage(page, path string) (string, error) {
	u, err := url.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("page url %q has no host", page)
	}
	scheme := "ws"
	if strings.EqualFold(u.Scheme, "https") {
		scheme = "wss"
	}
	if path == "" {
		path = websocket.DefaultPath
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return websocket.DefaultRateLimitConfig()
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return websocket.NoRateLimit()
}
