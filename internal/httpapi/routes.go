// Package httpapi serves the HTTP side channel next to the socket: health,
// status and metrics.
package httpapi

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/secure"
)

const (
	ServerName     = "peronio-mmorpg"
	DefaultVersion = "0.1.0"
)

type Options struct {
	Env       string
	Version   string
	ClientURL string

	// Socket is mounted at SocketPath without the HTTP middleware so the
	// upgrade sees the raw response writer.
	Socket     http.Handler
	SocketPath string

	// Connections reports the live socket count for /api/v1/status.
	Connections func() int
	// Metrics serves /metrics when set.
	Metrics http.Handler

	Clock  clock.Clock
	Logger zerolog.Logger
}

// SetupRoutes builds the router.
func SetupRoutes(opts Options) http.Handler {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(
			hlog.NewHandler(opts.Logger),
			hlog.RemoteAddrHandler("ip"),
			hlog.RequestIDHandler("req_id", "Request-Id"),
			hlog.AccessHandler(accessLog),
			secureHeaders(opts.Env),
			corsFor(opts.ClientURL),
		)

		r.Get("/health", Health(opts))
		r.Get("/api/v1/status", Status(opts))
		if opts.Metrics != nil {
			r.Handle("/metrics", opts.Metrics)
		}
	})

	if opts.Socket != nil {
		r.Handle(opts.SocketPath, opts.Socket)
	}
	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Stringer("url", r.URL).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}

func secureHeaders(env string) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		SSLRedirect:          false,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
		IsDevelopment:        env != "production",
	}).Handler
}

func corsFor(clientURL string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{clientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
	}).Handler
}
