package websocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/peronio/realmnet"
	"github.com/peronio/realmnet/internal/dispatch"
	"github.com/peronio/realmnet/protocol"
)

// DefaultPath is where the upgrade endpoint is mounted.
const DefaultPath = "/ws"

// DefaultWelcomeMessage is sent as a system notice to every new connection.
const DefaultWelcomeMessage = "Welcome to Peronio MMORPG!"

// CheckOriginFn is a function that validates the origin of a WebSocket connection request.
// It receives the HTTP request and returns true if the origin is allowed, false otherwise.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called once a connection is registered, Connected and has
// been sent its welcome notice, before its read loop starts.
//
// Note: This function is called synchronously during connection setup.
// Avoid long-running operations that could block new connections.
type OnConnectFn = func(conn realmnet.Conn)

// OnClientDisconnectFn is called after a connection left the registry. voluntary is true
// when the peer sent a normal or going-away close frame.
type OnClientDisconnectFn = func(conn realmnet.Conn, voluntary bool)

// Metrics receives transport events. All methods must be safe for
// concurrent use.
type Metrics interface {
	dispatch.Observer
	ConnectionOpened()
	ConnectionClosed()
	RateLimited()
}

type ServerConfig struct {
	Addr               string
	Path               string
	RateLimitConfig    *RateLimitConfig
	CheckOrigin        CheckOriginFn
	OnConnect          OnConnectFn
	OnClientDisconnect OnClientDisconnectFn
	WelcomeMessage     string
	Metrics            Metrics
	Clock              clock.Clock
	Logger             *zerolog.Logger
}

// RateLimitConfig defines rate limiting configuration for clients
type RateLimitConfig struct {
	// MessagesPerSecond defines how many messages a client can send per second
	MessagesPerSecond rate.Limit
	// Burst defines the maximum burst size (token bucket capacity)
	Burst int
	// Enabled determines if rate limiting is active
	Enabled bool
}

// DefaultRateLimitConfig returns the default rate limit configuration
// Allows 100 messages per second with burst of 200
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		MessagesPerSecond: 100,
		Burst:             200,
		Enabled:           true,
	}
}

// NoRateLimit returns a configuration with rate limiting disabled
func NoRateLimit() *RateLimitConfig {
	return &RateLimitConfig{
		Enabled: false,
	}
}

// Server implements realmnet.Server and http.Handler.
type Server struct {
	addr     string
	path     string
	server   *http.Server
	registry *dispatch.Registry
	router   *dispatch.Router

	rateLimitConfig *RateLimitConfig

	mu           sync.RWMutex
	running      bool
	stopped      bool
	conns        sync.WaitGroup
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnClientDisconnectFn
	welcome      string
	metrics      Metrics
	clock        clock.Clock
	log          zerolog.Logger
}

var _ realmnet.Server = (*Server)(nil)

// New creates a server and its connection registry. A nil RateLimitConfig
// means DefaultRateLimitConfig().
//
// Example:
//
//	server := New(&ServerConfig{
//	    Addr:            ":3001",
//	    RateLimitConfig: DefaultRateLimitConfig(),
//	    CheckOrigin:     func(r *http.Request) bool { return true },
//	})
func New(cfg *ServerConfig) *Server {
	if cfg.RateLimitConfig == nil {
		cfg.RateLimitConfig = DefaultRateLimitConfig()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	welcome := cfg.WelcomeMessage
	if welcome == "" {
		welcome = DefaultWelcomeMessage
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	m := cfg.Metrics
	if m == nil {
		m = nopMetrics{}
	}

	registry := dispatch.NewRegistry(logger)
	return &Server{
		addr:            cfg.Addr,
		path:            path,
		registry:        registry,
		router:          dispatch.NewRouter(registry, m, logger),
		rateLimitConfig: cfg.RateLimitConfig,
		onConnect:       cfg.OnConnect,
		onDisconnect:    cfg.OnClientDisconnect,
		welcome:         welcome,
		metrics:         m,
		clock:           clk,
		log:             logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSizeIO,
			WriteBufferSize: bufferSizeIO,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Registry is the live connection set, for handlers that broadcast.
func (s *Server) Registry() *dispatch.Registry {
	return s.registry
}

// Path is the upgrade endpoint path.
func (s *Server) Path() string {
	return s.path
}

// Connections returns the number of registered connections.
func (s *Server) Connections() int {
	return s.registry.Len()
}

// Start listens on the configured address and serves the upgrade endpoint.
// A server that was stopped cannot be started again.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return realmnet.ErrServerAlreadyRunning
	}
	if s.stopped {
		s.mu.Unlock()
		return realmnet.ErrRegistryClosed
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(s.path, s)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("websocket listener stopped")
		}
	}()

	select {
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	default:
	}

	s.log.Info().Str("addr", ln.Addr().String()).Str("path", s.path).Msg("websocket server listening")
	return nil
}

// Stop closes every connection, the registry and the listener if Start
// opened one, then waits until every connection's OnClientDisconnect has
// returned or ctx is done. It is safe to call when the server is only
// mounted through ServeHTTP.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	s.registry.Close(ctx)

	var errs []error
	if wasRunning && s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Err(ctx.Err()).Msg("connections still closing after stop deadline")
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// Handle registers the handler for a client-origin kind.
func (s *Server) Handle(kind protocol.Kind, handler realmnet.HandlerFunc) error {
	return s.router.Handle(kind, handler)
}

// Broadcast sends msg to every Connected client.
func (s *Server) Broadcast(ctx context.Context, msg protocol.ServerMessage) (int, error) {
	return s.registry.Broadcast(ctx, msg, nil)
}

// ServeHTTP upgrades the request and starts serving the connection. The
// accept path only upgrades, registers and spawns the read loop. After Stop
// it answers 503.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		http.Error(w, realmnet.ReasonServerShutdown, http.StatusServiceUnavailable)
		return
	}
	// Counted under the lock so Stop never waits on a zero counter that is
	// about to grow.
	s.conns.Add(1)
	s.mu.RUnlock()

	conn := s.accept(w, r)
	if conn == nil {
		s.conns.Done()
		return
	}
	go func() {
		defer s.conns.Done()
		s.serveConn(conn)
	}()
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) *Conn {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.log.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("upgrade failed")
		return nil
	}

	conn := NewConn(ws, r.RemoteAddr, s.rateLimitConfig, s.clock, s.log)
	if err := s.registry.Add(conn); err != nil {
		conn.CloseWithCode(context.Background(), websocket.CloseGoingAway, realmnet.ReasonServerShutdown)
		return nil
	}
	if err := conn.Machine().Open(); err != nil {
		s.registry.Remove(conn.ID())
		conn.Close(context.Background())
		return nil
	}
	s.metrics.ConnectionOpened()
	conn.log.Info().Msg("connection opened")

	if err := s.registry.Send(conn.Context(), conn, protocol.NewNotice(protocol.NoticeInfo, s.welcome)); err != nil {
		conn.log.Warn().Err(err).Msg("failed to send welcome notice")
	}

	if s.onConnect != nil {
		s.onConnect(conn)
	}
	return conn
}

// serveConn reads frames in arrival order and dispatches each one before
// reading the next.
func (s *Server) serveConn(conn *Conn) {
	voluntary := false
	defer func() {
		s.registry.Remove(conn.ID())
		conn.Close(context.Background())
		s.metrics.ConnectionClosed()
		conn.log.Info().Bool("voluntary", voluntary).Msg("connection closed")

		if s.onDisconnect != nil {
			s.onDisconnect(conn, voluntary)
		}
	}()

	ws := conn.conn
	ws.SetReadLimit(protocol.MaxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			voluntary = websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				conn.log.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		ws.SetReadDeadline(time.Now().Add(pongWait))
		conn.Machine().Touch()

		if !conn.CheckRateLimit() {
			conn.log.Warn().Msg("rate limit exceeded")
			s.metrics.RateLimited()
			conn.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, realmnet.ReasonRateLimited)
			return
		}

		msg, err := protocol.ParseClient(data)
		if err != nil {
			s.router.Reject(conn.Context(), conn, err)
			continue
		}

		s.router.Dispatch(conn.Context(), conn, msg)
	}
}

type nopMetrics struct{}

func (nopMetrics) ObserveDispatch(protocol.Kind, string, time.Duration) {}
func (nopMetrics) ConnectionOpened()                                    {}
func (nopMetrics) ConnectionClosed()                                    {}
func (nopMetrics) RateLimited()                                         {}
