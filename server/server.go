package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	goftpd "github.com/relayftp/goftpd"
	"github.com/relayftp/goftpd/logging"
)

// Server is the concurrent, multi-user FTP server: one goroutine per
// accepted control connection, dispatching to a session (spec.md §4.5,
// §5). Each session owns its working directory and authentication state
// independently; the only shared state is the Driver and the Logger,
// both safe for concurrent use.
type Server struct {
	addr   string
	driver Driver
	logger *logging.Logger

	welcomeMessage string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxIdleTime    time.Duration

	maxConnections      int
	maxConnectionsPerIP int

	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	connsByIP  map[string]int
	activeConn atomic.Int32
	inShutdown atomic.Bool
}

// ErrServerClosed is returned by Serve/ListenAndServe after Shutdown.
var ErrServerClosed = errors.New("server: closed")

// NewServer creates a server listening on addr (":21" or "host:port"),
// authenticating sessions through driver.
func NewServer(addr string, driver Driver, logger *logging.Logger, options ...Option) (*Server, error) {
	if driver == nil {
		return nil, fmt.Errorf("server: driver is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("server: logger is required")
	}
	s := &Server{
		addr:           addr,
		driver:         driver,
		logger:         logger,
		welcomeMessage: "FTP server ready.",
		maxIdleTime:    5 * time.Minute,
		conns:          make(map[net.Conn]struct{}),
		connsByIP:      make(map[string]int),
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ListenAndServe listens on the server's configured address and serves
// until an error or Shutdown. A listen failure is returned as a
// *goftpd.KindError tagged KindListen, so callers (cmd/ftpserver) can
// classify it without string-matching.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return goftpd.NewKindError(goftpd.KindListen, fmt.Errorf("server: listen on %s: %w", s.addr, err))
	}
	return s.Serve(ln)
}

// Serve accepts connections from l until it's closed, dispatching each
// to its own session goroutine. An accept failure is returned as a
// *goftpd.KindError tagged KindAccepting, distinct from ListenAndServe's
// KindListen for the initial bind.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer l.Close()

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			return goftpd.NewKindError(goftpd.KindAccepting, fmt.Errorf("server: accept: %w", err))
		}
		go s.handleConnection(conn)
	}
}

// Shutdown stops accepting new connections and waits for active sessions
// to finish, or for ctx to expire, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for s.activeConn.Load() > 0 {
			time.Sleep(50 * time.Millisecond)
		}
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		conns := s.conns
		s.conns = make(map[net.Conn]struct{})
		s.mu.Unlock()
		for conn := range conns {
			conn.Close()
		}
		return ctx.Err()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	if !s.admit(conn) {
		conn.Close()
		return
	}
	defer s.release(conn)

	newSession(s, conn).serve()
}

// admit enforces connection limits and, if the connection is accepted,
// tracks it for Shutdown. It returns false if the connection must be
// rejected.
func (s *Server) admit(conn net.Conn) bool {
	remoteAddr := conn.RemoteAddr().String()
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inShutdown.Load() {
		return false
	}
	if s.maxConnections > 0 && len(s.conns) >= s.maxConnections {
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		s.logger.Error(ip, goftpd.NewKindError(goftpd.KindServiceUnavailable, fmt.Errorf("server: at max connections (%d)", s.maxConnections)))
		return false
	}
	if s.maxConnectionsPerIP > 0 && s.connsByIP[ip] >= s.maxConnectionsPerIP {
		fmt.Fprintf(conn, "421 Too many connections from your IP address.\r\n")
		s.logger.Error(ip, goftpd.NewKindError(goftpd.KindServiceUnavailable, fmt.Errorf("server: %s at max connections per IP (%d)", ip, s.maxConnectionsPerIP)))
		return false
	}

	s.conns[conn] = struct{}{}
	s.connsByIP[ip]++
	s.activeConn.Add(1)
	return true
}

func (s *Server) release(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		ip = remoteAddr
	}

	s.mu.Lock()
	delete(s.conns, conn)
	s.connsByIP[ip]--
	if s.connsByIP[ip] <= 0 {
		delete(s.connsByIP, ip)
	}
	s.mu.Unlock()

	s.activeConn.Add(-1)
}
