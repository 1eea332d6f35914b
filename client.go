package ftp

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/relayftp/goftpd/netutil"
	"github.com/relayftp/goftpd/wire"
)

// Client represents an FTP client connection, implementing the command
// subset in spec.md §4.4: login, directory navigation, listing, and
// retrieval, over either active (PORT/EPRT) or passive (PASV/EPSV)
// data channels.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	timeout time.Duration
	logger  *slog.Logger
	dialer  *net.Dialer

	host string
	port string

	// activeMode selects PORT/EPRT (client listens) over PASV/EPSV
	// (server listens); passive is the default.
	activeMode bool
	// useExtended selects EPRT/EPSV over PORT/PASV.
	useExtended bool

	// localAddrs is discovered once at Dial time and enforces spec.md
	// §3's session invariants: no local address at all forces passive
	// mode; no IPv4 address forces extended mode whenever active mode
	// is in play, since EPRT is the only way to active-mode without one.
	localAddrs netutil.Addresses

	// progress, if set, is called with cumulative bytes transferred
	// during Retrieve (WithProgress).
	progress func(bytesTransferred int64)

	mu          sync.Mutex
	lastCommand time.Time

	activeDataConn net.Conn
}

// Dial connects to an FTP server at the given address ("host:port")
// and reads the initial greeting.
func Dial(addr string, options ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
		dialer:  &net.Dialer{},
		logger:  slog.New(slog.NewTextHandler(nil, &slog.HandlerOptions{Level: slog.LevelError + 1})),
	}

	if addrs, err := netutil.Discover(); err == nil {
		c.localAddrs = addrs
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	c.enforceModeInvariants()

	c.dialer.Timeout = c.timeout

	if err := c.connect(); err != nil {
		return nil, err
	}

	c.lastCommand = time.Now()
	return c, nil
}

// enforceModeInvariants applies spec.md §3's client session invariants
// after Dial's options have run: with no local address at all, passive
// mode is the only option; with no IPv4 address, active mode can only
// work via EPRT.
func (c *Client) enforceModeInvariants() {
	if c.localAddrs.IPv4 == "" && c.localAddrs.IPv6 == "" {
		c.activeMode = false
	}
	if c.activeMode && c.localAddrs.IPv4 == "" {
		c.useExtended = true
	}
}

// SetActiveMode switches between active (PORT/EPRT) and passive
// (PASV/EPSV) data connections. Turning active mode on without an IPv4
// address is refused unless extended mode (EPRT) is also requested, or
// already in effect — EPRT is the only active-mode verb that doesn't
// need one (spec.md §3, §4.4's "passive"/"extended" toggles). With no
// local address at all, turning active mode on is always refused.
func (c *Client) SetActiveMode(active bool) error {
	if active && c.localAddrs.IPv4 == "" && c.localAddrs.IPv6 == "" {
		return fmt.Errorf("ftp: active mode needs a local address")
	}
	if active && c.localAddrs.IPv4 == "" && !c.useExtended {
		return fmt.Errorf("ftp: active mode needs an IPv4 address or extended mode")
	}
	c.activeMode = active
	return nil
}

// SetExtendedMode switches between EPRT/EPSV and PORT/PASV. Turning
// extended mode off while in active mode without an IPv4 address is
// refused: it would leave the session with no workable active-mode
// verb (spec.md §3's invariant).
func (c *Client) SetExtendedMode(extended bool) error {
	if !extended && c.activeMode && c.localAddrs.IPv4 == "" {
		return fmt.Errorf("ftp: extended mode is required for active mode without an IPv4 address")
	}
	c.useExtended = extended
	return nil
}

// connect establishes the control connection and reads the 220 greeting.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting to ftp server", "addr", addr)

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(c.conn)

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.conn.Close()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	// A 120 ("service ready in N minutes") isn't the greeting itself;
	// the client just keeps reading until the real 220 or a failure
	// (spec.md §4.4 step 1).
	var resp *Response
	for {
		resp, err = wire.ReadReply(c.reader)
		if err != nil {
			c.conn.Close()
			return fmt.Errorf("failed to read greeting: %w", err)
		}
		c.logger.Debug("ftp greeting", "code", resp.Code, "message", resp.Message)
		if resp.Code != 120 {
			break
		}
	}

	if resp.Code != 220 {
		c.conn.Close()
		return &ProtocolError{Command: "CONNECT", Response: resp.Message, Code: resp.Code}
	}
	return nil
}

// Login authenticates with the FTP server using the provided username
// and password, handling the three shapes spec.md §4.1 allows: an
// immediate 230 (no password needed), a 331 requiring PASS, or a
// rejection.
func (c *Client) Login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	if resp.Code == 230 {
		return nil
	}
	if resp.Code != 331 {
		return &ProtocolError{Command: "USER", Response: resp.Message, Code: resp.Code}
	}

	passResp, err := c.sendCommand("PASS", password)
	if err != nil {
		return err
	}
	if passResp.Code == 202 {
		// PASS not required after all; USER alone already logged in.
		return nil
	}
	if passResp.Code != 230 {
		return &ProtocolError{Command: "PASS", Response: passResp.Message, Code: passResp.Code}
	}
	return nil
}

// Quit closes the connection gracefully by sending the QUIT command.
func (c *Client) Quit() error {
	if c.conn == nil {
		return nil
	}

	c.mu.Lock()
	if c.activeDataConn != nil {
		c.activeDataConn.Close()
		c.activeDataConn = nil
	}
	c.mu.Unlock()

	_, _ = c.sendCommand("QUIT")
	return c.conn.Close()
}

// Help requests the server's help text, either general (no argument)
// or for a specific command.
func (c *Client) Help(command string) (*Response, error) {
	if command == "" {
		return c.sendCommand("HELP")
	}
	return c.sendCommand("HELP", command)
}

// DownloadFile manages the download of a remote file to the local
// filesystem, creating or truncating the local file.
func (c *Client) DownloadFile(remotePath, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer f.Close()

	if err := c.Retrieve(remotePath, f); err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("download failed: %w", err)
	}
	return nil
}
