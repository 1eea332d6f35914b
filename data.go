package ftp

import (
	"fmt"
	"net"
	"time"

	"github.com/relayftp/goftpd/dataconn"
	"github.com/relayftp/goftpd/wire"
)

// resolveDataAddr replaces a PASV/EPSV-reported 0.0.0.0 with the control
// connection's host, the way real servers behind NAT expect clients to.
func resolveDataAddr(host, controlHost string) string {
	if host == "0.0.0.0" {
		return controlHost
	}
	return host
}

// openDataConn opens a data connection using whichever mode the client
// is currently configured for: active (PORT/EPRT) or passive (PASV/EPSV).
func (c *Client) openDataConn() (net.Conn, error) {
	if c.activeMode {
		return c.openActiveDataConn()
	}
	return c.openPassiveDataConn()
}

// openActiveDataConn opens a data connection using active mode. The
// client listens on a local port and tells the server, via PORT or
// EPRT, to connect back to it; the ordering is strict (spec.md §3):
// the listener must exist before the command is sent.
func (c *Client) openActiveDataConn() (net.Conn, error) {
	localAddr := c.conn.LocalAddr().String()
	host, _, err := net.SplitHostPort(localAddr)
	if err != nil {
		host = "127.0.0.1"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	listenHost, portStr, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, err
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	var resp *Response
	var cmd string
	if c.useExtended {
		cmd = "EPRT"
		arg, encErr := dataconn.EncodeEPRT(listenHost, port)
		if encErr != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to encode EPRT: %w", encErr)
		}
		resp, err = c.sendCommand("EPRT", arg)
	} else {
		cmd = "PORT"
		arg, encErr := dataconn.EncodePORT(listenHost, port)
		if encErr != nil {
			listener.Close()
			return nil, fmt.Errorf("failed to encode PORT: %w", encErr)
		}
		resp, err = c.sendCommand("PORT", arg)
	}
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("%s failed: %w", cmd, err)
	}
	if !resp.Is2xx() {
		listener.Close()
		return nil, &ProtocolError{Command: cmd, Response: resp.Message, Code: resp.Code}
	}

	return &activeDataConn{listener: listener, timeout: c.timeout}, nil
}

// activeDataConn wraps a listener for active mode: it accepts lazily,
// on the first Read or Write, once the server connects back.
type activeDataConn struct {
	listener net.Listener
	conn     net.Conn
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	c, err := a.listener.Accept()
	if err != nil {
		return err
	}
	a.conn = c
	return nil
}

func (a *activeDataConn) Read(p []byte) (int, error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (int, error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

func (a *activeDataConn) Close() error {
	var err1, err2 error
	if a.conn != nil {
		err1 = a.conn.Close()
	}
	if a.listener != nil {
		err2 = a.listener.Close()
	}
	return Teardown(err1, err2)
}

func (a *activeDataConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeDataConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// openPassiveDataConn opens a data connection using passive mode: the
// server listens and reports where with PASV or EPSV, and the client
// connects to it before sending the data-transfer command (spec.md §3).
func (c *Client) openPassiveDataConn() (net.Conn, error) {
	var addr string

	if c.useExtended {
		resp, err := c.sendCommand("EPSV")
		if err != nil {
			return nil, fmt.Errorf("EPSV failed: %w", err)
		}
		if resp.Code == 502 {
			return nil, &ProtocolError{Command: "EPSV", Response: resp.Message, Code: resp.Code}
		}
		if !resp.Is2xx() {
			return nil, &ProtocolError{Command: "EPSV", Response: resp.Message, Code: resp.Code}
		}
		port, err := dataconn.ParseEPSV(resp.Message)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EPSV reply: %w", err)
		}
		addr = net.JoinHostPort(c.host, fmt.Sprintf("%d", port))
	} else {
		resp, err := c.sendCommand("PASV")
		if err != nil {
			return nil, fmt.Errorf("PASV failed: %w", err)
		}
		if !resp.Is2xx() {
			return nil, &ProtocolError{Command: "PASV", Response: resp.Message, Code: resp.Code}
		}
		host, port, err := dataconn.ParsePASV(resp.Message)
		if err != nil {
			return nil, err
		}
		host = resolveDataAddr(host, c.host)
		addr = net.JoinHostPort(host, fmt.Sprintf("%d", port))
	}

	dataConn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}

	if c.timeout > 0 {
		return &deadlineConn{Conn: dataConn, timeout: c.timeout}, nil
	}
	return dataConn, nil
}

// cmdDataConnFrom opens a data connection, sends cmd, and returns the
// response and data connection. The caller closes the data connection
// and reads the final control reply via finishDataConn.
func (c *Client) cmdDataConnFrom(cmd string, args ...string) (*Response, net.Conn, error) {
	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	c.activeDataConn = dataConn
	c.mu.Unlock()

	resp, err := c.sendCommand(cmd, args...)
	if err != nil {
		dataConn.Close()
		c.mu.Lock()
		c.activeDataConn = nil
		c.mu.Unlock()
		return nil, nil, err
	}

	if resp.Code >= 400 {
		dataConn.Close()
		c.mu.Lock()
		c.activeDataConn = nil
		c.mu.Unlock()
		return resp, nil, &ProtocolError{Command: cmd, Response: resp.Message, Code: resp.Code}
	}

	return resp, dataConn, nil
}

// finishDataConn closes the data connection and reads the mandatory
// final control reply (226/225) that follows data-channel EOF.
func (c *Client) finishDataConn(dataConn net.Conn) error {
	closeErr := dataConn.Close()

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	resp, err := wire.ReadReply(c.reader)
	c.mu.Lock()
	c.activeDataConn = nil
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read completion response: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("ftp data transfer complete", "code", resp.Code, "message", resp.Message)
	}

	if closeErr != nil {
		return closeErr
	}
	if !resp.Is2xx() {
		return &ProtocolError{Command: "DATA_TRANSFER", Response: resp.Message, Code: resp.Code}
	}
	return nil
}
