package ftp

import (
	"fmt"
	"strings"
	"time"

	"github.com/relayftp/goftpd/wire"
)

// Response represents an FTP server response. It is a thin alias over
// wire.Reply, the codec shared with the server package, so that client
// and server never disagree about what a reply line looks like.
type Response = wire.Reply

// Is2xx and Is5xx are provided directly by wire.Reply.

// sendCommand sends an FTP command and returns the response.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	arg := strings.Join(args, " ")
	cmd := command
	if arg != "" {
		cmd = fmt.Sprintf("%s %s", command, arg)
	}

	if c.logger != nil {
		c.logger.Debug("ftp command", "cmd", cmd)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastCommand = time.Now()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := wire.WriteCommand(c.conn, command, arg); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	resp, err := wire.ReadReply(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.logger != nil {
		c.logger.Debug("ftp response", "code", resp.Code, "message", resp.Message)
	}

	return resp, nil
}

// expectCode sends a command and verifies the response code matches the expected code.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if resp.Code != expectedCode {
		return resp, &ProtocolError{Command: command, Response: resp.Message, Code: resp.Code}
	}
	return resp, nil
}

// expect2xx sends a command and verifies the response is in the 2xx range (success).
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}
	if !resp.Is2xx() {
		return resp, &ProtocolError{Command: command, Response: resp.Message, Code: resp.Code}
	}
	return resp, nil
}
