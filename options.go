package ftp

import (
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// WithTimeout sets the timeout for connection and operations.
// This applies to both the initial connection and subsequent read/write operations.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All FTP commands and responses will be logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing connections.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

// WithActiveMode enables active mode (PORT/EPRT) instead of the default
// passive mode (PASV/EPSV). The client opens a listener and tells the
// server to connect back to it.
func WithActiveMode() Option {
	return func(c *Client) error {
		c.activeMode = true
		return nil
	}
}

// WithExtendedMode selects the extended negotiation verbs (EPRT in
// active mode, EPSV in passive mode) over the classic PORT/PASV pair.
func WithExtendedMode() Option {
	return func(c *Client) error {
		c.useExtended = true
		return nil
	}
}

// WithProgress registers a callback invoked with the cumulative byte
// count during Retrieve/DownloadFile, for callers that want to render
// a progress bar over what is otherwise a single io.Copy.
func WithProgress(callback func(bytesTransferred int64)) Option {
	return func(c *Client) error {
		c.progress = callback
		return nil
	}
}
