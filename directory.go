package ftp

import (
	"bufio"
	"fmt"
	"net"
	"strings"
)

// List returns the directory listing for path (or the current directory
// if path is empty), as returned by the server's LIST command: one
// name per line (spec.md §4.4, §8 — no column parsing, since this
// server never emits the Unix/DOS/EPLF detail formats a full client
// would need to understand).
func (c *Client) List(dir string) ([]string, error) {
	var (
		dataConn net.Conn
		err      error
	)
	if dir == "" {
		_, dataConn, err = c.cmdDataConnFrom("LIST")
	} else {
		_, dataConn, err = c.cmdDataConnFrom("LIST", dir)
	}
	if err != nil {
		return nil, err
	}

	var names []string
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		dataConn.Close()
		return nil, fmt.Errorf("failed to read directory listing: %w", err)
	}

	if err := c.finishDataConn(dataConn); err != nil {
		return nil, err
	}
	return names, nil
}

// ChangeDir changes the current working directory.
func (c *Client) ChangeDir(path string) error {
	_, err := c.expect2xx("CWD", path)
	return err
}

// ChangeDirUp moves to the parent of the current working directory.
func (c *Client) ChangeDirUp() error {
	_, err := c.expectCode(200, "CDUP")
	return err
}

// CurrentDir returns the current working directory, parsed from the
// quoted path in the PWD reply: 257 "/home/user" is the current directory.
func (c *Client) CurrentDir() (string, error) {
	resp, err := c.expectCode(257, "PWD")
	if err != nil {
		return "", err
	}

	msg := resp.Message
	start := strings.Index(msg, "\"")
	if start == -1 {
		return "", fmt.Errorf("invalid PWD response: %s", msg)
	}
	end := strings.Index(msg[start+1:], "\"")
	if end == -1 {
		return "", fmt.Errorf("invalid PWD response: %s", msg)
	}
	return msg[start+1 : start+1+end], nil
}
