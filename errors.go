package ftp

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ProtocolError represents an FTP protocol error with full context of the
// command/response conversation. This provides detailed debugging information
// beyond simple error messages.
type ProtocolError struct {
	// Command is the FTP verb that was sent (e.g., "RETR")
	Command string

	// Response is the reply text received from the server, without its
	// code (e.g., "Permission denied")
	Response string

	// Code is the numeric FTP response code (e.g., 550)
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// Kind classifies the non-protocol errors a session can fail with —
// the failures the exit-code table in cmd/ftpserver and cmd/ftpclient
// maps back to process exit status.
type Kind int

const (
	KindSocketOpen Kind = iota
	KindBind
	KindListen
	KindSocketWrite
	KindSocketEOF
	KindServiceUnavailable
	KindAccepting
	KindConfigFile
	KindFileOpen
	KindNonFatal
	KindLogIn
)

var kindMessages = map[Kind]string{
	KindSocketOpen:         "unable to open socket",
	KindBind:               "unable to bind socket",
	KindListen:             "unable to listen on socket",
	KindSocketWrite:        "socket write failed",
	KindSocketEOF:          "connection closed by peer",
	KindServiceUnavailable: "service unavailable",
	KindAccepting:          "error accepting connection",
	KindConfigFile:         "invalid configuration file",
	KindFileOpen:           "unable to open file",
	KindNonFatal:           "non-fatal error",
	KindLogIn:              "login failed",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return "unknown error"
}

// Fatal reports whether an error of this kind should terminate the
// session (or, for KindBind/KindListen/KindSocketOpen, the whole
// server) rather than simply being logged and ignored.
func (k Kind) Fatal() bool {
	return k != KindNonFatal && k != KindLogIn
}

// KindError pairs a Kind with the underlying cause.
type KindError struct {
	Kind Kind
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *KindError) Unwrap() error { return e.Err }

// NewKindError wraps err with a Kind classification.
func NewKindError(k Kind, err error) *KindError {
	return &KindError{Kind: k, Err: err}
}

// Teardown aggregates the errors from closing a session's independent
// resources — control socket, data socket, working-directory state —
// so that a failure closing one does not hide a failure closing
// another (spec.md §9's "scoped acquisition" note). Any nil errors
// passed in are ignored; Teardown returns nil if everything succeeded.
func Teardown(errs ...error) error {
	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
