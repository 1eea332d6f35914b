package server

import (
	"io"
)

// Driver authenticates a session and hands back a ClientContext scoped
// to that user's view of the filesystem (spec.md §3, §4.6).
type Driver interface {
	// Authenticate validates user/pass. Returns os.ErrPermission (or an
	// error satisfying os.IsPermission) for invalid credentials.
	Authenticate(user, pass string) (ClientContext, error)

	// AccountExists reports whether user names a known account, so USER
	// can reply 530 immediately (spec.md §4.5) rather than waiting for
	// PASS to discover the account doesn't exist.
	AccountExists(user string) bool
}

// ClientContext isolates one session's filesystem operations below its
// root directory. Every path it accepts may be relative to the current
// working directory or absolute within the user's virtual root; every
// path it returns is canonical and absolute within that same root.
//
// This server's command surface (spec.md §4.4) only ever reads: there
// is no MakeDir/RemoveDir/DeleteFile/Rename, matching the explicit
// Non-goals around STOR/APPE/RNFR/RNTO/DELE/MKD/RMD.
type ClientContext interface {
	// ChangeDir changes the current working directory. Returns
	// os.ErrNotExist if the destination doesn't exist, and a non-nil error
	// if it isn't a directory.
	ChangeDir(path string) error

	// GetWd returns the current working directory, canonical and absolute.
	GetWd() (string, error)

	// ListDir returns the names of entries in path (or the current
	// directory, if path is ""), in the order the underlying filesystem
	// enumerates them. If path names a regular file, ListDir returns
	// that file's own name as the sole entry (spec.md §4.4 "ls").
	ListDir(path string) ([]string, error)

	// OpenFile opens path for reading.
	OpenFile(path string) (io.ReadCloser, error)

	// Close releases any resources held for this session.
	Close() error

	// GetSettings returns the data-channel settings (public host, PASV
	// port range) this session should advertise. Never nil.
	GetSettings() *Settings
}

// Settings configures what a session advertises for passive-mode data
// connections, mirroring config.Config's port_mode/pasv_mode switches
// (spec.md §4.5: PASV/PORT each require login and "the corresponding
// enablement flag from the server config").
type Settings struct {
	// PublicHost is the address advertised in PASV replies. If
	// empty, the server uses the control connection's local address.
	PublicHost string

	// PasvMinPort/PasvMaxPort bound the ephemeral port range used for
	// passive data listeners. If both are 0, the OS picks a random port.
	PasvMinPort int
	PasvMaxPort int

	// PortEnabled/PasvEnabled gate the PORT/EPRT and PASV commands (EPSV
	// always replies 502). A disabled mode replies 502 rather than
	// performing the setup. The zero Settings disables both; NewFSDriver
	// given nil settings uses a Settings with both enabled.
	PortEnabled bool
	PasvEnabled bool
}
