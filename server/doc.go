// Package server implements the concurrent, multi-user FTP server
// described in spec.md §4.5: one session per accepted control
// connection, authenticated and rooted below a single directory via a
// pluggable Driver.
//
// # Overview
//
// The command surface is deliberately small: USER, PASS, CWD, CDUP,
// PWD, PASV, PORT, EPRT, LIST, RETR, HELP, QUIT. There is no STOR, no
// TLS, no MLSD/MLST, and EPSV always replies 502 (see DESIGN.md) —
// this is a read-only, plaintext server, not a general-purpose FTPD.
//
// # Getting started
//
//	fs := afero.NewOsFs()
//	accts, err := accounts.LoadFile("ftpd.users")
//	driver, err := server.NewFSDriver(fs, "/srv/ftp", accts, nil)
//	logger := logging.New(os.Stderr)
//	s, err := server.NewServer(":2121", driver, logger)
//	err = s.ListenAndServe()
//
// # Custom drivers
//
// Driver and ClientContext are the seam for a non-filesystem backend:
// implement Authenticate and AccountExists, and hand back a
// ClientContext that implements ChangeDir/GetWd/ListDir/OpenFile/Close/
// GetSettings against whatever storage you like.
//
// # Passive mode
//
// Settings.PublicHost/PasvMinPort/PasvMaxPort configure what a session
// advertises in PASV replies; behind NAT, set PublicHost to the
// server's externally reachable address. Settings.PortEnabled/
// PasvEnabled gate PORT/EPRT and PASV respectively, mirroring
// config.Config's port_mode/pasv_mode keys — a disabled mode replies
// 502.
package server
