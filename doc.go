// Package ftp implements an interactive FTP client over a plaintext
// control connection, covering the command subset a REPL needs: login,
// directory navigation, listing, and binary-mode retrieval.
//
// # Overview
//
// This package provides:
//   - Active (PORT/EPRT) and passive (PASV/EPSV) data-channel negotiation
//   - Robust error handling with detailed protocol context
//   - Progress tracking via an io.Writer wrapper (ProgressWriter)
//
// TLS, STOR/APPE/rename/delete/mkdir, and MLSD are out of scope; see
// cmd/ftpclient for the REPL built on top of this package.
//
// # Basic Usage
//
//	client, err := ftp.Dial("ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Quit()
//
//	if err := client.Login("username", "password"); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Transfers
//
// Download a file:
//
//	file, err := os.Create("local.txt")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer file.Close()
//
//	if err := client.Retrieve("remote.txt", file); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	pw := &ftp.ProgressWriter{
//	    Writer: file,
//	    Callback: func(bytesTransferred int64) {
//	        fmt.Printf("Downloaded: %d bytes\n", bytesTransferred)
//	    },
//	}
//	err := client.Retrieve("remote.txt", pw)
//
// # Error Handling
//
// Errors returned by this package include detailed protocol context. Use type
// assertion to access the full error details:
//
//	if err := client.Retrieve("file.txt", writer); err != nil {
//	    if pe, ok := err.(*ftp.ProtocolError); ok {
//	        fmt.Printf("Command: %s\n", pe.Command)
//	        fmt.Printf("Response: %s\n", pe.Response)
//	        fmt.Printf("Code: %d\n", pe.Code)
//	    }
//	}
package ftp
