// Command ftpclient is the interactive FTP client described in
// spec.md §4.4. Usage: ftpclient <host> <logfile> [port].
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lmittmann/tint"

	ftp "github.com/relayftp/goftpd"
)

const defaultPort = 21

// Exit codes mirror cmd/ftpserver's: exitBadUsage has no ftp.Kind (argv
// validation precedes any Kind-classified operation); every other
// nonzero code is produced by exitCode classifying a *ftp.KindError.
const (
	exitOK = iota
	exitBadUsage
	exitFileOpen
	exitSocketOpen
	exitNonFatal
)

func exitCode(k ftp.Kind) int {
	switch k {
	case ftp.KindFileOpen:
		return exitFileOpen
	case ftp.KindSocketOpen:
		return exitSocketOpen
	case ftp.KindLogIn, ftp.KindNonFatal:
		return exitNonFatal
	default:
		return exitNonFatal
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintln(os.Stderr, "usage: ftpclient <host> <logfile> [port]")
		return exitBadUsage
	}
	host := os.Args[1]
	logfile := os.Args[2]
	port := defaultPort
	if len(os.Args) == 4 {
		p, err := strconv.Atoi(os.Args[3])
		if err != nil || p <= 0 || p > 65535 {
			fmt.Fprintln(os.Stderr, "ftpclient: port must be a positive integer <= 65535")
			return exitBadUsage
		}
		port = p
	}

	logf, err := os.OpenFile(logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindFileOpen, err)
		fmt.Fprintf(os.Stderr, "ftpclient: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	defer logf.Close()
	logger := slog.New(tint.NewHandler(logf, &tint.Options{NoColor: true}))

	addr := fmt.Sprintf("%s:%d", host, port)
	client, err := ftp.Dial(addr, ftp.WithLogger(logger))
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindSocketOpen, err)
		fmt.Fprintf(os.Stderr, "ftpclient: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	defer client.Quit()

	if err := ftp.RunInteractive(client); err != nil {
		// PromptLogin already classifies its own failures as KindLogIn;
		// anything else bubbling out of the REPL loop is a plain I/O or
		// protocol failure that ended the session.
		kindErr, ok := err.(*ftp.KindError)
		if !ok {
			kindErr = ftp.NewKindError(ftp.KindNonFatal, err)
		}
		fmt.Fprintf(os.Stderr, "ftpclient: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	return exitOK
}
