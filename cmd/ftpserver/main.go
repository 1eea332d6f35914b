// Command ftpserver runs the concurrent multi-user FTP server described
// in spec.md §4.5. Usage: ftpserver <port>.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/afero"

	ftp "github.com/relayftp/goftpd"
	"github.com/relayftp/goftpd/accounts"
	"github.com/relayftp/goftpd/config"
	"github.com/relayftp/goftpd/logging"
	"github.com/relayftp/goftpd/server"
)

// shutdownGrace bounds how long the server waits for in-flight sessions
// to finish once an interrupt or SIGTERM is received.
const shutdownGrace = 10 * time.Second

// Exit codes mirror spec.md §6's "nonzero = specific failure kind".
// exitBadUsage has no corresponding ftp.Kind (argv validation happens
// before any Kind-classified operation runs); every other nonzero code
// is produced by exitCode classifying a *ftp.KindError.
const (
	exitOK = iota
	exitBadUsage
	exitConfigFile
	exitFileOpen
	exitBind
	exitListen
)

// exitCode maps the ftp.Kind taxonomy (spec.md §7) onto this program's
// process exit status, the Go equivalent of the original C server's
// status_t -> exit-code table.
func exitCode(k ftp.Kind) int {
	switch k {
	case ftp.KindConfigFile:
		return exitConfigFile
	case ftp.KindFileOpen:
		return exitFileOpen
	case ftp.KindBind:
		return exitBind
	case ftp.KindListen, ftp.KindAccepting:
		return exitListen
	default:
		return exitFileOpen
	}
}

// configPath is where the server discovers its configuration, per
// spec.md §1: "Configuration file reading" is a collaborator whose
// location is fixed by convention rather than a second CLI argument
// (the CLI surface is just "ftpserver <port>").
const configPath = "ftpserver.conf"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: ftpserver <port>")
		return exitBadUsage
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintln(os.Stderr, "ftpserver: port must be a positive integer <= 65535")
		return exitBadUsage
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindConfigFile, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}

	num, err := cfg.AdvanceLogNum()
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindConfigFile, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	logger, err := logging.Open(cfg.LogDirectory, num)
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindFileOpen, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	defer logger.Close()

	accts, err := accounts.LoadFile(cfg.UsernameFile)
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindFileOpen, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}

	wd, err := os.Getwd()
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindFileOpen, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}

	driver, err := server.NewFSDriver(afero.NewOsFs(), wd, accts, &server.Settings{
		PortEnabled: cfg.PortMode,
		PasvEnabled: cfg.PasvMode,
	})
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindFileOpen, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}

	addr := fmt.Sprintf(":%d", port)
	srv, err := server.NewServer(addr, driver, logger)
	if err != nil {
		kindErr := ftp.NewKindError(ftp.KindBind, err)
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != server.ErrServerClosed {
		// ListenAndServe/Serve already classify bind vs. accept failures
		// (KindListen vs. KindAccepting); fall back to KindListen only if
		// something unclassified escapes.
		kindErr, ok := err.(*ftp.KindError)
		if !ok {
			kindErr = ftp.NewKindError(ftp.KindListen, err)
		}
		fmt.Fprintf(os.Stderr, "ftpserver: %v\n", kindErr)
		return exitCode(kindErr.Kind)
	}
	<-shutdownDone
	return exitOK
}
