package ftp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// REPL drives an interactive session from user input to protocol
// commands, per spec.md §4.4: split on whitespace, match the first
// token against a fixed command table, translate to a protocol
// sequence, classify the result as fatal (tear down) or non-fatal
// (print and re-prompt).
type REPL struct {
	client *Client
	in     *bufio.Scanner
	out    io.Writer
	prompt string
}

// NewREPL wraps an already-logged-in Client with an interactive loop
// reading from in and writing prompts/output to out.
func NewREPL(client *Client, in io.Reader, out io.Writer) *REPL {
	return &REPL{client: client, in: bufio.NewScanner(in), out: out, prompt: "ftp> "}
}

// commandTable maps the first REPL token to its handler. Unlike the
// wire-protocol verb table (uppercase, fixed arity), REPL commands are
// lowercase and take a raw argument string to split themselves.
var commandTable = map[string]func(*REPL, string) error{
	"cd":       (*REPL).cmdCD,
	"cdup":     (*REPL).cmdCDUP,
	"ls":       (*REPL).cmdLS,
	"get":      (*REPL).cmdGET,
	"pwd":      (*REPL).cmdPWD,
	"help":     (*REPL).cmdHelp,
	"quit":     (*REPL).cmdQuit,
	"passive":  (*REPL).cmdPassive,
	"extended": (*REPL).cmdExtended,
}

// errQuit is returned by cmdQuit to unwind the Run loop without being
// treated as a failure.
var errQuit = fmt.Errorf("quit")

// Run reads lines until quit, EOF, or a fatal error. A 530 mid-session
// (spec.md §7's LogInError) demotes the session to the login prompt
// rather than ending the loop or being treated as an ordinary non-fatal
// reply; a ProtocolError classified non-fatal (anything but a
// connection-ending 421) is printed and the loop continues; any other
// error is fatal and ends the loop.
func (r *REPL) Run() error {
	fmt.Fprint(r.out, r.prompt)
	for r.in.Scan() {
		line := strings.TrimSpace(r.in.Text())
		if line != "" {
			if err := r.dispatch(line); err != nil {
				switch {
				case err == errQuit:
					return nil
				case isLogInError(err):
					fmt.Fprintf(r.out, "%v\n", err)
					if err := PromptLogin(r.client, r.in, r.out); err != nil {
						return err
					}
				case !r.nonFatal(err):
					return err
				}
			}
		}
		fmt.Fprint(r.out, r.prompt)
	}
	return r.in.Err()
}

// isLogInError reports whether err is a 530 reply to a command other
// than login itself — spec.md §7's LogInError, which demotes the
// client back to the login prompt rather than ending the session.
func isLogInError(err error) bool {
	pe, ok := err.(*ProtocolError)
	return ok && pe.Code == 530
}

// nonFatal prints a diagnostic and reports whether the loop should
// continue: a ProtocolError with code 421 is always fatal (service
// going away); every other ProtocolError, and any non-ProtocolError
// failure (I/O, local file errors), is printed and treated as
// non-fatal, since it doesn't end the control connection.
func (r *REPL) nonFatal(err error) bool {
	fmt.Fprintf(r.out, "%v\n", err)
	if pe, ok := err.(*ProtocolError); ok && pe.Code == 421 {
		return false
	}
	return true
}

func (r *REPL) dispatch(line string) error {
	fields := strings.Fields(line)
	verb := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	handler, ok := commandTable[verb]
	if !ok {
		fmt.Fprintf(r.out, "unknown command: %s\n", verb)
		return nil
	}
	return handler(r, arg)
}

func (r *REPL) cmdCD(arg string) error {
	if err := r.client.ChangeDir(arg); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "250 directory changed")
	return nil
}

func (r *REPL) cmdCDUP(string) error {
	if err := r.client.ChangeDirUp(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "200 directory changed")
	return nil
}

func (r *REPL) cmdPWD(string) error {
	dir, err := r.client.CurrentDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%q is the current directory\n", dir)
	return nil
}

func (r *REPL) cmdLS(arg string) error {
	names, err := r.client.List(arg)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(r.out, name)
	}
	return nil
}

func (r *REPL) cmdGET(arg string) error {
	fields := strings.Fields(arg)
	if len(fields) == 0 {
		fmt.Fprintln(r.out, "usage: get SRC [DST]")
		return nil
	}
	src := fields[0]
	dst := src
	if len(fields) > 1 {
		dst = fields[1]
	}
	if err := r.client.DownloadFile(src, dst); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "downloaded %s to %s\n", src, dst)
	return nil
}

func (r *REPL) cmdHelp(arg string) error {
	resp, err := r.client.Help(arg)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, resp.Message)
	for _, line := range resp.Lines {
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *REPL) cmdQuit(string) error {
	r.client.Quit()
	return errQuit
}

// cmdPassive flips the active/passive flag (spec.md §4.4): active ->
// passive, or passive -> active if an address is available to actively
// connect from (SetActiveMode refuses otherwise, per spec.md §3).
func (r *REPL) cmdPassive(string) error {
	if err := r.client.SetActiveMode(!r.client.activeMode); err != nil {
		return err
	}
	if r.client.activeMode {
		fmt.Fprintln(r.out, "active mode")
	} else {
		fmt.Fprintln(r.out, "passive mode")
	}
	return nil
}

// cmdExtended flips the EPRT/EPSV-vs-PORT/PASV flag. Turning extended
// mode off is refused by SetExtendedMode when active mode is in effect
// without an IPv4 address (spec.md §3's invariant).
func (r *REPL) cmdExtended(string) error {
	if err := r.client.SetExtendedMode(!r.client.useExtended); err != nil {
		return err
	}
	if r.client.useExtended {
		fmt.Fprintln(r.out, "extended mode")
	} else {
		fmt.Fprintln(r.out, "standard mode")
	}
	return nil
}

// PromptLogin runs the login handshake interactively, prompting on out
// and reading from in (spec.md §4.4 steps 3-6).
func PromptLogin(client *Client, in *bufio.Scanner, out io.Writer) error {
	fmt.Fprint(out, "Username: ")
	if !in.Scan() {
		return fmt.Errorf("ftp: no username given")
	}
	username := strings.TrimSpace(in.Text())

	fmt.Fprint(out, "Password: ")
	if !in.Scan() {
		return fmt.Errorf("ftp: no password given")
	}
	password := strings.TrimSpace(in.Text())

	if err := client.Login(username, password); err != nil {
		return NewKindError(KindLogIn, err)
	}
	return nil
}

// RunInteractive is the top-level entry point used by cmd/ftpclient: it
// prompts for credentials, then drives the REPL against stdin/stdout
// until quit or a fatal error.
func RunInteractive(client *Client) error {
	scanner := bufio.NewScanner(os.Stdin)
	if err := PromptLogin(client, scanner, os.Stdout); err != nil {
		return err
	}
	repl := &REPL{client: client, in: scanner, out: os.Stdout, prompt: "ftp> "}
	return repl.Run()
}
