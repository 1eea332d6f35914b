package ftp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"strings"
	"testing"
)

func TestREPL_CDAndPWD(t *testing.T) {
	t.Parallel()
	s := newFakeServer(t)
	defer s.close()

	s.serve(func(conn net.Conn, r *bufio.Reader) {
		io.WriteString(conn, "220 welcome\r\n")
		readLine(t, r) // CWD pub
		io.WriteString(conn, "250 directory changed\r\n")
		readLine(t, r) // PWD
		io.WriteString(conn, "257 \"/pub\" is the current directory\r\n")
		readLine(t, r) // QUIT
		io.WriteString(conn, "221 bye\r\n")
	})

	c, err := Dial(s.addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var out bytes.Buffer
	repl := &REPL{client: c, in: bufio.NewScanner(strings.NewReader("cd pub\npwd\nquit\n")), out: &out}
	if err := repl.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "directory changed") {
		t.Errorf("output = %q, want it to mention the directory change", got)
	}
	if !strings.Contains(got, "/pub") {
		t.Errorf("output = %q, want it to mention /pub", got)
	}
}

func TestREPL_UnknownCommandIsNonFatal(t *testing.T) {
	t.Parallel()
	s := newFakeServer(t)
	defer s.close()

	s.serve(func(conn net.Conn, r *bufio.Reader) {
		io.WriteString(conn, "220 welcome\r\n")
		readLine(t, r) // QUIT
		io.WriteString(conn, "221 bye\r\n")
	})

	c, err := Dial(s.addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var out bytes.Buffer
	repl := &REPL{client: c, in: bufio.NewScanner(strings.NewReader("frobnicate\nquit\n")), out: &out}
	if err := repl.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "unknown command") {
		t.Errorf("output = %q, want an unknown-command message", out.String())
	}
}

func TestREPL_CWDFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	s := newFakeServer(t)
	defer s.close()

	s.serve(func(conn net.Conn, r *bufio.Reader) {
		io.WriteString(conn, "220 welcome\r\n")
		readLine(t, r) // CWD missing
		io.WriteString(conn, "550 no such directory\r\n")
		readLine(t, r) // QUIT
		io.WriteString(conn, "221 bye\r\n")
	})

	c, err := Dial(s.addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}

	var out bytes.Buffer
	repl := &REPL{client: c, in: bufio.NewScanner(strings.NewReader("cd missing\nquit\n")), out: &out}
	if err := repl.Run(); err != nil {
		t.Fatalf("Run() error = %v, want nil (550 is non-fatal)", err)
	}
	if !strings.Contains(out.String(), "550") {
		t.Errorf("output = %q, want it to surface the 550", out.String())
	}
}
