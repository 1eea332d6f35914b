package ftp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/relayftp/goftpd/dataconn"
)

func TestList_PassiveMode(t *testing.T) {
	t.Parallel()
	control := newFakeServer(t)
	defer control.close()

	dataListener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer dataListener.Close()
	_, dataPortStr, _ := net.SplitHostPort(dataListener.Addr().String())
	var dataPort int
	for _, ch := range dataPortStr {
		dataPort = dataPort*10 + int(ch-'0')
	}

	go func() {
		conn, err := dataListener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		io.WriteString(conn, "alpha.txt\nbeta.txt\n")
	}()

	control.serve(func(conn net.Conn, r *bufio.Reader) {
		io.WriteString(conn, "220 welcome\r\n")
		readLine(t, r) // PASV
		io.WriteString(conn, "227 "+dataconn.FormatPASVReply("127.0.0.1", dataPort)+"\r\n")
		readLine(t, r) // LIST
		io.WriteString(conn, "150 opening data connection\r\n")
		io.WriteString(conn, "226 transfer complete\r\n")
	})

	c, err := Dial(control.addr())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.conn.Close()

	names, err := c.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "alpha.txt" || names[1] != "beta.txt" {
		t.Errorf("List() = %v, want [alpha.txt beta.txt]", names)
	}
}

func TestRetrieve_ActiveMode(t *testing.T) {
	t.Parallel()
	control := newFakeServer(t)
	defer control.close()

	payload := []byte("hello from the server")

	control.serve(func(conn net.Conn, r *bufio.Reader) {
		io.WriteString(conn, "220 welcome\r\n")
		portLine := readLine(t, r) // PORT h1,h2,h3,h4,p1,p2
		arg := portLine[len("PORT "):]
		host, port, err := dataconn.DecodePORT(arg)
		if err != nil {
			t.Fatalf("DecodePORT(%q): %v", arg, err)
		}
		io.WriteString(conn, "200 PORT command successful\r\n")

		readLine(t, r) // RETR
		io.WriteString(conn, "150 opening data connection\r\n")

		dataConn, err := net.Dial("tcp", net.JoinHostPort(host, itoa(port)))
		if err != nil {
			t.Fatalf("dial back to client: %v", err)
		}
		dataConn.Write(payload)
		dataConn.Close()

		io.WriteString(conn, "226 transfer complete\r\n")
	})

	c, err := Dial(control.addr(), WithActiveMode())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.conn.Close()

	var buf bytes.Buffer
	if err := c.Retrieve("file.bin", &buf); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if buf.String() != string(payload) {
		t.Errorf("Retrieve() = %q, want %q", buf.String(), payload)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}
