package server

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	ftp "github.com/relayftp/goftpd"
	"github.com/relayftp/goftpd/logging"
	"github.com/spf13/afero"
)

// newTestServer starts a real Server on a loopback listener, rooted at a
// temp directory, and returns it alongside the listener address. Callers
// must Shutdown the server themselves.
func newTestServer(t *testing.T, opts ...Option) (addr string, rootDir string, shutdown func()) {
	t.Helper()
	rootDir = t.TempDir()

	accts := testAccounts(t)
	driver, err := NewFSDriver(afero.NewOsFs(), rootDir, accts, nil)
	if err != nil {
		t.Fatalf("NewFSDriver() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	logger := logging.New(&bytes.Buffer{})
	srv, err := NewServer(ln.Addr().String(), driver, logger, opts...)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil && err != ErrServerClosed {
			t.Logf("Serve() error = %v", err)
		}
	}()

	return ln.Addr().String(), rootDir, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func TestServerIntegration_ListAndRetrieve(t *testing.T) {
	t.Parallel()
	addr, rootDir, shutdown := newTestServer(t)
	defer shutdown()

	const content = "Hello, FTP World!"
	if err := os.WriteFile(filepath.Join(rootDir, "test.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := ftp.Dial(addr, ftp.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Quit()

	if err := c.Login("alice", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	pwd, err := c.CurrentDir()
	if err != nil {
		t.Fatalf("CurrentDir() error = %v", err)
	}
	if pwd != "/" {
		t.Errorf("CurrentDir() = %q, want /", pwd)
	}

	names, err := c.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	found := false
	for _, name := range names {
		if name == "test.txt" {
			found = true
		}
	}
	if !found {
		t.Errorf("List() = %v, want to contain test.txt", names)
	}

	var buf bytes.Buffer
	if err := c.Retrieve("test.txt", &buf); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("Retrieve() = %q, want %q", buf.String(), content)
	}
}

func TestServerIntegration_ActiveMode(t *testing.T) {
	t.Parallel()
	addr, rootDir, shutdown := newTestServer(t)
	defer shutdown()

	const content = "active mode content"
	if err := os.WriteFile(filepath.Join(rootDir, "active.txt"), []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := ftp.Dial(addr, ftp.WithActiveMode())
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Quit()

	if err := c.Login("alice", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	var buf bytes.Buffer
	if err := c.Retrieve("active.txt", &buf); err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if buf.String() != content {
		t.Errorf("Retrieve() = %q, want %q", buf.String(), content)
	}
}

func TestServerIntegration_BadLoginRejected(t *testing.T) {
	t.Parallel()
	addr, _, shutdown := newTestServer(t)
	defer shutdown()

	c, err := ftp.Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Quit()

	if err := c.Login("alice", "wrong"); err == nil {
		t.Fatal("expected error for bad password")
	}
}

func TestServerIntegration_CDUPAtRootRejected(t *testing.T) {
	t.Parallel()
	addr, _, shutdown := newTestServer(t)
	defer shutdown()

	c, err := ftp.Dial(addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer c.Quit()

	if err := c.Login("alice", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := c.ChangeDirUp(); err == nil {
		t.Fatal("expected error for CDUP at root")
	}
}

func TestServerIntegration_MaxConnections(t *testing.T) {
	t.Parallel()
	addr, _, shutdown := newTestServer(t, WithMaxConnections(1, 0))
	defer shutdown()

	c1, err := ftp.Dial(addr)
	if err != nil {
		t.Fatalf("Dial() #1 error = %v", err)
	}
	defer c1.Quit()

	if _, err := ftp.Dial(addr); err == nil {
		t.Fatal("expected second Dial to be rejected by max connections")
	}
}
