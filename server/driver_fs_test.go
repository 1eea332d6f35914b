package server

import (
	"io"
	"testing"

	"github.com/spf13/afero"

	"github.com/relayftp/goftpd/accounts"
)

func testAccounts(t *testing.T) *accounts.Store {
	t.Helper()
	s := accounts.NewStore()
	s.Add(accounts.Account{Username: "alice", Password: "secret"})
	return s
}

func testFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("fixture setup: %v", err)
		}
	}
	must(fs.MkdirAll("/srv/pub", 0755))
	must(fs.MkdirAll("/srv/pub/sub", 0755))
	must(afero.WriteFile(fs, "/srv/pub/readme.txt", []byte("hello"), 0644))
	return fs
}

func newTestDriver(t *testing.T) *FSDriver {
	t.Helper()
	d, err := NewFSDriver(testFS(t), "/srv/pub", testAccounts(t), nil)
	if err != nil {
		t.Fatalf("NewFSDriver() error = %v", err)
	}
	return d
}

func TestFSDriver_AuthenticateRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	if _, err := d.Authenticate("alice", "wrong"); err == nil {
		t.Fatal("expected error for bad password")
	}
}

func TestFSDriver_AuthenticateAcceptsGoodCredentials(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, err := d.Authenticate("alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	defer ctx.Close()

	wd, err := ctx.GetWd()
	if err != nil || wd != "/" {
		t.Fatalf("GetWd() = (%q, %v), want (/, nil)", wd, err)
	}
}

func TestFSContext_ChangeDirAndList(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, err := d.Authenticate("alice", "secret")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	defer ctx.Close()

	if err := ctx.ChangeDir("sub"); err != nil {
		t.Fatalf("ChangeDir(sub) error = %v", err)
	}
	wd, _ := ctx.GetWd()
	if wd != "/sub" {
		t.Fatalf("GetWd() = %q, want /sub", wd)
	}

	if err := ctx.ChangeDir(".."); err != nil {
		t.Fatalf("ChangeDir(..) error = %v", err)
	}
	names, err := ctx.ListDir("")
	if err != nil {
		t.Fatalf("ListDir() error = %v", err)
	}
	want := []string{"readme.txt", "sub"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("ListDir() = %v, want %v", names, want)
	}
}

func TestFSContext_ChangeDirMissing(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, _ := d.Authenticate("alice", "secret")
	defer ctx.Close()

	if err := ctx.ChangeDir("nope"); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFSContext_ListDirOfFileReturnsItsOwnName(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, _ := d.Authenticate("alice", "secret")
	defer ctx.Close()

	names, err := ctx.ListDir("readme.txt")
	if err != nil {
		t.Fatalf("ListDir(readme.txt) error = %v", err)
	}
	if len(names) != 1 || names[0] != "readme.txt" {
		t.Errorf("ListDir(readme.txt) = %v, want [readme.txt]", names)
	}
}

func TestFSContext_OpenFile(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, _ := d.Authenticate("alice", "secret")
	defer ctx.Close()

	f, err := ctx.OpenFile("readme.txt")
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("OpenFile() content = %q, want %q", data, "hello")
	}
}

func TestFSContext_PathEscapeCanonicalizesToRoot(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	ctx, _ := d.Authenticate("alice", "secret")
	defer ctx.Close()

	if err := ctx.ChangeDir("../../../etc"); err == nil {
		t.Fatal("expected error: /etc does not exist below the virtual root")
	}
}
