package server

import (
	"errors"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"

	"github.com/relayftp/goftpd/accounts"
)

// FSDriver implements Driver over an afero.Fs, jailing every session
// below a single root path that exists within that filesystem. Unlike
// the teacher's os.Root-based jail, afero.Fs gives the same
// path-confinement guarantee while also letting tests substitute
// afero.NewMemMapFs() for a real directory tree.
type FSDriver struct {
	fs       afero.Fs
	root     string
	accounts *accounts.Store
	settings *Settings
}

// NewFSDriver creates a filesystem driver rooted at root within fs,
// authenticating sessions against accts.
func NewFSDriver(fs afero.Fs, root string, accts *accounts.Store, settings *Settings) (*FSDriver, error) {
	info, err := fs.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.New("server: root path is not a directory")
	}
	if settings == nil {
		settings = &Settings{PortEnabled: true, PasvEnabled: true}
	}
	return &FSDriver{fs: fs, root: root, accounts: accts, settings: settings}, nil
}

// Authenticate checks user/pass against the account store and, on
// success, returns a ClientContext rooted at the driver's root path.
func (d *FSDriver) Authenticate(user, pass string) (ClientContext, error) {
	if !d.accounts.Authenticate(user, pass) {
		return nil, os.ErrPermission
	}
	return &fsContext{fs: d.fs, root: d.root, cwd: "/", settings: d.settings}, nil
}

// AccountExists reports whether user names a known account.
func (d *FSDriver) AccountExists(user string) bool {
	_, ok := d.accounts.Lookup(user)
	return ok
}

// fsContext implements ClientContext over an afero.Fs, confining every
// operation below root by resolving the virtual path and then joining
// it onto root — the virtual path is always canonicalised first, so a
// "../../etc" never escapes (spec.md §9's "canonicalisation only" note).
type fsContext struct {
	fs       afero.Fs
	root     string
	cwd      string // virtual, always absolute and canonical
	settings *Settings
}

// canonicalize resolves candidate (absolute or relative to cwd) into a
// clean, absolute virtual path, without touching the filesystem.
func canonicalize(cwd, candidate string) string {
	if candidate == "" {
		return cwd
	}
	if !path.IsAbs(candidate) {
		candidate = path.Join(cwd, candidate)
	}
	return path.Clean("/" + candidate)
}

// realPath maps a canonical virtual path onto the backing filesystem.
func (c *fsContext) realPath(virtual string) string {
	if virtual == "/" {
		return c.root
	}
	return path.Join(c.root, virtual)
}

func (c *fsContext) ChangeDir(dir string) error {
	target := canonicalize(c.cwd, dir)
	info, err := c.fs.Stat(c.realPath(target))
	if err != nil {
		return os.ErrNotExist
	}
	if !info.IsDir() {
		return errors.New("server: not a directory")
	}
	c.cwd = target
	return nil
}

func (c *fsContext) GetWd() (string, error) {
	return c.cwd, nil
}

func (c *fsContext) ListDir(dir string) ([]string, error) {
	target := canonicalize(c.cwd, dir)
	real := c.realPath(target)

	info, err := c.fs.Stat(real)
	if err != nil {
		return nil, os.ErrNotExist
	}
	if !info.IsDir() {
		return []string{path.Base(target)}, nil
	}

	d, err := c.fs.Open(real)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.Readdirnames(-1)
}

func (c *fsContext) OpenFile(name string) (io.ReadCloser, error) {
	target := canonicalize(c.cwd, name)
	f, err := c.fs.Open(c.realPath(target))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, os.ErrNotExist
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, errors.New("server: is a directory")
	}
	return f, nil
}

func (c *fsContext) Close() error { return nil }

func (c *fsContext) GetSettings() *Settings { return c.settings }
