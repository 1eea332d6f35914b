// Package accounts implements the server's in-memory credential table:
// a fixed-size, separate-chaining hash table keyed by username, loaded
// once at startup from the accounts file (spec.md §3, §4.6).
package accounts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// numBuckets is the fixed bucket count for the account hash table.
const numBuckets = 512

// Account is a username/password pair. Passwords are compared byte for
// byte in cleartext — this is a learning system, not a hardened one
// (spec.md §9).
type Account struct {
	Username string
	Password string
}

// Store is a hash table of accounts keyed by username, using djb2 modulo
// numBuckets with separate chaining. It is built once at startup and never
// mutated afterwards, so lookups need no synchronization (spec.md §5).
type Store struct {
	buckets [numBuckets][]Account
}

// djb2 hashes s the way the C original does: h = 5381; h = h*33 + b for
// each byte b.
func djb2(s string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

// NewStore returns an empty account store.
func NewStore() *Store {
	return &Store{}
}

// Add inserts an account, appending to the head of its bucket's chain.
// If the username already exists, the new entry is inserted ahead of it;
// Lookup always returns the most recently added entry for a given name.
func (s *Store) Add(a Account) {
	idx := djb2(a.Username) % numBuckets
	s.buckets[idx] = append([]Account{a}, s.buckets[idx]...)
}

// Lookup returns the account for username, if present.
func (s *Store) Lookup(username string) (Account, bool) {
	idx := djb2(username) % numBuckets
	for _, a := range s.buckets[idx] {
		if a.Username == username {
			return a, true
		}
	}
	return Account{}, false
}

// Authenticate reports whether username/password is a valid credential
// pair, comparing the password byte for byte.
func (s *Store) Authenticate(username, password string) bool {
	a, ok := s.Lookup(username)
	return ok && a.Password == password
}

// Len returns the total number of accounts loaded.
func (s *Store) Len() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	return n
}

// LoadFile reads an accounts file: a first line holding a decimal record
// count N, followed by 2N CRLF-terminated lines alternating username and
// password.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("accounts: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads the accounts-file format from r. See LoadFile.
func Load(r io.Reader) (*Store, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("accounts: reading record count: %w", err)
		}
		return nil, fmt.Errorf("accounts: empty accounts file")
	}
	countLine := strings.TrimRight(sc.Text(), "\r")
	n, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || n < 0 {
		return nil, fmt.Errorf("accounts: invalid record count: %q", countLine)
	}

	store := NewStore()
	for i := 0; i < n; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("accounts: truncated file: expected %d records, got %d", n, i)
		}
		username := strings.TrimRight(sc.Text(), "\r")

		if !sc.Scan() {
			return nil, fmt.Errorf("accounts: truncated file: missing password for %q", username)
		}
		password := strings.TrimRight(sc.Text(), "\r")

		store.Add(Account{Username: username, Password: password})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("accounts: scan: %w", err)
	}
	return store, nil
}
