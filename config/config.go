// Package config reads the server's configuration file: newline-delimited
// key=value pairs, comments beginning with '#' (spec.md §6).
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// MaxLogFiles is the ceiling on numlogfiles and the modulus the
// nextlognum counter rotates under.
const MaxLogFiles = 1000

// Config is the parsed and validated server configuration.
type Config struct {
	LogDirectory string
	NumLogFiles  int
	NextLogNum   int
	UsernameFile string
	PortMode     bool
	PasvMode     bool

	path string // source file, rewritten in place by AdvanceLogNum
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := parse(f)
	if err != nil {
		return nil, err
	}
	raw.path = path

	cfg, err := raw.validate()
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// rawConfig mirrors Config but with the fields still in their as-seen
// string/unset form, so validate can distinguish "missing" from "zero".
type rawConfig struct {
	values map[string]string
	path   string
}

func parse(r io.Reader) (*rawConfig, error) {
	values := make(map[string]string)
	sc := bufio.NewScanner(r)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil, fmt.Errorf("config: line %d: missing '=': %q", lineNum, line)
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		values[strings.ToLower(key)] = val
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("config: scan: %w", err)
	}
	return &rawConfig{values: values}, nil
}

func (r *rawConfig) validate() (*Config, error) {
	cfg := &Config{}

	dir, ok := r.values["logdirectory"]
	if !ok || dir == "" {
		return nil, fmt.Errorf("config: missing logdirectory")
	}
	cfg.LogDirectory = dir

	numStr, ok := r.values["numlogfiles"]
	if !ok {
		return nil, fmt.Errorf("config: missing numlogfiles")
	}
	num, err := strconv.Atoi(numStr)
	if err != nil || num < 1 || num > MaxLogFiles {
		return nil, fmt.Errorf("config: numlogfiles must be in [1, %d]: %q", MaxLogFiles, numStr)
	}
	cfg.NumLogFiles = num

	nextStr, ok := r.values["nextlognum"]
	if !ok {
		return nil, fmt.Errorf("config: missing nextlognum")
	}
	next, err := strconv.Atoi(nextStr)
	if err != nil || next < 0 {
		return nil, fmt.Errorf("config: invalid nextlognum: %q", nextStr)
	}
	cfg.NextLogNum = next % MaxLogFiles

	userFile, ok := r.values["usernamefile"]
	if !ok || userFile == "" {
		return nil, fmt.Errorf("config: missing usernamefile")
	}
	cfg.UsernameFile = userFile

	portMode, hasPort := r.values["port_mode"]
	pasvMode, hasPasv := r.values["pasv_mode"]
	if !hasPort || !hasPasv {
		return nil, fmt.Errorf("config: both port_mode and pasv_mode must be present")
	}
	cfg.PortMode = strings.EqualFold(portMode, "YES")
	cfg.PasvMode = strings.EqualFold(pasvMode, "YES")
	if !cfg.PortMode && !cfg.PasvMode {
		return nil, fmt.Errorf("config: at least one of port_mode/pasv_mode must be YES")
	}

	return cfg, nil
}

// AdvanceLogNum computes the next rotating log-file number (mod
// MaxLogFiles) and rewrites it into the configuration file in place. It
// must be called only during server initialisation, before any session
// goroutine exists (spec.md §5); there is no locking here because there
// is no concurrent writer at that point in the server's lifecycle.
func (c *Config) AdvanceLogNum() (int, error) {
	current := c.NextLogNum
	c.NextLogNum = (c.NextLogNum + 1) % MaxLogFiles

	if c.path == "" {
		return current, nil
	}
	if err := rewriteKey(c.path, "nextlognum", fmt.Sprintf("%03d", c.NextLogNum)); err != nil {
		return current, fmt.Errorf("config: rewriting nextlognum: %w", err)
	}
	return current, nil
}

// rewriteKey rewrites a single key=value line in place, preserving every
// other line (including comments and ordering) verbatim.
func rewriteKey(path, key, newValue string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.IndexByte(trimmed, '=')
		if idx < 0 {
			continue
		}
		k := strings.TrimSpace(trimmed[:idx])
		if strings.EqualFold(k, key) {
			lines[i] = key + "=" + newValue
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, key+"="+newValue)
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644)
}
