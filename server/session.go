package server

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	goftpd "github.com/relayftp/goftpd"
	"github.com/relayftp/goftpd/dataconn"
)

// transferBufferPool reuses copy buffers across RETR transfers, the way
// the teacher's server.go pools its control reader/writer pairs.
var transferBufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, 32*1024)
		return &buf
	},
}

func copyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	buf := transferBufferPool.Get().(*[]byte)
	defer transferBufferPool.Put(buf)
	return io.CopyBuffer(dst, src, *buf)
}

// maxCommandLength is the maximum length of a command line, per spec.md's
// server session state machine (a line longer than this is a protocol
// violation, not a slow client).
const maxCommandLength = 4096

// session carries the per-connection state machine: INIT -> USER_RECEIVED
// -> AUTHENTICATED (spec.md §4.5). The invariant loggedIn => fs != nil
// always holds: fs is set only by handlePASS, on success, before
// loggedIn is set.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	mu     sync.Mutex // guards writer while a reply is written and flushed

	id       string
	remoteIP string

	loggedIn bool
	user     string
	fs       ClientContext

	useExtended bool // client negotiated EPRT/EPSV over PORT/PASV
	pasvList    net.Listener
	activeIP    string
	activePort  int
}

func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

func newSession(server *Server, conn net.Conn) *session {
	remoteIP := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteIP); err == nil {
		remoteIP = host
	}
	return &session{
		server:   server,
		conn:     conn,
		reader:   bufio.NewReader(conn),
		writer:   bufio.NewWriter(conn),
		id:       generateSessionID(),
		remoteIP: remoteIP,
	}
}

// serve drives one session to completion: greeting, then a synchronous
// read-dispatch-reply loop until QUIT or a fatal read error. There is no
// background transfer goroutine (unlike the teacher's ABOR-capable
// design): RETR is the only transfer command in scope, and without ABOR
// a command cannot usefully run concurrently with the session that issued
// it (spec.md §1 Non-goals omit ABOR entirely).
func (s *session) serve() {
	defer s.close()

	s.reply(220, s.server.welcomeMessage)
	s.server.logger.Session(s.remoteIP, "session started", "session_id", s.id)

	for {
		if s.server.readTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.readTimeout))
		}

		line, err := s.readCommand()
		if err != nil {
			if err.Error() == "command too long" {
				s.reply(500, "Command line too long.")
			} else {
				// Any read failure here — EOF or otherwise — means the
				// control connection is gone from the client's side.
				s.server.logger.Error(s.remoteIP, goftpd.NewKindError(goftpd.KindSocketEOF, err))
			}
			return
		}

		if s.server.writeTimeout > 0 {
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.server.writeTimeout))
		}

		if quit := s.handleCommand(line); quit {
			return
		}
	}
}

func (s *session) readCommand() (string, error) {
	var line []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		if len(line) >= maxCommandLength {
			return "", fmt.Errorf("command too long")
		}
		line = append(line, b)
	}
}

// handleCommand parses and dispatches one command line, returning true
// if the session should end (QUIT).
func (s *session) handleCommand(line string) bool {
	if line == "" {
		return false
	}

	parts := strings.SplitN(line, " ", 2)
	verb := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	logArg := arg
	if verb == "PASS" {
		logArg = "***"
	}
	s.server.logger.Command(s.remoteIP, verb, logArg)

	switch verb {
	case "USER":
		s.handleUSER(arg)
	case "PASS":
		s.handlePASS(arg)
	case "CWD":
		s.handleCWD(arg)
	case "CDUP":
		s.handleCDUP()
	case "PWD":
		s.handlePWD()
	case "PASV":
		s.handlePASV()
	case "EPSV":
		s.handleEPSV(arg)
	case "PORT":
		s.handlePORT(arg)
	case "EPRT":
		s.handleEPRT(arg)
	case "LIST":
		s.handleLIST(arg)
	case "RETR":
		s.handleRETR(arg)
	case "HELP":
		s.handleHELP(arg)
	case "QUIT":
		s.reply(221, "Service closing control connection.")
		return true
	default:
		s.reply(502, "Command not implemented.")
	}
	return false
}

// handleUSER starts (or restarts) login. A USER sent while already
// logged in doesn't log the session out — it just reports that login
// already happened (spec.md §4.5's "330" branch) — and an empty
// username is a syntax error, not a lookup miss.
func (s *session) handleUSER(user string) {
	if s.loggedIn {
		s.reply(330, "Already logged in.")
		return
	}
	if user == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if !s.server.driver.AccountExists(user) {
		s.reply(530, "Not logged in.")
		return
	}
	s.user = user
	s.reply(331, "User name okay, need password.")
}

// handlePASS completes login. PASS without a preceding USER is out of
// sequence (503); an empty password is a syntax error (501). The
// success code is 230, the RFC 959 code for "logged in" — spec.md §9
// flags the hypothetical source as inconsistent between 230 and 330
// here, and this server follows the RFC rather than the bug (see
// DESIGN.md).
func (s *session) handlePASS(pass string) {
	if s.user == "" {
		s.reply(503, "Login with USER first.")
		return
	}
	if pass == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	ctx, err := s.server.driver.Authenticate(s.user, pass)
	if err != nil {
		s.server.logger.Session(s.remoteIP, "authentication failed", "session_id", s.id, "user", s.user)
		s.reply(530, "Login incorrect.")
		return
	}
	s.fs = ctx
	s.loggedIn = true
	s.server.logger.Session(s.remoteIP, "authentication succeeded", "session_id", s.id, "user", s.user)
	s.reply(230, "User logged in, proceed.")
}

func (s *session) requireLogin() bool {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return false
	}
	return true
}

func (s *session) handleCWD(path string) {
	if !s.requireLogin() {
		return
	}
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if err := s.fs.ChangeDir(path); err != nil {
		s.reply(550, "Failed to change directory.")
		return
	}
	s.reply(250, "Directory successfully changed.")
}

// handleCDUP changes to the parent directory. CDUP issued while already
// at the virtual root has nothing to ascend to and returns 550 (spec.md
// §9's decision for this edge case), rather than silently succeeding the
// way ChangeDir("..") at root would (canonicalize clamps ".." at "/" back
// to "/").
func (s *session) handleCDUP() {
	if !s.requireLogin() {
		return
	}
	wd, err := s.fs.GetWd()
	if err == nil && wd == "/" {
		s.reply(550, "Already at the top-level directory.")
		return
	}
	if err := s.fs.ChangeDir(".."); err != nil {
		s.reply(550, "Failed to change directory.")
		return
	}
	s.reply(200, "Directory successfully changed.")
}

func (s *session) handlePWD() {
	if !s.requireLogin() {
		return
	}
	wd, err := s.fs.GetWd()
	if err != nil {
		s.reply(550, "Failed to determine current directory.")
		return
	}
	s.reply(257, fmt.Sprintf("%q is the current directory.", wd))
}

func (s *session) handleLIST(arg string) {
	if !s.requireLogin() {
		return
	}
	path := strings.TrimSpace(arg)

	conn, err := s.openDataConn()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	names, err := s.fs.ListDir(path)
	if err != nil {
		s.reply(550, "Failed to list directory.")
		return
	}

	s.reply(150, "Here comes the directory listing.")
	for _, name := range names {
		fmt.Fprintf(conn, "%s\n", name)
	}
	s.reply(226, "Directory send OK.")
}

func (s *session) handleRETR(path string) {
	if !s.requireLogin() {
		return
	}
	if path == "" {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	file, err := s.fs.OpenFile(path)
	if err != nil {
		s.reply(550, "File not found.")
		return
	}
	defer file.Close()

	conn, err := s.openDataConn()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	s.reply(150, "Opening data connection for RETR.")
	if _, err := copyBuffered(conn, file); err != nil {
		s.reply(451, "Requested action aborted: local error in processing.")
		return
	}
	s.reply(226, "Transfer complete.")
}

func (s *session) handleHELP(arg string) {
	if arg != "" {
		s.reply(214, strings.ToUpper(arg)+" command help not available.")
		return
	}
	s.mu.Lock()
	fmt.Fprintf(s.writer, "214-The following commands are recognized:\r\n")
	fmt.Fprintf(s.writer, " USER PASS CWD CDUP PWD PASV PORT EPSV EPRT LIST RETR HELP QUIT\r\n")
	fmt.Fprintf(s.writer, "214 Help OK.\r\n")
	s.writer.Flush()
	s.mu.Unlock()
}

// reply sends a single-line response to the client.
func (s *session) reply(code int, message string) {
	s.mu.Lock()
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	err := s.writer.Flush()
	s.mu.Unlock()
	if err != nil {
		s.server.logger.Error(s.remoteIP, goftpd.NewKindError(goftpd.KindSocketWrite, err))
		return
	}
	s.server.logger.Reply(s.remoteIP, code, message)
}

func (s *session) close() {
	if s.pasvList != nil {
		s.pasvList.Close()
	}
	var fsErr error
	if s.fs != nil {
		fsErr = s.fs.Close()
	}
	connErr := s.conn.Close()
	if err := goftpd.Teardown(fsErr, connErr); err != nil {
		s.server.logger.Error(s.remoteIP, err)
	}
	s.server.logger.Session(s.remoteIP, "session closed", "session_id", s.id, "user", s.user)
}

// openDataConn resolves whichever of PASV/PORT/EPSV/EPRT the client most
// recently negotiated into an open data connection. Exactly one of
// pasvList/activeIP is set at a time, since each handler clears the other
// (spec.md §4.3's strict ordering: a data-channel verb always precedes
// the transfer command that consumes it).
func (s *session) openDataConn() (net.Conn, error) {
	if s.pasvList != nil {
		ln := s.pasvList
		s.pasvList = nil
		if t, ok := ln.(*net.TCPListener); ok {
			_ = t.SetDeadline(time.Now().Add(30 * time.Second))
		}
		conn, err := ln.Accept()
		ln.Close()
		return conn, err
	}
	if s.activeIP != "" {
		addr := net.JoinHostPort(s.activeIP, strconv.Itoa(s.activePort))
		s.activeIP = ""
		return net.DialTimeout("tcp", addr, 10*time.Second)
	}
	return nil, fmt.Errorf("server: no data connection negotiated")
}

func (s *session) listenPassive() (net.Listener, error) {
	settings := s.fs.GetSettings()
	if settings != nil && settings.PasvMinPort > 0 && settings.PasvMaxPort >= settings.PasvMinPort {
		for port := settings.PasvMinPort; port <= settings.PasvMaxPort; port++ {
			ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
			if err == nil {
				return ln, nil
			}
		}
		return nil, fmt.Errorf("server: no available port in [%d, %d]", settings.PasvMinPort, settings.PasvMaxPort)
	}
	return net.Listen("tcp", ":0")
}

// passiveHost returns the address the client should dial back to for a
// passive-mode data connection: the driver's configured public host, if
// set, falling back to the control connection's local address.
func (s *session) passiveHost() string {
	if settings := s.fs.GetSettings(); settings != nil && settings.PublicHost != "" {
		return settings.PublicHost
	}
	host, _, _ := net.SplitHostPort(s.conn.LocalAddr().String())
	return host
}

func (s *session) handlePASV() {
	if !s.requireLogin() {
		return
	}
	if settings := s.fs.GetSettings(); settings != nil && !settings.PasvEnabled {
		s.reply(502, "PASV command not implemented.")
		return
	}
	if s.pasvList != nil {
		s.pasvList.Close()
	}
	s.activeIP = ""
	ln, err := s.listenPassive()
	if err != nil {
		s.reply(425, "Can't open passive connection.")
		return
	}
	s.pasvList = ln

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	s.reply(227, dataconn.FormatPASVReply(s.passiveHost(), port))
}

func (s *session) handleEPSV(arg string) {
	if !s.requireLogin() {
		return
	}
	// spec.md scopes EPSV to "recognised, rejected": the server advertises
	// no EPSV support and always returns 502, leaving PASV as the only
	// passive mode this server implements.
	_ = arg
	s.reply(502, "Command not implemented.")
}

func (s *session) handlePORT(arg string) {
	if !s.requireLogin() {
		return
	}
	if settings := s.fs.GetSettings(); settings != nil && !settings.PortEnabled {
		s.reply(502, "PORT command not implemented.")
		return
	}
	host, port, err := dataconn.DecodePORT(arg)
	if err != nil {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if s.pasvList != nil {
		s.pasvList.Close()
		s.pasvList = nil
	}
	s.activeIP = host
	s.activePort = port
	s.reply(200, "PORT command successful.")
}

func (s *session) handleEPRT(arg string) {
	if !s.requireLogin() {
		return
	}
	if settings := s.fs.GetSettings(); settings != nil && !settings.PortEnabled {
		s.reply(502, "EPRT command not implemented.")
		return
	}
	_, addr, port, err := dataconn.DecodeEPRT(arg)
	if err != nil {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}
	if s.pasvList != nil {
		s.pasvList.Close()
		s.pasvList = nil
	}
	s.activeIP = addr
	s.activePort = port
	s.reply(200, "EPRT command successful.")
}
