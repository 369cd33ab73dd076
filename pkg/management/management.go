package management

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/teclabat/performance-go/pkg/log"
)

const (
	defaultSocketDir = "/run/performance-go"

	// Line protocol markers. A response is zero or more lines followed by a
	// lone endMarker line. The auth phase answers with authOKString or a
	// framed error before the server disconnects.
	endMarker     = "."
	authOKString  = "OK: authenticated"
	authErrString = "Error: authentication failed"
	pongString    = "OK: pong"
)

func GetDefaultSocketPath(app string) string {
	return fmt.Sprintf("%s/%s", defaultSocketDir, app)
}

// CommandHandler defines the function signature for handling commands.
// It receives the command arguments and should return a response string and an error.
type CommandHandler func(args []string) (string, error)

// CommandInfo holds the handler function and its description.
type CommandInfo struct {
	Handler     CommandHandler
	Description string
}

// ManagementServer manages the Unix socket listener for daemon control.
type ManagementServer struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]CommandInfo
	mu         sync.RWMutex // Protects handlers map
	quit       chan struct{}
	wg         sync.WaitGroup
	startTime  time.Time
	password   string
}

func ensureSocketDir() {
	dir := defaultSocketDir
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		os.Mkdir(dir, 0755)
	}
}

// NewManagementServer creates a new management server for app. An empty
// password disables authentication.
func NewManagementServer(app string, password string) *ManagementServer {
	s := &ManagementServer{
		socketPath: GetDefaultSocketPath(app),
		handlers:   make(map[string]CommandInfo),
		quit:       make(chan struct{}),
		startTime:  time.Now(),
		password:   password,
	}
	ensureSocketDir()
	s.RegisterHandler("status", "Show daemon status and uptime", s.handleStatusCommand)
	s.RegisterHandler("ping", "Check if the daemon's management interface is responsive", s.handlePingCommand)
	s.RegisterHandler("logs", "Get last daemon logs. Usage: logs [pretty] [start]", s.handleLogsCommand)
	s.RegisterHandler("help", "Show help for commands. Usage: help [command]", s.handleHelpCommand)
	s.RegisterHandler("list", "Alias for 'help'", s.handleHelpCommand)
	return s
}

// RegisterHandler adds a command handler along with its description.
func (s *ManagementServer) RegisterHandler(command, description string, handler CommandHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lowerCommand := strings.ToLower(command)
	if _, exists := s.handlers[lowerCommand]; exists {
		log.Printf("mgmt: Warning: Overwriting handler for command: %s", lowerCommand)
	}
	s.handlers[lowerCommand] = CommandInfo{
		Handler:     handler,
		Description: description,
	}
	log.Printf("mgmt: Registered handler for command '%s': %s", lowerCommand, description)
}

// Dispatch parses a single command line, runs the matching handler and
// formats the reply. The connection loop and tests share this path.
func (s *ManagementServer) Dispatch(cmdLine string) string {
	parts := strings.Fields(cmdLine)
	if len(parts) == 0 {
		return "Error: Empty command. Try 'help'."
	}
	command := strings.ToLower(parts[0])
	args := parts[1:]

	s.mu.RLock()
	cmdInfo, ok := s.handlers[command]
	s.mu.RUnlock()

	if !ok {
		log.Printf("mgmt: received unknown command: %s", command)
		return fmt.Sprintf("Error: Unknown command '%s'. Try 'help'.", command)
	}

	response, err := cmdInfo.Handler(args)
	if err != nil {
		log.Printf("mgmt: handler error for command '%s': %v", command, err)
		return fmt.Sprintf("Error: %v", err)
	}
	return response
}

// Start listening on the Unix socket.
func (s *ManagementServer) Start() error {
	// Ensure the quit channel is fresh
	s.quit = make(chan struct{})

	// Remove existing socket file if it exists
	if _, err := os.Stat(s.socketPath); err == nil {
		log.Printf("mgmt: Removing existing socket file: %s", s.socketPath)
		if err := os.Remove(s.socketPath); err != nil {
			// net.Listen will fail later if this mattered
			log.Printf("mgmt: Warning: Failed to remove existing socket file: %v", err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("mgmt: Warning: Error checking socket file %s: %v", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket %s: %w", s.socketPath, err)
	}
	s.listener = listener
	// Make socket user-RW only
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		log.Printf("mgmt: Warning: could not set socket permissions: %v", err)
	}

	log.Printf("mgmt: management server listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully shuts down the management server.
func (s *ManagementServer) Stop() {
	log.Printf("mgmt: Stopping management server...")
	close(s.quit)

	if s.listener != nil {
		// Closing the listener breaks the Accept() loop
		s.listener.Close()
	}

	s.wg.Wait()

	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			log.Printf("mgmt: Error removing socket file %s: %v", s.socketPath, err)
		} else {
			log.Printf("mgmt: Removed socket file: %s", s.socketPath)
		}
	}

	log.Printf("mgmt: server stopped.")
}

// acceptLoop waits for incoming connections.
func (s *ManagementServer) acceptLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			log.Printf("mgmt: Accept loop received quit signal.")
			return
		default:
			// Deadline on accept so the quit channel is checked periodically
			if unixListener, ok := s.listener.(*net.UnixListener); ok {
				_ = unixListener.SetDeadline(time.Now().Add(1 * time.Second))
			}

			conn, err := s.listener.Accept()
			if err != nil {
				if opErr, ok := err.(*net.OpError); ok && opErr.Timeout() {
					continue
				}
				select {
				case <-s.quit:
					// We are stopping, this error is expected
					return
				default:
					log.Printf("mgmt: Error accepting connection: %v", err)
					// Avoid busy-looping on persistent errors
					time.Sleep(100 * time.Millisecond)
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}
}

// writeResponse sends a framed reply: the response lines, then a lone
// endMarker line.
func writeResponse(writer *bufio.Writer, response string) error {
	if _, err := writer.WriteString(response + "\n" + endMarker + "\n"); err != nil {
		return err
	}
	return writer.Flush()
}

// handleConnection processes commands from a single client connection.
func (s *ManagementServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	session := uuid.NewString()
	if creds := peerCreds(conn); creds != "" {
		log.Printf("mgmt: client connected: session=%s %s", session, creds)
	} else {
		log.Printf("mgmt: client connected: session=%s", session)
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// --- Authentication Check ---
	if s.password != "" {
		// Short timeout for auth
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		// Expect password as the first line
		clientPass, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				log.Printf("mgmt: authentication timeout for session=%s", session)
			} else {
				log.Printf("mgmt: error reading password for session=%s: %v", session, err)
			}
			writeResponse(writer, authErrString)
			time.Sleep(2000 * time.Millisecond)
			return
		}

		conn.SetReadDeadline(time.Time{})

		clientPass = strings.TrimSpace(clientPass)
		if clientPass != s.password {
			log.Printf("mgmt: authentication failed for session=%s", session)
			writeResponse(writer, authErrString)
			// Slow down brute-force attempts
			time.Sleep(2000 * time.Millisecond)
			return
		}
		log.Printf("mgmt: client authenticated successfully: session=%s", session)
		fmt.Fprintln(writer, authOKString)
		if err := writer.Flush(); err != nil {
			return
		}
	}

	for {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		cmdLine, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				log.Printf("mgmt: client read timeout: session=%s", session)
				writeResponse(writer, "Error: Read timeout")
				return
			}
			if err.Error() != "EOF" {
				log.Printf("mgmt: error reading command for session=%s: %v", session, err)
			} else {
				log.Printf("mgmt: client disconnected: session=%s", session)
			}
			return
		}

		conn.SetReadDeadline(time.Time{})

		cmdLine = strings.TrimSpace(cmdLine)
		if cmdLine == "" {
			continue
		}
		if cmdLine == "quit" {
			log.Printf("mgmt: session=%s requested quit.", session)
			writeResponse(writer, "OK: Bye!")
			return
		}

		if err := writeResponse(writer, s.Dispatch(cmdLine)); err != nil {
			log.Printf("mgmt: error writing response for session=%s: %v", session, err)
			return
		}
	}
}

// --- Default Command Handlers ---

func (s *ManagementServer) handleStatusCommand(args []string) (string, error) {
	uptime := time.Since(s.startTime).Round(time.Second)
	return fmt.Sprintf("OK: Daemon running. Uptime: %s", uptime), nil
}

func (s *ManagementServer) handlePingCommand(args []string) (string, error) {
	return pongString, nil
}

func (s *ManagementServer) handleLogsCommand(args []string) (string, error) {
	pretty := false
	sinceStart := false
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "pretty":
			pretty = true
		case "start":
			sinceStart = true
		}
	}

	var entries []log.LogEntry
	var err error
	if sinceStart {
		entries, err = log.GetLogsSinceStart()
	} else {
		entries, err = log.GetLastNLogs(20)
	}
	if err != nil {
		return "", err
	}

	var response strings.Builder
	for _, entry := range entries {
		response.WriteString(entry.LogData)
	}
	res := strings.TrimRight(response.String(), "\n")

	if pretty {
		var b strings.Builder
		w := zerolog.ConsoleWriter{Out: &b, TimeFormat: time.RFC3339, NoColor: true}
		scanner := bufio.NewScanner(strings.NewReader(res))
		for scanner.Scan() {
			w.Write(scanner.Bytes())
		}
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return strings.TrimRight(b.String(), "\n"), nil
	}

	return res, nil
}

// handleHelpCommand lists commands with descriptions or shows help for a specific command.
func (s *ManagementServer) handleHelpCommand(args []string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var response strings.Builder

	if len(args) > 0 {
		cmdName := strings.ToLower(args[0])
		cmdInfo, ok := s.handlers[cmdName]
		if !ok {
			response.WriteString(fmt.Sprintf("Error: Unknown command '%s'. Try 'help' for a list.", cmdName))
		} else {
			response.WriteString(fmt.Sprintf("OK: Help for '%s':\n", cmdName))
			response.WriteString(fmt.Sprintf("  Usage: %s [args...]\n", cmdName))
			response.WriteString(fmt.Sprintf("  Description: %s", cmdInfo.Description))
		}
	} else {
		response.WriteString("OK: Available commands:\n")

		cmds := make([]string, 0, len(s.handlers))
		for cmd := range s.handlers {
			cmds = append(cmds, cmd)
		}
		sort.Strings(cmds)

		maxLen := 0
		for _, cmd := range cmds {
			if len(cmd) > maxLen {
				maxLen = len(cmd)
			}
		}

		for _, cmd := range cmds {
			cmdInfo := s.handlers[cmd]
			padding := strings.Repeat(" ", maxLen-len(cmd)+2)
			response.WriteString(fmt.Sprintf("  %s%s%s\n", cmd, padding, cmdInfo.Description))
		}
		response.WriteString("\nUse 'help <command>' for more details on a specific command.")
	}

	return strings.TrimRight(response.String(), "\n"), nil
}
