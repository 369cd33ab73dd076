package management

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	connectTimeout = 1 * time.Second
	// Slightly longer overall timeout to accommodate the auth roundtrip + command
	readWriteTimeout = 8 * time.Second
	authTimeout      = 3 * time.Second
)

type ManagementClient struct {
	socketPath string
	password   string
}

func NewManagementClient(app string, password string) *ManagementClient {
	c := &ManagementClient{
		socketPath: GetDefaultSocketPath(app),
		password:   password,
	}
	return c
}

func (c *ManagementClient) IsManagementServerStarted() bool {
	res, err := c.SendCommand("ping")
	if err != nil {
		return false
	}
	return res == pongString
}

// recvMessage reads a framed reply: lines up to (not including) the lone
// endMarker line.
func recvMessage(reader *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.TrimRight(line, "\r\n") == endMarker {
			return strings.TrimRight(b.String(), "\n"), nil
		}
		b.WriteString(line)
	}
}

func (c *ManagementClient) SendCommand(command string) (string, error) {
	if command == "" {
		command = "help"
	}

	conn, err := net.DialTimeout("unix", c.socketPath, connectTimeout)
	if err != nil {
		return "", fmt.Errorf("error connecting to daemon socket %s: %v\nIs the daemon running?", c.socketPath, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	if c.password != "" {
		if err := conn.SetWriteDeadline(time.Now().Add(authTimeout)); err != nil {
			return "", fmt.Errorf("error setting write deadline for auth: %v", err)
		}
		if _, err := fmt.Fprintf(conn, "%s\n", c.password); err != nil {
			return "", fmt.Errorf("error sending password: %v", err)
		}
		if err := conn.SetReadDeadline(time.Now().Add(authTimeout)); err != nil {
			return "", fmt.Errorf("error setting read deadline for auth: %v", err)
		}
		response, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("error reading auth response: %v", err)
		}
		if strings.TrimSpace(response) != authOKString {
			return "", fmt.Errorf("auth failure: daemon rejected the password")
		}
	}

	deadline := time.Now().Add(readWriteTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("error setting read/write deadline: %v", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", command); err != nil {
		return "", fmt.Errorf("error sending command (authentication might have failed): %v", err)
	}

	response, err := recvMessage(reader)
	if err != nil {
		return "", fmt.Errorf("error reading response: %v", err)
	}

	return strings.TrimSpace(response), nil
}
