//go:build !linux

package management

import "net"

// peerCreds is a no-op on platforms without SO_PEERCRED.
func peerCreds(conn net.Conn) string {
	return ""
}
