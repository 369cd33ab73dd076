//go:build linux

package management

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// peerCreds returns the SO_PEERCRED identity of a unix socket peer, or ""
// when it cannot be determined.
func peerCreds(conn net.Conn) string {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return ""
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return ""
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return ""
	}
	if credErr != nil || cred == nil {
		return ""
	}
	return fmt.Sprintf("pid=%d uid=%d", cred.Pid, cred.Uid)
}
