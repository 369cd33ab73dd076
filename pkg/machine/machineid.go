// Package machine derives a stable per-host identifier, persisted in the
// app state directory.
package machine

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/teclabat/performance-go/pkg/appdir"
)

const uidFile = "machine-id"

var (
	mu             sync.Mutex
	machineIDCache []byte
)

// GetMachineID returns this host's 16-byte random identifier, generating and
// persisting it on first use.
func GetMachineID() ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()

	if machineIDCache != nil {
		return machineIDCache, nil
	}
	id, err := idFromFile(path.Join(appdir.AppDir(), uidFile))
	if err != nil {
		return nil, err
	}
	machineIDCache = id
	return id, nil
}

// idFromFile loads the identifier stored at fp, creating it when missing.
func idFromFile(fp string) ([]byte, error) {
	content, err := os.ReadFile(fp)
	if err == nil {
		id, decErr := hex.DecodeString(strings.TrimSpace(string(content)))
		if decErr != nil || len(id) != 16 {
			return nil, fmt.Errorf("machine: cannot decode machine-id at %s", fp)
		}
		return id, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("machine: reading machine-id: %w", err)
	}

	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		return nil, fmt.Errorf("machine: generating machine ID: %w", err)
	}
	if err := os.WriteFile(fp, []byte(hex.EncodeToString(id)), 0600); err != nil {
		return nil, fmt.Errorf("machine: writing machine-id file: %w", err)
	}
	return id, nil
}

// ShortID returns the first 8 hex characters of the machine ID. Used to make
// default daemon identifiers unique across hosts that share a hostname.
func ShortID() (string, error) {
	id, err := GetMachineID()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id)[:8], nil
}
