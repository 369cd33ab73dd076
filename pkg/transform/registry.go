package transform

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Registry names, sorted. "xor" is the transform this module exists for; the
// rest are the supporting cast for pipelines.
var registryNames = []string{"aesgcm", "chacha20", "gzip", "null", "xor", "zstd"}

// New constructs a transform by registry name. key carries the key material
// the transform needs: the salt for "xor", the passphrase bytes for "aesgcm"
// and "chacha20". The compression and null transforms ignore it.
func New(name string, key []byte) (Transform, error) {
	switch strings.ToLower(name) {
	case "null":
		return NewNoOpTransform(), nil
	case "xor":
		return NewXorTransform(key)
	case "aesgcm":
		return NewAESGCMTransform(string(key))
	case "chacha20":
		return NewChaCha20Transform(string(key))
	case "gzip":
		return NewGzipTransform(), nil
	case "zstd":
		return NewZstdTransform(zstd.SpeedDefault)
	default:
		return nil, fmt.Errorf("transform: unknown transform %q", name)
	}
}

// Names returns the registry names in stable order.
func Names() []string {
	out := make([]string, len(registryNames))
	copy(out, registryNames)
	return out
}

// NeedsKey reports whether the named transform takes key material.
func NeedsKey(name string) bool {
	switch strings.ToLower(name) {
	case "xor", "aesgcm", "chacha20":
		return true
	}
	return false
}
