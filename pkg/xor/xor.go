// Package xor implements the repeating-key XOR transform: every data byte is
// combined with a key byte, the key cursor wrapping back to zero once the key
// is exhausted. The transform is its own inverse, so the same call both
// obfuscates and restores. It is a deterministic byte transform, not an
// encryption scheme: repeating-key XOR gives no confidentiality guarantees.
package xor

import "errors"

var (
	// ErrEmptyKey is returned when the key has length zero. The wraparound
	// index is undefined for an empty key, so the case is rejected up front
	// instead of reading past the key.
	ErrEmptyKey = errors.New("xor: empty key")

	// ErrLengthMismatch is returned by Into when dst and data differ in length.
	ErrLengthMismatch = errors.New("xor: dst and data lengths differ")
)

// Apply returns a freshly allocated buffer of exactly len(data) bytes where
// out[i] = data[i] ^ key[i mod len(key)]. Neither input is modified and the
// result shares no storage with them. An empty data buffer yields an empty
// result for any non-empty key.
func Apply(data, key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	out := make([]byte, len(data))
	ki := 0
	for i, b := range data {
		out[i] = b ^ key[ki]
		ki++
		if ki == len(key) {
			ki = 0
		}
	}
	return out, nil
}

// Into writes the transform of data into dst, which must be exactly
// len(data) bytes. dst may alias data, so a buffer can be transformed in
// place without allocating.
func Into(dst, data, key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(dst) != len(data) {
		return ErrLengthMismatch
	}
	ki := 0
	for i, b := range data {
		dst[i] = b ^ key[ki]
		ki++
		if ki == len(key) {
			ki = 0
		}
	}
	return nil
}
