package transform

import (
	"fmt"

	"github.com/teclabat/performance-go/pkg/xor"
)

// xorTransform obfuscates payloads with a repeating-key XOR over the salt.
// The operation is involutive, so Apply and Reverse are the same computation.
type xorTransform struct {
	salt []byte
}

// NewXorTransform creates the repeating-key XOR transform. The salt must be
// non-empty; it is copied, so the caller's buffer stays free for reuse.
func NewXorTransform(salt []byte) (Transform, error) {
	if len(salt) == 0 {
		return nil, fmt.Errorf("xor transform: %w", xor.ErrEmptyKey)
	}
	s := make([]byte, len(salt))
	copy(s, salt)
	return &xorTransform{salt: s}, nil
}

func (x *xorTransform) Apply(data []byte) ([]byte, error) {
	out, err := xor.Apply(data, x.salt)
	if err != nil {
		return nil, fmt.Errorf("xor apply: %w", err)
	}
	return out, nil
}

func (x *xorTransform) Reverse(data []byte) ([]byte, error) {
	out, err := xor.Apply(data, x.salt)
	if err != nil {
		return nil, fmt.Errorf("xor reverse: %w", err)
	}
	return out, nil
}
