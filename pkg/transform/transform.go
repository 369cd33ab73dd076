// Package transform provides reversible byte-payload transforms and a
// pipeline for chaining them. Every transform maps a payload to a new buffer
// and back: Apply for the outgoing direction, Reverse for the incoming one.
package transform

type Transform interface {
	Apply(data []byte) ([]byte, error)
	Reverse(data []byte) ([]byte, error)
}

type noOpTransform struct{}

func NewNoOpTransform() Transform                            { return &noOpTransform{} }
func (n *noOpTransform) Apply(data []byte) ([]byte, error)   { return data, nil }
func (n *noOpTransform) Reverse(data []byte) ([]byte, error) { return data, nil }
