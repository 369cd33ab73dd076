package transform

import (
	"errors"
	"fmt"
	"strings"
)

// KeyFunc resolves key material for a named transform while a pipeline is
// being built from registry names. It is only consulted for transforms that
// take a key.
type KeyFunc func(name string) ([]byte, error)

type PayloadProcessor struct {
	// Pipeline transforms: Applied 0..N for outgoing, N..0 for incoming.
	transforms []Transform
	names      []string
}

// NewPayloadProcessor creates a processor with a defined pipeline.
// Requires at least one transform. Use NewNoOpTransform() for an explicitly
// empty pipeline.
func NewPayloadProcessor(pipelineTransforms []Transform) (*PayloadProcessor, error) {
	if len(pipelineTransforms) == 0 {
		return nil, errors.New("payload processor requires at least one transform; use NewNoOpTransform() for an empty pipeline")
	}

	s := make([]Transform, len(pipelineTransforms))
	copy(s, pipelineTransforms)

	names := make([]string, len(s))
	for i, tr := range s {
		names[i] = fmt.Sprintf("%T", tr)
	}

	return &PayloadProcessor{
		transforms: s,
		names:      names,
	}, nil
}

// NewPipeline builds a processor from registry names, in apply order. keyFor
// resolves key material per stage and may be nil when no stage needs a key.
func NewPipeline(names []string, keyFor KeyFunc) (*PayloadProcessor, error) {
	if len(names) == 0 {
		return nil, errors.New("pipeline requires at least one transform name; use \"null\" for an explicitly empty pipeline")
	}

	transforms := make([]Transform, 0, len(names))
	stages := make([]string, 0, len(names))
	for _, name := range names {
		// Normalize once so NeedsKey, keyFor and New all see the same name.
		name = strings.ToLower(name)
		var key []byte
		if keyFor != nil && NeedsKey(name) {
			k, err := keyFor(name)
			if err != nil {
				return nil, fmt.Errorf("pipeline: resolving key for %q: %w", name, err)
			}
			key = k
		}
		tr, err := New(name, key)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		transforms = append(transforms, tr)
		stages = append(stages, name)
	}

	return &PayloadProcessor{
		transforms: transforms,
		names:      stages,
	}, nil
}

// Stages returns the stage names in apply order.
func (p *PayloadProcessor) Stages() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// PrepareOutput applies the pipeline transformations in forward order (0..N).
func (p *PayloadProcessor) PrepareOutput(payload []byte) ([]byte, error) {
	var err error
	currentPayload := payload
	for i, tr := range p.transforms {
		currentPayload, err = tr.Apply(currentPayload)
		if err != nil {
			return nil, fmt.Errorf("prepare output: transform %d (%s) Apply failed: %w", i, p.names[i], err)
		}
	}
	return currentPayload, nil
}

// ParseInput applies the pipeline transformations in reverse order (N..0).
func (p *PayloadProcessor) ParseInput(payload []byte) ([]byte, error) {
	var err error
	currentPayload := payload
	for i := len(p.transforms) - 1; i >= 0; i-- {
		currentPayload, err = p.transforms[i].Reverse(currentPayload)
		if err != nil {
			return nil, fmt.Errorf("parse input: transform %d (%s) Reverse failed: %w", i, p.names[i], err)
		}
	}
	return currentPayload, nil
}
