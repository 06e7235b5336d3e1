package inject

import (
	"context"

	"go.viam.com/iidc/bus"
)

// Enumerator is an injected bus enumerator.
type Enumerator struct {
	bus.Enumerator
	EnumerateFunc func(ctx context.Context) ([]bus.Node, error)
	ResetFunc     func(ctx context.Context) error
}

// Enumerate calls the injected Enumerate or the real version.
func (e *Enumerator) Enumerate(ctx context.Context) ([]bus.Node, error) {
	if e.EnumerateFunc == nil {
		return e.Enumerator.Enumerate(ctx)
	}
	return e.EnumerateFunc(ctx)
}

// Reset calls the injected Reset or the real version.
func (e *Enumerator) Reset(ctx context.Context) error {
	if e.ResetFunc == nil {
		return e.Enumerator.Reset(ctx)
	}
	return e.ResetFunc(ctx)
}
