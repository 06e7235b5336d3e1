package inject

import (
	"context"

	"go.viam.com/iidc/transport"
)

// Transport is an injected frame transport client.
type Transport struct {
	transport.Client
	ConnectFunc    func(ctx context.Context, setup transport.Setup) error
	DisconnectFunc func(ctx context.Context) error
	AcquireFunc    func(ctx context.Context, wait bool) (*transport.Frame, error)
	ReleaseFunc    func(ctx context.Context) error
	FlushFunc      func(ctx context.Context, n int) (int, error)
}

// Connect calls the injected Connect or the real version.
func (t *Transport) Connect(ctx context.Context, setup transport.Setup) error {
	if t.ConnectFunc == nil {
		return t.Client.Connect(ctx, setup)
	}
	return t.ConnectFunc(ctx, setup)
}

// Disconnect calls the injected Disconnect or the real version.
func (t *Transport) Disconnect(ctx context.Context) error {
	if t.DisconnectFunc == nil {
		return t.Client.Disconnect(ctx)
	}
	return t.DisconnectFunc(ctx)
}

// Acquire calls the injected Acquire or the real version.
func (t *Transport) Acquire(ctx context.Context, wait bool) (*transport.Frame, error) {
	if t.AcquireFunc == nil {
		return t.Client.Acquire(ctx, wait)
	}
	return t.AcquireFunc(ctx, wait)
}

// Release calls the injected Release or the real version.
func (t *Transport) Release(ctx context.Context) error {
	if t.ReleaseFunc == nil {
		return t.Client.Release(ctx)
	}
	return t.ReleaseFunc(ctx)
}

// Flush calls the injected Flush or the real version.
func (t *Transport) Flush(ctx context.Context, n int) (int, error) {
	if t.FlushFunc == nil {
		return t.Client.Flush(ctx, n)
	}
	return t.FlushFunc(ctx, n)
}
