// Package bus owns the cameras found on the bus. A Registry is created by the program's
// lifecycle root and passed to whatever needs to find or claim a camera; there is no
// process-wide camera table.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/transport"
)

var (
	// ErrNotOpen is returned by operations that need an enumerated bus.
	ErrNotOpen = errors.New("bus has not been opened")
	// ErrClaimed is returned when a camera already has a live handle.
	ErrClaimed = errors.New("camera is already claimed")
)

// Node is one camera as reported by enumeration.
type Node struct {
	// Port is the host adapter the camera is attached to.
	Port int
	// ID is the camera's node id on its port.
	ID        int
	Driver    dcam.Driver
	Transport transport.Client
}

// Enumerator is the topology layer that discovers cameras.
type Enumerator interface {
	// Enumerate returns every camera on every port. Finding no cameras is not an error.
	Enumerate(ctx context.Context) ([]Node, error)
	// Reset requests a reset of every bus with cameras attached. Buses may need a while
	// to settle afterwards.
	Reset(ctx context.Context) error
}

// RetryPolicy controls how Open recovers from a failed enumeration: up to Attempts times
// it resets the bus, waits Pause and enumerates again.
type RetryPolicy struct {
	Attempts int
	Pause    time.Duration
}

// DefaultRetryPolicy retries five times, one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, Pause: time.Second}
}

// Handle is a claim on one camera. It stays valid until released, or until the registry
// is reset or closed.
type Handle struct {
	// ID identifies this claim, so two claims of the same camera can be told apart in logs.
	ID    uuid.UUID
	Index int
	Node  Node
}

// Name is a short name for the claim, for logger names.
func (h *Handle) Name() string {
	return h.ID.String()[:8]
}

// Registry caches the enumerated cameras and the claims on them. It is safe for concurrent
// use.
type Registry struct {
	enumerator Enumerator
	logger     logging.Logger
	clock      clock.Clock

	mu      sync.Mutex
	nodes   []Node
	opened  bool
	claimed map[int]*Handle
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock sets the clock used for the pauses between enumeration retries.
func WithClock(clk clock.Clock) RegistryOption {
	return func(r *Registry) {
		r.clock = clk
	}
}

// NewRegistry returns an unopened registry.
func NewRegistry(enumerator Enumerator, logger logging.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		enumerator: enumerator,
		logger:     logger,
		clock:      clock.New(),
		claimed:    map[int]*Handle{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open enumerates the bus and returns the number of cameras found. A failed enumeration is
// retried according to policy. Once open, later calls return the cached count without
// touching the bus.
func (r *Registry) Open(ctx context.Context, policy RetryPolicy) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return len(r.nodes), nil
	}

	nodes, err := r.enumerator.Enumerate(ctx)
	for attempt := 1; err != nil && attempt <= policy.Attempts; attempt++ {
		r.logger.Warnw("could not enumerate cameras, resetting the bus", "attempt", attempt, "error", err)
		if resetErr := r.enumerator.Reset(ctx); resetErr != nil {
			r.logger.Debugw("bus reset failed", "error", resetErr)
		}
		r.clock.Sleep(policy.Pause)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		nodes, err = r.enumerator.Enumerate(ctx)
	}
	if err != nil {
		return 0, errors.Wrap(err, "could not initialize the camera bus")
	}

	r.nodes = nodes
	r.opened = true
	r.logger.CDebugw(ctx, "camera bus opened", "cameras", len(nodes))
	return len(nodes), nil
}

// Nodes returns the enumerated cameras.
func (r *Registry) Nodes() ([]Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil, ErrNotOpen
	}
	return append([]Node(nil), r.nodes...), nil
}

// Claim hands out the camera at index. A camera can only be claimed once at a time.
func (r *Registry) Claim(index int) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil, ErrNotOpen
	}
	if index < 0 || index >= len(r.nodes) {
		return nil, errors.Errorf("no camera %d, the bus has %d", index, len(r.nodes))
	}
	if _, ok := r.claimed[index]; ok {
		return nil, errors.Wrapf(ErrClaimed, "camera %d", index)
	}
	h := &Handle{ID: uuid.New(), Index: index, Node: r.nodes[index]}
	r.claimed[index] = h
	return h, nil
}

// Release gives up a claim. Releasing a handle that is no longer valid is an error.
func (r *Registry) Release(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h == nil || r.claimed[h.Index] != h {
		return errors.New("handle is not a current claim")
	}
	delete(r.claimed, h.Index)
	return nil
}

// Identify reads the identity of every enumerated camera. The cameras are independent so
// they are queried concurrently.
func (r *Registry) Identify(ctx context.Context) ([]dcam.Identity, error) {
	nodes, err := r.Nodes()
	if err != nil {
		return nil, err
	}
	ids := make([]dcam.Identity, len(nodes))
	group, ctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		group.Go(func() error {
			id, err := node.Driver.Identity(ctx)
			if err != nil {
				return errors.Wrapf(err, "identifying camera %d on port %d", i, node.Port)
			}
			ids[i] = id
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Reset resets the bus and forgets the enumerated cameras, so the next Open enumerates
// again. It refuses while any camera is claimed, since a reset invalidates every handle.
func (r *Registry) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.claimed) > 0 {
		return errors.Errorf("cannot reset the bus with %d cameras claimed", len(r.claimed))
	}
	r.nodes = nil
	r.opened = false
	return r.enumerator.Reset(ctx)
}

// Close invalidates every handle and forgets the enumerated cameras. The transports of
// cameras still claimed are disconnected.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	for index, h := range r.claimed {
		if h.Node.Transport != nil {
			err = multierr.Combine(err, errors.Wrapf(h.Node.Transport.Disconnect(ctx), "disconnecting camera %d", index))
		}
	}
	r.claimed = map[int]*Handle{}
	r.nodes = nil
	r.opened = false
	return err
}

// Static is an Enumerator over a fixed set of cameras, such as simulated ones.
type Static []Node

// Enumerate implements Enumerator.
func (s Static) Enumerate(ctx context.Context) ([]Node, error) {
	return append([]Node(nil), s...), nil
}

// Reset implements Enumerator. A fixed set of cameras has nothing to reset.
func (s Static) Reset(ctx context.Context) error {
	return nil
}
