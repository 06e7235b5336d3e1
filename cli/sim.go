package cli

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/iidc/bus"
	"go.viam.com/iidc/camera"
	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/dcam/sim"
	"go.viam.com/iidc/logging"
)

// simClock is a mock clock whose sleeps advance it instead of blocking, so a simulated
// session takes no wall time.
type simClock struct {
	*clock.Mock
}

func (c simClock) Sleep(d time.Duration) {
	c.Add(d)
}

// simOptions describe the simulated camera and where its configuration comes from.
type simOptions struct {
	configDir string
	format0   bool
	// migration receives a synthesized configuration when no file is found.
	migration io.Writer
	camera    []camera.Option
}

// simSession is a simulated camera claimed through a bus registry and driven by an engine.
type simSession struct {
	registry *bus.Registry
	handle   *bus.Handle
	sim      *sim.Camera
	clock    simClock
	cam      *camera.Camera
}

func newSimCamera(opts simOptions) (*sim.Camera, simClock) {
	clk := simClock{clock.NewMock()}
	simOpts := []sim.Option{sim.WithClock(clk.Mock)}
	if opts.format0 {
		simOpts = append(simOpts, sim.Format0Only(dcam.Bit(0)|dcam.Bit(1)|dcam.Bit(2)|dcam.Bit(3)|dcam.Bit(4)|dcam.Bit(5)))
	}
	return sim.New(simOpts...), clk
}

func openSimSession(ctx context.Context, logger logging.Logger, opts simOptions) (*simSession, error) {
	simCam, clk := newSimCamera(opts)
	registry := bus.NewRegistry(bus.Static{{Driver: simCam, Transport: simCam}}, logger, bus.WithClock(clk))
	n, err := registry.Open(ctx, bus.DefaultRetryPolicy())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, errors.New("no cameras found")
	}
	handle, err := registry.Claim(0)
	if err != nil {
		return nil, err
	}

	// the simulator has no config file to find
	cacheOpts := []config.CacheOption{config.WithWorkDir(opts.configDir), config.UseGenerated()}
	if opts.migration != nil {
		cacheOpts = append(cacheOpts, config.WithMigrationOutput(opts.migration))
	}
	camLogger := logger.Sublogger("camera." + handle.Name())
	cam, err := camera.New(ctx, handle.Node.Driver, handle.Node.Transport, config.NewCache(camLogger, cacheOpts...), camLogger,
		append([]camera.Option{camera.WithClock(clk)}, opts.camera...)...)
	if err != nil {
		return nil, multierr.Combine(err, registry.Close(ctx))
	}
	return &simSession{registry: registry, handle: handle, sim: simCam, clock: clk, cam: cam}, nil
}

func (s *simSession) Close(ctx context.Context) error {
	return multierr.Combine(
		s.cam.Close(ctx),
		s.registry.Release(s.handle),
		s.registry.Close(ctx),
	)
}
