// Package camera is the parameter engine of an IIDC camera. It keeps a shadow copy of the
// camera's settings consistent with the hardware, translates the frame rate centric user
// model into fixed rate indices or packet sizes, and decides when a change needs a full
// disconnect and reconnect of the frame transport.
//
// A Camera has a single owner and is not safe for concurrent use. Distinct cameras are
// independent.
package camera

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/logging"
	"go.viam.com/iidc/state"
	"go.viam.com/iidc/transport"
)

// Camera is one connected IIDC camera.
type Camera struct {
	driver    dcam.Driver
	transport transport.Client
	cache     *config.Cache
	logger    logging.Logger
	clock     clock.Clock

	identity dcam.Identity
	// store is nil once the camera is closed.
	store *state.Store
	// lag is the buffer lag reported by the last acquisition or flush.
	lag int
	// frame is the acquired frame not yet released.
	frame *transport.Frame
	// filled is the fill time of the last acquired frame, zero before the first.
	filled time.Time
}

// Option configures a Camera.
type Option func(*options)

type options struct {
	clock   clock.Clock
	initial *state.CameraState
}

// WithClock sets the clock used for the sleeps that drain in-flight frames.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// WithInitialState connects the camera with the given settings instead of the factory
// defaults.
func WithInitialState(initial state.CameraState) Option {
	return func(o *options) {
		o.initial = &initial
	}
}

// New loads the camera's hardware configuration through cache, connects the transport and
// initializes every register from the initial settings. Without WithInitialState the
// camera is reset and its factory defaults are used. The frame number starts at 0.
func New(
	ctx context.Context,
	driver dcam.Driver,
	client transport.Client,
	cache *config.Cache,
	logger logging.Logger,
	opts ...Option,
) (*Camera, error) {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Camera{
		driver:    driver,
		transport: client,
		cache:     cache,
		logger:    logger,
		clock:     o.clock,
	}

	id, err := driver.Identity(ctx)
	if err != nil {
		return nil, hardware(err, "identifying camera")
	}
	c.identity = id

	cfg, err := c.config(ctx)
	if err != nil {
		return nil, err
	}

	var initial state.CameraState
	if o.initial != nil {
		initial = *o.initial
	} else {
		initial, err = c.defaultSettings(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "generating default settings")
		}
	}

	// The shadow starts stopped so that connecting starts the camera only when asked to.
	shadow := initial
	shadow.Running = false
	shadow.SingleShot = false
	c.store = state.NewStore(shadow)
	if err := c.connect(ctx, cfg, initial); err != nil {
		if c.store.Connected() {
			utils.UncheckedError(c.transport.Disconnect(ctx))
		}
		c.store = nil
		return nil, errors.Wrapf(err, "connecting camera %s", id.Chip())
	}
	c.logger.CDebugw(ctx, "camera connected", "chip", id.Chip(), "model", id.Model, "format", cfg.Format, "mode", cfg.Mode)
	return c, nil
}

// Close stops the camera, waits for in-flight frames, resets the camera to its factory
// settings and disconnects the transport. The camera cannot be used afterwards.
func (c *Camera) Close(ctx context.Context) error {
	if c.store == nil {
		return ErrNullHandle
	}
	var err error
	if c.store.Connected() {
		err = multierr.Combine(
			c.setRunning(ctx, false),
			c.sleepFrames(drainFrames),
		)
	}
	err = multierr.Combine(
		err,
		hardware(c.driver.Reset(ctx), "resetting camera"),
		c.disconnect(ctx),
	)
	c.store = nil
	return err
}

// ready returns ErrNullHandle unless the camera is connected.
func (c *Camera) ready() error {
	if c.store == nil || !c.store.Connected() {
		return ErrNullHandle
	}
	return nil
}

func (c *Camera) config(ctx context.Context) (config.HardwareConfig, error) {
	cfg, err := c.cache.Get(ctx, c.driver)
	if err != nil {
		if errors.Is(err, ErrConfigurationUnavailable) {
			return config.HardwareConfig{}, err
		}
		return config.HardwareConfig{}, errors.Wrapf(ErrConfigurationUnavailable, "%v", err)
	}
	return cfg, nil
}

// fromShadow reports whether reads of f are served from the shadow.
func (c *Camera) fromShadow(f state.Field) bool {
	return state.FromShadow(f, c.store.Shadow())
}

// Config returns the camera's hardware configuration.
func (c *Camera) Config(ctx context.Context) (config.HardwareConfig, error) {
	if err := c.ready(); err != nil {
		return config.HardwareConfig{}, err
	}
	return c.config(ctx)
}

// Identity returns the identity read when the camera was created.
func (c *Camera) Identity() (dcam.Identity, error) {
	if err := c.ready(); err != nil {
		return dcam.Identity{}, err
	}
	return c.identity, nil
}

// State returns all current settings, from the shadow or the hardware according to the
// shadow flag. Optional features that are absent report their shadow values.
func (c *Camera) State(ctx context.Context) (state.CameraState, error) {
	if err := c.ready(); err != nil {
		return state.CameraState{}, err
	}
	return c.currentSettings(ctx)
}

// SetState applies all settings. If any of them is a structural change the camera is
// reconnected with the new settings, otherwise each is written to its register.
func (c *Camera) SetState(ctx context.Context, next state.CameraState) error {
	if err := c.ready(); err != nil {
		return err
	}
	cfg, err := c.config(ctx)
	if err != nil {
		return err
	}
	current, err := c.currentSettings(ctx)
	if err != nil {
		return err
	}
	quantum, err := c.packetQuantum(ctx, cfg)
	if err != nil {
		return err
	}
	next.NumFrameBuffers = max(next.NumFrameBuffers, minFrameBuffers)
	if RequiresReconnect(current, next, cfg, quantum) {
		return c.reconnect(ctx, cfg, next)
	}

	if cfg.Format == dcam.FormatScalableImageSize {
		if next.Left != current.Left || next.Top != current.Top {
			if err := c.setFrameOffset(ctx, cfg, next.Left, next.Top); err != nil {
				return err
			}
		}
		if next.Coding != current.Coding {
			if err := c.setPixelCoding(ctx, cfg, next.Coding); err != nil {
				return err
			}
		}
	}
	if next.FrameRate != current.FrameRate {
		if err := c.setFrameRate(ctx, cfg, next.FrameRate); err != nil {
			return err
		}
	}
	return c.setNonDMARegisters(ctx, cfg, next)
}

// WriteState writes the current settings to w in the camera state file format.
func (c *Camera) WriteState(ctx context.Context, w io.Writer) error {
	current, err := c.State(ctx)
	if err != nil {
		return err
	}
	return state.Write(w, current)
}

// Shadow reports whether reads are served from the shadow.
func (c *Camera) Shadow() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.store.Shadow(), nil
}

// SetShadow selects the shadow (true) or the hardware (false) as the authority for reads.
func (c *Camera) SetShadow(shadow bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	c.store.SetShadow(shadow)
	return nil
}
