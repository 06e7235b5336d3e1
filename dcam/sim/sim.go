// Package sim provides a simulated IIDC camera. A Camera is both its own register-level
// driver and its own frame transport, so engines can be exercised without a bus.
package sim

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/transport"
)

// ErrNoFrame is returned by a waiting Acquire when nothing would ever arrive: the camera is
// neither transmitting nor armed for a single shot.
var ErrNoFrame = errors.New("camera is stopped, no frame will arrive")

var (
	_ dcam.Driver      = (*Camera)(nil)
	_ transport.Client = (*Camera)(nil)
)

// Camera is a simulated camera. It is safe for concurrent use.
type Camera struct {
	mu    sync.Mutex
	clock clock.Clock

	identity dcam.Identity
	formats  uint32
	modes    map[dcam.Format]uint32
	rates    uint32

	maxWidth, maxHeight     int
	unitWidth, unitHeight   int
	unitLeft, unitTop       int
	width, height           int
	left, top               int
	colorBits               uint32
	color                   dcam.ColorID
	packetUnit, packetMax   int
	packetSize              int
	frameRate               dcam.FrameRate
	features                map[dcam.Feature]dcam.FeatureInfo
	factoryShutter          uint32
	shutter                 uint32
	factoryBlue, factoryRed uint32
	blue, red               uint32
	trigger, polarity       bool
	triggerMode             uint32
	transmitting, oneShot   bool

	connected bool
	setup     transport.Setup
	queued    int
	held      bool
	delivered int

	failures map[string]error
	calls    []string
}

// Option configures a simulated camera.
type Option func(*Camera)

// WithIdentity sets the vendor, model and EUID.
func WithIdentity(id dcam.Identity) Option {
	return func(c *Camera) {
		c.identity = id
	}
}

// WithClock sets the clock used for frame fill times.
func WithClock(clk clock.Clock) Option {
	return func(c *Camera) {
		c.clock = clk
	}
}

// WithoutFeature removes an optional feature.
func WithoutFeature(feature dcam.Feature) Option {
	return func(c *Camera) {
		c.features[feature] = dcam.FeatureInfo{}
	}
}

// WithoutTriggerPolarity keeps the trigger but removes its polarity control.
func WithoutTriggerPolarity() Option {
	return func(c *Camera) {
		info := c.features[dcam.FeatureTrigger]
		info.HasPolarity = false
		c.features[dcam.FeatureTrigger] = info
	}
}

// WithFeatureRange sets the register range of a feature.
func WithFeatureRange(feature dcam.Feature, lo, hi uint32) Option {
	return func(c *Camera) {
		info := c.features[feature]
		info.Min, info.Max = lo, hi
		c.features[feature] = info
	}
}

// WithPacketParameters sets the Format 7 packet size quantum and maximum.
func WithPacketParameters(unit, maxBytes int) Option {
	return func(c *Camera) {
		c.packetUnit, c.packetMax = unit, maxBytes
		c.packetSize = maxBytes
	}
}

// WithColorCodings sets the Format 7 color coding inquiry bitfield.
func WithColorCodings(bits uint32) Option {
	return func(c *Camera) {
		c.colorBits = bits
	}
}

// Format0Only makes the camera support only Format 0 at 640x480 mono 8 and the given
// frame rate inquiry bitfield.
func Format0Only(rateBits uint32) Option {
	return func(c *Camera) {
		c.formats = dcam.Bit(dcam.FormatVGANonCompressed.Number())
		c.modes = map[dcam.Format]uint32{
			dcam.FormatVGANonCompressed: dcam.Bit(dcam.Mode640x480Mono.Number()) | dcam.Bit(dcam.Mode320x240YUV422.Number()),
		}
		c.rates = rateBits
		c.frameRate = dcam.FrameRate15
		c.width, c.height = 640, 480
	}
}

// New returns a 1024x768 Format 7 camera with mono 8, mono 16 and RGB 8 codings, shutter,
// white balance and a trigger with polarity.
func New(opts ...Option) *Camera {
	c := &Camera{
		clock:    clock.New(),
		identity: dcam.Identity{Vendor: "Simulated", Model: "SIM-1024", EUID: 0xa47010000ab12},
		formats:  dcam.Bit(dcam.FormatVGANonCompressed.Number()) | dcam.Bit(dcam.FormatScalableImageSize.Number()),
		modes: map[dcam.Format]uint32{
			dcam.FormatVGANonCompressed:  dcam.Bit(dcam.Mode640x480Mono.Number()),
			dcam.FormatScalableImageSize: dcam.Bit(dcam.ModeFormat7_0.Number()) | dcam.Bit(dcam.ModeFormat7_1.Number()),
		},
		rates:      dcam.Bit(2) | dcam.Bit(3) | dcam.Bit(4),
		maxWidth:   1024,
		maxHeight:  768,
		unitWidth:  8,
		unitHeight: 2,
		unitLeft:   4,
		unitTop:    2,
		width:      1024,
		height:     768,
		colorBits:  dcam.Bit(0) | dcam.Bit(4) | dcam.Bit(5),
		color:      dcam.ColorMono8,
		packetUnit: 8,
		packetMax:  4096,
		packetSize: 4096,
		frameRate:  dcam.FrameRate15,
		features: map[dcam.Feature]dcam.FeatureInfo{
			dcam.FeatureShutter:      {Present: true, Readable: true, Min: 1, Max: 4095},
			dcam.FeatureWhiteBalance: {Present: true, Readable: true, Min: 0, Max: 255},
			dcam.FeatureTrigger:      {Present: true, Readable: true, HasPolarity: true},
		},
		factoryShutter: 500,
		factoryBlue:    96,
		factoryRed:     80,
		failures:       map[string]error{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resetRegisters()
	return c
}

func (c *Camera) resetRegisters() {
	c.shutter = c.factoryShutter
	c.blue, c.red = c.factoryBlue, c.factoryRed
	c.trigger = false
	c.polarity = true
	c.triggerMode = 0
	c.transmitting = false
	c.oneShot = false
	c.left, c.top = 0, 0
	if c.formats&dcam.Bit(dcam.FormatScalableImageSize.Number()) != 0 {
		c.width, c.height = c.maxWidth, c.maxHeight
		c.color = dcam.ColorMono8
	}
}

// FailOn makes every later call of the named method return err. A nil err clears it.
func (c *Camera) FailOn(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, method)
		return
	}
	c.failures[method] = err
}

// Calls returns the names of the methods called so far, in order.
func (c *Camera) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// ResetCalls clears the call record.
func (c *Camera) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}

// enter records a call and returns its injected failure. The caller holds mu.
func (c *Camera) enter(method string) error {
	c.calls = append(c.calls, method)
	return c.failures[method]
}

// Deliver simulates the camera transmitting n frames. Frames beyond the buffer ring
// capacity are lost. An armed one-shot register clears after its frame.
func (c *Camera) Deliver(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliver(n)
}

func (c *Camera) deliver(n int) {
	if !c.connected {
		return
	}
	for i := 0; i < n; i++ {
		if !c.transmitting && !c.oneShot {
			return
		}
		c.oneShot = false
		c.delivered++
		if c.queued < c.setup.NumBuffers {
			c.queued++
		}
	}
}

// AutoClear simulates the one-shot register clearing without a frame being captured.
func (c *Camera) AutoClear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oneShot = false
}

// Delivered returns the number of frames transmitted since creation.
func (c *Camera) Delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}

// Setup returns the last transport setup.
func (c *Camera) Setup() transport.Setup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setup
}

func (c *Camera) frameBytes() int {
	if c.setup.Format == dcam.FormatScalableImageSize {
		size, err := pixel.FrameBytes(c.width, c.height, pixel.FromColorID(c.color))
		if err == nil {
			return size
		}
	}
	w, h := pixel.ModeSize(c.setup.Mode)
	size, err := pixel.FrameBytes(w, h, pixel.FromMode(c.setup.Mode))
	if err != nil {
		return w * h
	}
	return size
}

// Connect implements transport.Client.
func (c *Camera) Connect(ctx context.Context, setup transport.Setup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Connect"); err != nil {
		return err
	}
	if c.connected {
		return errors.New("already connected")
	}
	if setup.NumBuffers < 1 {
		return errors.Errorf("need at least one frame buffer, got %d", setup.NumBuffers)
	}
	switch setup.Format {
	case dcam.FormatScalableImageSize:
		if err := c.checkGeometry(setup.Left, setup.Top, setup.Width, setup.Height); err != nil {
			return err
		}
		if setup.PacketSize < 1 || setup.PacketSize%c.packetUnit != 0 || setup.PacketSize > c.packetMax {
			return errors.Errorf("illegal packet size %d", setup.PacketSize)
		}
		c.left, c.top = setup.Left, setup.Top
		c.width, c.height = setup.Width, setup.Height
		c.packetSize = setup.PacketSize
	case dcam.FormatVGANonCompressed:
		if c.rates&dcam.Bit(int(setup.FrameRate-dcam.FrameRate1_875)) == 0 {
			return errors.Errorf("frame rate index %d not supported", setup.FrameRate)
		}
		c.frameRate = setup.FrameRate
		c.width, c.height = pixel.ModeSize(setup.Mode)
	default:
		return errors.Errorf("unsupported format %v", setup.Format)
	}
	c.setup = setup
	c.connected = true
	c.queued = 0
	c.held = false
	return nil
}

// Disconnect implements transport.Client.
func (c *Camera) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Disconnect"); err != nil {
		return err
	}
	c.connected = false
	c.queued = 0
	c.held = false
	return nil
}

// Acquire implements transport.Client. A waiting Acquire with an empty ring receives the
// next frame the camera would send.
func (c *Camera) Acquire(ctx context.Context, wait bool) (*transport.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Acquire"); err != nil {
		return nil, err
	}
	if !c.connected {
		return nil, errors.New("not connected")
	}
	if c.held {
		return nil, errors.New("previous frame not released")
	}
	if c.queued == 0 {
		if !wait {
			return nil, nil
		}
		if !c.transmitting && !c.oneShot {
			return nil, ErrNoFrame
		}
		c.deliver(1)
	}
	c.queued--
	c.held = true
	return &transport.Frame{
		Data:   make([]byte, c.frameBytes()),
		Lag:    c.queued,
		Filled: c.clock.Now(),
	}, nil
}

// Release implements transport.Client.
func (c *Camera) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Release"); err != nil {
		return err
	}
	if !c.held {
		return errors.New("no frame held")
	}
	c.held = false
	return nil
}

// Flush implements transport.Client.
func (c *Camera) Flush(ctx context.Context, n int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("Flush"); err != nil {
		return 0, err
	}
	flushed := 0
	for flushed < n && c.queued > 0 {
		c.queued--
		flushed++
	}
	return flushed, nil
}

// Queued returns the number of frames waiting in the buffer ring.
func (c *Camera) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queued
}
