package camera

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/packet"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
	"go.viam.com/iidc/transport"
)

// drainFrames is how many frame periods to wait after stopping for frames already on the
// bus to land.
const drainFrames = 1.5

// defaultFormat7Rate is used when a Format 7 camera cannot report its packets per frame.
const defaultFormat7Rate = 15.0

// connect sets up the transport for set and initializes every other register from it. The
// shadow records what was actually achieved: the coding and frame rate may differ from
// those requested.
func (c *Camera) connect(ctx context.Context, cfg config.HardwareConfig, set state.CameraState) error {
	setup := transport.Setup{
		Format:     cfg.Format,
		Mode:       cfg.Mode,
		Speed:      cfg.Speed,
		NumBuffers: set.NumFrameBuffers,
		DropFrames: cfg.DropFrames,
		Device:     cfg.DMADeviceName,
	}
	var (
		coding pixel.Coding
		rate   float64
	)
	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		setup.FrameRate = packet.IndexFromRate(set.FrameRate)
		setup.Width, setup.Height = pixel.ModeSize(cfg.Mode)
		if err := c.transport.Connect(ctx, setup); err != nil {
			return hardware(err, "connecting transport")
		}
		coding = pixel.FromMode(cfg.Mode)
		rate = packet.RateFromIndex(setup.FrameRate)

	case dcam.FormatScalableImageSize:
		depth, err := pixel.Depth(set.Coding)
		if err != nil {
			return err
		}
		bits, err := c.driver.ColorCodings(ctx, cfg.Mode)
		if err != nil {
			return hardware(err, "querying color codings")
		}
		if bits == 0 {
			return errors.New("camera reports no color codings")
		}
		id := pixel.ColorID(set.Coding, bits)
		if id == 0 {
			return errors.Errorf("pixel coding %v is not supported by the camera", set.Coding)
		}
		// The coding must be set before the transport sizes its buffers.
		if err := c.driver.SetColorCoding(ctx, cfg.Mode, id); err != nil {
			return hardware(err, "setting color coding")
		}
		coding = pixel.FromColorID(id)

		quantum, err := c.packetQuantum(ctx, cfg)
		if err != nil {
			return err
		}
		limits := cfg.Limits()
		numPackets := packet.FromFrameRate(set.FrameRate, limits)
		setup.PacketSize = packet.PacketSize(numPackets, set.Width, set.Height, depth, limits, quantum)
		setup.Left, setup.Top = set.Left, set.Top
		setup.Width, setup.Height = set.Width, set.Height
		if err := c.transport.Connect(ctx, setup); err != nil {
			return hardware(err, "connecting transport")
		}
		actualDepth, err := pixel.Depth(coding)
		if err != nil {
			return err
		}
		rate = packet.ToFrameRate(packet.NumPackets(setup.PacketSize, set.Width, set.Height, actualDepth, limits), limits)

	default:
		return unsupportedFormat(cfg.Format)
	}

	c.store.SetConnected(true)
	c.store.Update(func(s *state.CameraState) {
		s.NumFrameBuffers = set.NumFrameBuffers
		s.Left, s.Top = setup.Left, setup.Top
		s.Width, s.Height = setup.Width, setup.Height
		s.Coding = coding
		s.FrameRate = rate
	})
	return c.setNonDMARegisters(ctx, cfg, set)
}

// setNonDMARegisters writes every setting the transport setup does not cover. Frame size,
// coding and frame rate are excluded because changing them may reconnect.
func (c *Camera) setNonDMARegisters(ctx context.Context, cfg config.HardwareConfig, set state.CameraState) error {
	c.store.SetShadow(set.Shadow)
	// Features the camera lacks keep these values.
	c.store.Update(func(s *state.CameraState) {
		s.TriggerPolarity = set.TriggerPolarity
		s.ExternalTrigger = set.ExternalTrigger
		s.Shutter = set.Shutter
		s.BlueGain, s.RedGain = set.BlueGain, set.RedGain
	})

	trigger, avail, err := c.feature(ctx, dcam.FeatureTrigger)
	if err != nil {
		return err
	}
	if avail == Present {
		// Edge triggered.
		if err := c.driver.SetTriggerMode(ctx, 0); err != nil {
			return hardware(err, "setting trigger mode")
		}
		if err := c.setExternalTrigger(ctx, set.ExternalTrigger); err != nil {
			return err
		}
		if trigger.HasPolarity {
			if err := c.setTriggerPolarity(ctx, set.TriggerPolarity); err != nil {
				return err
			}
		}
	}

	_, avail, err = c.feature(ctx, dcam.FeatureShutter)
	if err != nil {
		return err
	}
	if avail == Present {
		if err := c.setShutter(ctx, cfg, set.Shutter); err != nil {
			return err
		}
	}

	_, avail, err = c.feature(ctx, dcam.FeatureWhiteBalance)
	if err != nil {
		return err
	}
	if avail == Present {
		if err := c.setWhiteBalance(ctx, cfg, set.BlueGain, set.RedGain); err != nil {
			return err
		}
	}

	if err := c.setSingleShot(ctx, set.SingleShot); err != nil {
		return err
	}
	return c.setRunning(ctx, set.Running)
}

// disconnect releases the transport. The held frame, if any, is lost.
func (c *Camera) disconnect(ctx context.Context) error {
	if !c.store.Connected() {
		return nil
	}
	c.frame = nil
	c.lag = 0
	c.store.SetConnected(false)
	return hardware(c.transport.Disconnect(ctx), "disconnecting transport")
}

// reconnect applies a structural change: stop if running, wait for in-flight frames,
// disconnect and connect with set. A failure leaves the camera disconnected.
func (c *Camera) reconnect(ctx context.Context, cfg config.HardwareConfig, set state.CameraState) error {
	c.logger.CDebugw(ctx, "reconnecting camera", "chip", c.identity.Chip(), "buffers", set.NumFrameBuffers,
		"width", set.Width, "height", set.Height, "coding", set.Coding, "frame_rate", set.FrameRate)
	if c.store.State().Running {
		if err := c.setRunning(ctx, false); err != nil {
			return err
		}
		if err := c.sleepFrames(drainFrames); err != nil {
			return err
		}
	}
	if err := c.disconnect(ctx); err != nil {
		return err
	}
	if err := c.connect(ctx, cfg, set); err != nil {
		c.logger.Errorw("reconnect failed, camera left disconnected", "chip", c.identity.Chip(), "error", err)
		if c.store.Connected() {
			c.store.SetConnected(false)
			if discErr := c.transport.Disconnect(ctx); discErr != nil {
				c.logger.CDebugw(ctx, "disconnecting after failed reconnect", "error", discErr)
			}
		}
		return err
	}
	return nil
}

// sleepFrames blocks for multiple periods of the shadow frame rate.
func (c *Camera) sleepFrames(multiple float64) error {
	rate := c.store.State().FrameRate
	if rate <= 0 {
		return errors.Errorf("cannot wait for frames at %g fps", rate)
	}
	c.clock.Sleep(time.Duration(multiple / rate * float64(time.Second)))
	return nil
}

// currentSettings returns every setting according to the read authority. Absent features
// report their shadow values.
func (c *Camera) currentSettings(ctx context.Context) (state.CameraState, error) {
	if c.store.Shadow() {
		// Running status is peeked even with shadow authority.
		if _, err := c.running(ctx); err != nil {
			return state.CameraState{}, err
		}
		return c.store.State(), nil
	}

	cfg, err := c.config(ctx)
	if err != nil {
		return state.CameraState{}, err
	}
	// Each direct read writes its result back into the shadow.
	reads := []func() error{
		func() error { _, err := c.running(ctx); return err },
		func() error { _, err := c.singleShot(ctx); return err },
		func() error { _, _, err := c.whiteBalance(ctx, cfg); return err },
		func() error { _, err := c.shutter(ctx, cfg); return err },
		func() error { _, err := c.triggerPolarity(ctx); return err },
		func() error { _, err := c.externalTrigger(ctx); return err },
		func() error { _, err := c.frameRate(ctx, cfg); return err },
		func() error { _, err := c.pixelCoding(ctx, cfg); return err },
		func() error { _, _, err := c.frameSize(ctx, cfg); return err },
		func() error { _, _, err := c.frameOffset(ctx, cfg); return err },
	}
	for _, read := range reads {
		if err := read(); err != nil && !errors.Is(err, ErrFeatureAbsent) {
			return state.CameraState{}, err
		}
	}
	return c.store.State(), nil
}

// defaultSettings resets the camera and derives start-up settings from its factory
// registers.
func (c *Camera) defaultSettings(ctx context.Context, cfg config.HardwareConfig) (state.CameraState, error) {
	if err := c.driver.Reset(ctx); err != nil {
		return state.CameraState{}, hardware(err, "resetting camera")
	}
	set := state.CameraState{
		NumFrameBuffers: 10,
		BlueGain:        1,
		RedGain:         1,
		TriggerPolarity: true,
		Shadow:          true,
	}

	switch cfg.Format {
	case dcam.FormatVGANonCompressed:
		set.Width, set.Height = pixel.ModeSize(cfg.Mode)
		set.Coding = pixel.FromMode(cfg.Mode)
		bits, err := c.driver.SupportedFrameRates(ctx, cfg.Format, cfg.Mode)
		if err != nil {
			return state.CameraState{}, hardware(err, "querying supported frame rates")
		}
		if bits&dcam.InquiryMask == 0 {
			return state.CameraState{}, errors.New("camera reports no supported frame rates")
		}
		set.FrameRate = packet.FrameRateBits(bits)

	case dcam.FormatScalableImageSize:
		var err error
		if set.Left, set.Top, err = c.driver.ImagePosition(ctx, cfg.Mode); err != nil {
			return state.CameraState{}, hardware(err, "reading image position")
		}
		if set.Width, set.Height, err = c.driver.ImageSize(ctx, cfg.Mode); err != nil {
			return state.CameraState{}, hardware(err, "reading image size")
		}
		id, err := c.driver.ColorCoding(ctx, cfg.Mode)
		if err != nil {
			return state.CameraState{}, hardware(err, "reading color coding")
		}
		set.Coding = pixel.FromColorID(id)
		set.FrameRate = defaultFormat7Rate
		numPackets, err := c.driver.PacketsPerFrame(ctx, cfg.Mode)
		switch {
		case err != nil:
			c.logger.Debugw("packets per frame unavailable, using default frame rate", "error", err)
		case numPackets == 0:
			c.logger.Debug("camera reports no packets per frame, using default frame rate")
		default:
			set.FrameRate = packet.ToFrameRate(numPackets, cfg.Limits())
		}

	default:
		return state.CameraState{}, unsupportedFormat(cfg.Format)
	}

	// The factory exposure, limited to one frame period.
	set.Shutter = 0.5 / set.FrameRate
	_, avail, err := c.feature(ctx, dcam.FeatureShutter)
	if err != nil {
		return state.CameraState{}, err
	}
	if avail == Present {
		reg, err := c.driver.Shutter(ctx)
		if err != nil {
			return state.CameraState{}, hardware(err, "reading shutter")
		}
		set.Shutter = cfg.ExposureOffset + float64(reg)*cfg.ExposureQuantum
		maxShutter := cfg.ExposureQuantum * math.Floor(1/(set.FrameRate*cfg.ExposureQuantum))
		set.Shutter = math.Min(set.Shutter, maxShutter)
	}

	polarity, err := c.polarity(ctx)
	if err != nil {
		return state.CameraState{}, err
	}
	if polarity == Present {
		if set.TriggerPolarity, err = c.driver.TriggerPolarity(ctx); err != nil {
			return state.CameraState{}, hardware(err, "reading trigger polarity")
		}
	}
	return set, nil
}
