package camera

import (
	"context"

	"go.viam.com/iidc/state"
)

// Running reports whether the camera is transmitting frames. An armed single shot counts
// as running until the camera clears its one-shot register, so the register is read even
// under shadow authority.
func (c *Camera) Running(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.running(ctx)
}

func (c *Camera) running(ctx context.Context) (bool, error) {
	if c.store.Shadow() {
		if err := c.peekOneShot(ctx); err != nil {
			return false, err
		}
		return c.store.State().Running, nil
	}
	running, singleShot, known, err := c.transmissionStatus(ctx)
	if err != nil {
		return false, err
	}
	c.store.Update(func(s *state.CameraState) {
		s.Running = running
		if known {
			s.SingleShot = singleShot
		}
	})
	return running, nil
}

// peekOneShot collapses a pending single shot to stopped once the camera has cleared the
// one-shot register.
func (c *Camera) peekOneShot(ctx context.Context) error {
	s := c.store.State()
	if !s.Running || !s.SingleShot {
		return nil
	}
	armed, err := c.driver.OneShot(ctx)
	if err != nil {
		return hardware(err, "reading one-shot")
	}
	if !armed {
		c.store.Update(func(s *state.CameraState) {
			s.Running = false
		})
	}
	return nil
}

// transmissionStatus reads the transmission and one-shot registers. known is false when
// the camera is stopped, since a stopped camera does not reveal its acquisition mode.
func (c *Camera) transmissionStatus(ctx context.Context) (running, singleShot, known bool, err error) {
	transmitting, err := c.driver.Transmitting(ctx)
	if err != nil {
		return false, false, false, hardware(err, "reading transmission status")
	}
	if transmitting {
		return true, false, true, nil
	}
	armed, err := c.driver.OneShot(ctx)
	if err != nil {
		return false, false, false, hardware(err, "reading one-shot")
	}
	if armed {
		return true, true, true, nil
	}
	return false, false, false, nil
}

// SetRunning starts (true) or stops the camera. In single-shot mode starting arms the
// one-shot register, even if a shot is believed to be pending.
func (c *Camera) SetRunning(ctx context.Context, run bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.setRunning(ctx, run)
}

func (c *Camera) setRunning(ctx context.Context, run bool) error {
	s := c.store.State()
	if s.Shadow {
		if err := c.setRunningFromShadow(ctx, s, run); err != nil {
			return err
		}
	} else if err := c.setRunningDirect(ctx, s, run); err != nil {
		return err
	}
	c.store.Update(func(s *state.CameraState) {
		s.Running = run
	})
	return nil
}

func (c *Camera) setRunningFromShadow(ctx context.Context, s state.CameraState, run bool) error {
	switch {
	case s.SingleShot && s.Running && !run:
		// Stop even if the shot has already been taken.
		return hardware(c.driver.SetOneShot(ctx, false), "clearing one-shot")
	case s.SingleShot && run:
		return hardware(c.driver.SetOneShot(ctx, true), "setting one-shot")
	case !s.SingleShot && s.Running && !run:
		return hardware(c.driver.StopTransmission(ctx), "stopping transmission")
	case !s.SingleShot && !s.Running && run:
		return hardware(c.driver.StartTransmission(ctx), "starting transmission")
	}
	return nil
}

func (c *Camera) setRunningDirect(ctx context.Context, s state.CameraState, run bool) error {
	transmitting, err := c.driver.Transmitting(ctx)
	if err != nil {
		return hardware(err, "reading transmission status")
	}
	if transmitting {
		c.store.Update(func(s *state.CameraState) {
			s.SingleShot = false
		})
		if !run {
			return hardware(c.driver.StopTransmission(ctx), "stopping transmission")
		}
		return nil
	}
	armed, err := c.driver.OneShot(ctx)
	if err != nil {
		return hardware(err, "reading one-shot")
	}
	switch {
	case armed:
		c.store.Update(func(s *state.CameraState) {
			s.SingleShot = true
		})
		if !run {
			return hardware(c.driver.SetOneShot(ctx, false), "clearing one-shot")
		}
	case run && s.SingleShot:
		return hardware(c.driver.SetOneShot(ctx, true), "setting one-shot")
	case run:
		return hardware(c.driver.StartTransmission(ctx), "starting transmission")
	}
	return nil
}

// SingleShot reports whether the camera takes one frame per start rather than running
// continuously.
func (c *Camera) SingleShot(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.singleShot(ctx)
}

func (c *Camera) singleShot(ctx context.Context) (bool, error) {
	if c.store.Shadow() {
		if err := c.peekOneShot(ctx); err != nil {
			return false, err
		}
		return c.store.State().SingleShot, nil
	}
	running, singleShot, known, err := c.transmissionStatus(ctx)
	if err != nil {
		return false, err
	}
	c.store.Update(func(s *state.CameraState) {
		s.Running = running
		if known {
			s.SingleShot = singleShot
		}
	})
	return c.store.State().SingleShot, nil
}

// SetSingleShot selects single-shot (true) or continuous acquisition. Switching a running
// camera to single shot stops continuous transmission and arms one shot at once. Switching
// a running single-shot camera to continuous first asks the camera whether the shot is
// still pending: only then is continuous transmission started, otherwise the camera is
// taken to have stopped. The shot may complete between the query and the switch.
func (c *Camera) SetSingleShot(ctx context.Context, singleShot bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.setSingleShot(ctx, singleShot)
}

func (c *Camera) setSingleShot(ctx context.Context, singleShot bool) error {
	s := c.store.State()
	if s.Shadow {
		if s.Running {
			if err := c.switchAcquisition(ctx, s.SingleShot, singleShot); err != nil {
				return err
			}
		}
	} else {
		transmitting, err := c.driver.Transmitting(ctx)
		if err != nil {
			return hardware(err, "reading transmission status")
		}
		switch {
		case transmitting && singleShot:
			if err := c.switchAcquisition(ctx, false, true); err != nil {
				return err
			}
		case !transmitting && !singleShot:
			if err := c.switchAcquisition(ctx, true, false); err != nil {
				return err
			}
		}
	}
	c.store.Update(func(s *state.CameraState) {
		s.SingleShot = singleShot
	})
	return nil
}

// switchAcquisition changes the acquisition mode of a camera believed to be running.
func (c *Camera) switchAcquisition(ctx context.Context, from, to bool) error {
	switch {
	case !from && to:
		if err := c.driver.StopTransmission(ctx); err != nil {
			return hardware(err, "stopping transmission")
		}
		if err := c.driver.SetOneShot(ctx, true); err != nil {
			return hardware(err, "setting one-shot")
		}
		c.store.Update(func(s *state.CameraState) {
			s.Running = true
		})
	case from && !to:
		armed, err := c.driver.OneShot(ctx)
		if err != nil {
			return hardware(err, "reading one-shot")
		}
		if !armed {
			// The shot has been taken.
			c.store.Update(func(s *state.CameraState) {
				s.Running = false
			})
			return nil
		}
		if err := c.driver.SetOneShot(ctx, false); err != nil {
			return hardware(err, "clearing one-shot")
		}
		if err := c.driver.StartTransmission(ctx); err != nil {
			return hardware(err, "starting transmission")
		}
		c.store.Update(func(s *state.CameraState) {
			s.Running = true
		})
	}
	return nil
}
