package camera

import (
	"context"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/state"
)

// ExternalTrigger reports whether frames are triggered by the external trigger input.
func (c *Camera) ExternalTrigger(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.externalTrigger(ctx)
}

func (c *Camera) externalTrigger(ctx context.Context) (bool, error) {
	_, avail, err := c.feature(ctx, dcam.FeatureTrigger)
	if err != nil {
		return false, err
	}
	if avail == Absent {
		return c.store.State().ExternalTrigger, featureAbsent("trigger")
	}
	if c.fromShadow(state.FieldExternalTrigger) {
		return c.store.State().ExternalTrigger, nil
	}
	on, err := c.driver.Trigger(ctx)
	if err != nil {
		return false, hardware(err, "reading trigger")
	}
	c.store.Update(func(s *state.CameraState) {
		s.ExternalTrigger = on
	})
	return on, nil
}

// SetExternalTrigger selects the external trigger input (true) or free running (false).
func (c *Camera) SetExternalTrigger(ctx context.Context, on bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.setExternalTrigger(ctx, on)
}

func (c *Camera) setExternalTrigger(ctx context.Context, on bool) error {
	_, avail, err := c.feature(ctx, dcam.FeatureTrigger)
	if err != nil {
		return err
	}
	if avail == Present {
		if err := c.driver.SetTrigger(ctx, on); err != nil {
			return hardware(err, "setting trigger")
		}
	}
	c.store.Update(func(s *state.CameraState) {
		s.ExternalTrigger = on
	})
	if avail == Absent {
		return featureAbsent("trigger")
	}
	return nil
}

// TriggerPolarity reports whether the external trigger is active high.
func (c *Camera) TriggerPolarity(ctx context.Context) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	return c.triggerPolarity(ctx)
}

func (c *Camera) triggerPolarity(ctx context.Context) (bool, error) {
	avail, err := c.polarity(ctx)
	if err != nil {
		return false, err
	}
	if avail == Absent {
		return c.store.State().TriggerPolarity, featureAbsent("trigger polarity")
	}
	if c.fromShadow(state.FieldTriggerPolarity) {
		return c.store.State().TriggerPolarity, nil
	}
	high, err := c.driver.TriggerPolarity(ctx)
	if err != nil {
		return false, hardware(err, "reading trigger polarity")
	}
	c.store.Update(func(s *state.CameraState) {
		s.TriggerPolarity = high
	})
	return high, nil
}

// SetTriggerPolarity selects an active high (true) or active low external trigger.
func (c *Camera) SetTriggerPolarity(ctx context.Context, high bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.setTriggerPolarity(ctx, high)
}

func (c *Camera) setTriggerPolarity(ctx context.Context, high bool) error {
	avail, err := c.polarity(ctx)
	if err != nil {
		return err
	}
	if avail == Present {
		if err := c.driver.SetTriggerPolarity(ctx, high); err != nil {
			return hardware(err, "setting trigger polarity")
		}
	}
	c.store.Update(func(s *state.CameraState) {
		s.TriggerPolarity = high
	})
	if avail == Absent {
		return featureAbsent("trigger polarity")
	}
	return nil
}
