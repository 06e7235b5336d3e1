package camera

import (
	"context"

	"go.viam.com/iidc/dcam"
)

// Availability is the result of a feature presence query.
type Availability int

// Availability values.
const (
	Absent Availability = iota
	Present
)

func (a Availability) String() string {
	if a == Present {
		return "present"
	}
	return "absent"
}

// feature queries the presence of an optional feature once for the calling operation.
func (c *Camera) feature(ctx context.Context, f dcam.Feature) (dcam.FeatureInfo, Availability, error) {
	info, err := c.driver.Feature(ctx, f)
	if err != nil {
		return dcam.FeatureInfo{}, Absent, hardware(err, "querying "+f.String())
	}
	if !info.Present {
		return info, Absent, nil
	}
	return info, Present, nil
}

// polarity reports whether the trigger exists and has a polarity control.
func (c *Camera) polarity(ctx context.Context) (Availability, error) {
	info, avail, err := c.feature(ctx, dcam.FeatureTrigger)
	if err != nil || avail == Absent || !info.HasPolarity {
		return Absent, err
	}
	return Present, nil
}
