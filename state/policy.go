package state

import "fmt"

// Field names one CameraState field.
type Field int

// CameraState fields, in persistence order.
const (
	FieldNumFrameBuffers Field = iota
	FieldBlueGain
	FieldRedGain
	FieldLeft
	FieldTop
	FieldWidth
	FieldHeight
	FieldCoding
	FieldFrameRate
	FieldShutter
	FieldExternalTrigger
	FieldTriggerPolarity
	FieldSingleShot
	FieldRunning
	FieldShadow
)

var fieldKeys = []string{
	"num_frame_buffers",
	"blue_gain",
	"red_gain",
	"left",
	"top",
	"width",
	"height",
	"coding",
	"frame_rate",
	"shutter",
	"external_trigger",
	"trigger_polarity",
	"single_shot",
	"running",
	"shadow",
}

// Key returns the persistence key of the field.
func (f Field) Key() string {
	if f < 0 || int(f) >= len(fieldKeys) {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldKeys[f]
}

func (f Field) String() string {
	return f.Key()
}

// FieldForKey looks up a field by persistence key.
func FieldForKey(key string) (Field, bool) {
	for i, k := range fieldKeys {
		if k == key {
			return Field(i), true
		}
	}
	return 0, false
}

// ReadPolicy decides where a getter reads a field from.
type ReadPolicy int

const (
	// ShadowWhenAuthoritative reads the shadow under shadow authority and the hardware
	// otherwise, writing the hardware value back into the shadow.
	ShadowWhenAuthoritative ReadPolicy = iota
	// ShadowOnly fields have no readable register and always come from the shadow.
	ShadowOnly
	// PeekOneShot behaves like ShadowWhenAuthoritative but, under shadow authority, still
	// reads the one-shot register while a single shot is armed, because the camera clears
	// it by itself.
	PeekOneShot
)

func (p ReadPolicy) String() string {
	switch p {
	case ShadowWhenAuthoritative:
		return "shadow when authoritative"
	case ShadowOnly:
		return "shadow only"
	case PeekOneShot:
		return "peek one-shot"
	}
	return fmt.Sprintf("ReadPolicy(%d)", int(p))
}

// readPolicies lists every field that does not use ShadowWhenAuthoritative.
var readPolicies = map[Field]ReadPolicy{
	FieldNumFrameBuffers: ShadowOnly,
	FieldShadow:          ShadowOnly,
	FieldSingleShot:      PeekOneShot,
	FieldRunning:         PeekOneShot,
}

// PolicyFor returns the read policy of a field.
func PolicyFor(f Field) ReadPolicy {
	if policy, ok := readPolicies[f]; ok {
		return policy
	}
	return ShadowWhenAuthoritative
}

// FromShadow reports whether a read of f under the given authority may be served from the
// shadow without any hardware access.
func FromShadow(f Field, shadowAuthority bool) bool {
	switch PolicyFor(f) {
	case ShadowOnly:
		return true
	case PeekOneShot:
		return false
	default:
		return shadowAuthority
	}
}
