package state

import (
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"go.viam.com/iidc/internal/record"
	"go.viam.com/iidc/pixel"
)

// FileHeader is the first line of a camera state file.
const FileHeader = "Camera settings"

var codingType = reflect.TypeOf(pixel.Invalid)

// codingHook accepts a pixel coding either by name or by number.
func codingHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != codingType || from.Kind() != reflect.String {
		return data, nil
	}
	text := strings.TrimSpace(data.(string))
	if n, err := strconv.Atoi(text); err == nil {
		return pixel.Coding(n), nil
	}
	return pixel.ParseCoding(text)
}

// Read decodes a state file. All fields must be present; on any error the returned state
// is the zero value.
func Read(r io.Reader) (CameraState, error) {
	var s CameraState
	if err := record.Decode(r, &s, nil, mapstructure.DecodeHookFuncType(codingHook)); err != nil {
		return CameraState{}, errors.Wrap(err, "reading camera state")
	}
	return s, nil
}

// Write encodes s in persistence order.
func Write(w io.Writer, s CameraState) error {
	values := []interface{}{
		s.NumFrameBuffers,
		s.BlueGain,
		s.RedGain,
		s.Left,
		s.Top,
		s.Width,
		s.Height,
		s.Coding.String(),
		s.FrameRate,
		s.Shutter,
		s.ExternalTrigger,
		s.TriggerPolarity,
		s.SingleShot,
		s.Running,
		s.Shadow,
	}
	fields := make([]record.Field, len(values))
	for i, value := range values {
		fields[i] = record.Field{Key: Field(i).Key(), Value: value}
	}
	return record.Write(w, FileHeader, fields)
}

// Apply sets one field of target from its text form, e.g. Apply(&s, "shutter", "0.01").
// target is left unchanged on error.
func Apply(target *CameraState, key, value string) error {
	field, ok := FieldForKey(key)
	if !ok {
		return errors.Errorf("unknown camera state field %q", key)
	}
	next := *target
	s := &next
	var err error
	switch field {
	case FieldNumFrameBuffers:
		s.NumFrameBuffers, err = cast.ToIntE(value)
	case FieldBlueGain:
		s.BlueGain, err = cast.ToFloat64E(value)
	case FieldRedGain:
		s.RedGain, err = cast.ToFloat64E(value)
	case FieldLeft:
		s.Left, err = cast.ToIntE(value)
	case FieldTop:
		s.Top, err = cast.ToIntE(value)
	case FieldWidth:
		s.Width, err = cast.ToIntE(value)
	case FieldHeight:
		s.Height, err = cast.ToIntE(value)
	case FieldCoding:
		var coding interface{}
		coding, err = codingHook(reflect.TypeOf(value), codingType, value)
		if err == nil {
			s.Coding = coding.(pixel.Coding)
		}
	case FieldFrameRate:
		s.FrameRate, err = cast.ToFloat64E(value)
	case FieldShutter:
		s.Shutter, err = cast.ToFloat64E(value)
	case FieldExternalTrigger:
		s.ExternalTrigger, err = cast.ToBoolE(value)
	case FieldTriggerPolarity:
		s.TriggerPolarity, err = cast.ToBoolE(value)
	case FieldSingleShot:
		s.SingleShot, err = cast.ToBoolE(value)
	case FieldRunning:
		s.Running, err = cast.ToBoolE(value)
	case FieldShadow:
		s.Shadow, err = cast.ToBoolE(value)
	}
	if err != nil {
		return errors.Wrapf(err, "setting %s", key)
	}
	*target = next
	return nil
}
