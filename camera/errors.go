package camera

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
)

var (
	// ErrNullHandle is returned by every operation on a camera that is closed or was left
	// disconnected by a failed reconnect.
	ErrNullHandle = errors.New("camera is not connected")
	// ErrUnsupportedFormat is returned when the camera's format and mode are neither a fixed
	// VGA (Format 0) mode nor a scalable (Format 7) mode, or when an operation is not
	// possible in the current format.
	ErrUnsupportedFormat = errors.New("unsupported camera format")
	// ErrFeatureAbsent is returned when an optional feature is not present. The requested
	// value of a set is still recorded in the shadow.
	ErrFeatureAbsent = errors.New("camera feature not present")
	// ErrHardwareCallFailed wraps every failed driver or transport call.
	ErrHardwareCallFailed = errors.New("camera hardware call failed")
	// ErrConfigurationUnavailable is returned when no hardware configuration could be loaded
	// or synthesized.
	ErrConfigurationUnavailable = config.ErrUnavailable
)

// hardwareError is a failed driver call. It matches both ErrHardwareCallFailed and the
// driver's own error with errors.Is.
type hardwareError struct {
	op  string
	err error
}

func (e *hardwareError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *hardwareError) Unwrap() []error {
	return []error{ErrHardwareCallFailed, e.err}
}

func hardware(err error, op string) error {
	if err == nil {
		return nil
	}
	return &hardwareError{op: op, err: err}
}

func featureAbsent(feature string) error {
	return errors.Wrap(ErrFeatureAbsent, feature)
}

func unsupportedFormat(format dcam.Format) error {
	return errors.Wrapf(ErrUnsupportedFormat, "%v", format)
}
