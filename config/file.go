package config

import (
	"io"

	"github.com/pkg/errors"

	"go.viam.com/iidc/internal/record"
)

// FileHeader is the first line of a hardware configuration file.
const FileHeader = "IIDC DCAM hardware configuration"

// Read decodes a hardware configuration file. Every numeric key must be present;
// dma_device_name may be omitted.
func Read(r io.Reader) (HardwareConfig, error) {
	var conf HardwareConfig
	if err := record.Decode(r, &conf, map[string]interface{}{"dma_device_name": ""}); err != nil {
		return HardwareConfig{}, errors.Wrap(err, "reading hardware configuration")
	}
	return conf, nil
}

// Write encodes conf in the documented key order.
func Write(w io.Writer, conf HardwareConfig) error {
	return record.Write(w, FileHeader, []record.Field{
		{Key: "speed", Value: int(conf.Speed)},
		{Key: "format", Value: uint32(conf.Format)},
		{Key: "mode", Value: uint32(conf.Mode)},
		{Key: "max_packets", Value: conf.MaxPackets},
		{Key: "min_pixels", Value: conf.MinPixels},
		{Key: "bus_period", Value: conf.BusPeriod},
		{Key: "blue_gain_norm", Value: conf.BlueGainNorm},
		{Key: "red_gain_norm", Value: conf.RedGainNorm},
		{Key: "trig_setup_time", Value: conf.TrigSetupTime},
		{Key: "exposure_quantum", Value: conf.ExposureQuantum},
		{Key: "exposure_offset", Value: conf.ExposureOffset},
		{Key: "line_transfer_time", Value: conf.LineTransferTime},
		{Key: "transmit_setup_time", Value: conf.TransmitSetupTime},
		{Key: "drop_frames", Value: conf.DropFrames},
		{Key: "dma_device_name", Value: conf.DMADeviceName},
	})
}
