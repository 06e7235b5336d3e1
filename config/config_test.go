package config

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.viam.com/test"

	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/dcam/sim"
)

func sampleConfig() HardwareConfig {
	conf := Defaults()
	conf.Format = dcam.FormatScalableImageSize
	conf.Mode = dcam.ModeFormat7_1
	conf.TrigSetupTime = 1e-5
	conf.ExposureOffset = 3e-6
	conf.LineTransferTime = 2.5e-5
	conf.TransmitSetupTime = 1.25e-4
	conf.DropFrames = true
	return conf
}

func TestFileRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, Write(&buf, sampleConfig()), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldStartWith, FileHeader+":\n  speed:")
	test.That(t, buf.String(), test.ShouldContainSubstring, "  format:              391\n")

	read, err := Read(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read, test.ShouldResemble, sampleConfig())
}

func TestReadOptionalDevice(t *testing.T) {
	var buf bytes.Buffer
	test.That(t, Write(&buf, sampleConfig()), test.ShouldBeNil)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")

	t.Run("dma_device_name may be omitted", func(t *testing.T) {
		read, err := Read(strings.NewReader(strings.Join(lines[:len(lines)-1], "\n")))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.DMADeviceName, test.ShouldEqual, "")
	})

	t.Run("numeric keys may not", func(t *testing.T) {
		_, err := Read(strings.NewReader(strings.Join(lines[:len(lines)-2], "\n")))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("device name", func(t *testing.T) {
		named := strings.Join(lines[:len(lines)-1], "\n") + "\n  dma_device_name: /dev/video1394/0\n"
		read, err := Read(strings.NewReader(named))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.DMADeviceName, test.ShouldEqual, "/dev/video1394/0")
	})
}

func TestValidate(t *testing.T) {
	conf := sampleConfig()
	_, err := conf.Validate("cam.conf")
	test.That(t, err, test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		mutate func(*HardwareConfig)
	}{
		{"mode of the wrong format", func(c *HardwareConfig) { c.Mode = dcam.Mode640x480Mono }},
		{"unsupported format", func(c *HardwareConfig) { c.Format = dcam.FormatVGANonCompressed + 1 }},
		{"speed", func(c *HardwareConfig) { c.Speed = 7 }},
		{"max packets", func(c *HardwareConfig) { c.MaxPackets = 0 }},
		{"bus period", func(c *HardwareConfig) { c.BusPeriod = 0 }},
		{"exposure quantum", func(c *HardwareConfig) { c.ExposureQuantum = -1 }},
		{"gain norm", func(c *HardwareConfig) { c.RedGainNorm = 0 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			bad := sampleConfig()
			tc.mutate(&bad)
			_, err := bad.Validate("cam.conf")
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, "cam.conf")
		})
	}
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("prefers format 7 and its highest mode", func(t *testing.T) {
		conf, err := Generate(ctx, sim.New())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, conf.Format, test.ShouldEqual, dcam.FormatScalableImageSize)
		test.That(t, conf.Mode, test.ShouldEqual, dcam.ModeFormat7_1)
		test.That(t, conf.BlueGainNorm, test.ShouldEqual, 96.0)
		test.That(t, conf.RedGainNorm, test.ShouldEqual, 80.0)
		_, err = conf.Validate("generated")
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("format 0 preference order", func(t *testing.T) {
		conf, err := Generate(ctx, sim.New(sim.Format0Only(dcam.Bit(3))))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, conf.Format, test.ShouldEqual, dcam.FormatVGANonCompressed)
		test.That(t, conf.Mode, test.ShouldEqual, dcam.Mode640x480Mono)
	})

	t.Run("default norms without white balance", func(t *testing.T) {
		conf, err := Generate(ctx, sim.New(sim.WithoutFeature(dcam.FeatureWhiteBalance)))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, conf.BlueGainNorm, test.ShouldEqual, Defaults().BlueGainNorm)
	})

	t.Run("resets the camera first", func(t *testing.T) {
		cam := sim.New()
		_, err := Generate(ctx, cam)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cam.Calls()[0], test.ShouldEqual, "Reset")
	})

	t.Run("driver failure", func(t *testing.T) {
		cam := sim.New()
		cam.FailOn("SupportedFormats", errFake)
		_, err := Generate(ctx, cam)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
