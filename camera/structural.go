package camera

import (
	"context"

	"go.viam.com/iidc/config"
	"go.viam.com/iidc/dcam"
	"go.viam.com/iidc/packet"
	"go.viam.com/iidc/pixel"
	"go.viam.com/iidc/state"
)

// RequiresReconnect reports whether moving from old to next invalidates the transport's
// buffer layout, so that the camera must be stopped, drained, disconnected and connected
// again. That is the case when the buffer count or frame size changes, when the pixel
// coding changes bit depth, or, in Format 7, when the new frame rate needs a different
// packet size. Offsets, exposure, white balance, triggering and run state never do.
func RequiresReconnect(old, next state.CameraState, cfg config.HardwareConfig, quantum packet.Quantum) bool {
	if old.NumFrameBuffers != next.NumFrameBuffers || old.Width != next.Width || old.Height != next.Height {
		return true
	}
	if old.Coding != next.Coding {
		oldDepth, oldErr := pixel.Depth(old.Coding)
		nextDepth, nextErr := pixel.Depth(next.Coding)
		if oldErr != nil || nextErr != nil || oldDepth != nextDepth {
			return true
		}
	}
	if cfg.Format == dcam.FormatScalableImageSize && old.FrameRate != next.FrameRate {
		return packetSize(old, cfg, quantum) != packetSize(next, cfg, quantum)
	}
	return false
}

// packetSize returns the Format 7 packet size that carries s at its frame rate, or 0 if
// the coding is invalid.
func packetSize(s state.CameraState, cfg config.HardwareConfig, quantum packet.Quantum) int {
	depth, err := pixel.Depth(s.Coding)
	if err != nil {
		return 0
	}
	limits := cfg.Limits()
	return packet.PacketSize(packet.FromFrameRate(s.FrameRate, limits), s.Width, s.Height, depth, limits, quantum)
}

// packetQuantum returns the Format 7 packet size quantum. It is zero in Format 0.
func (c *Camera) packetQuantum(ctx context.Context, cfg config.HardwareConfig) (packet.Quantum, error) {
	if cfg.Format != dcam.FormatScalableImageSize {
		return packet.Quantum{}, nil
	}
	unit, maxBytes, err := c.driver.PacketParameters(ctx, cfg.Mode)
	if err != nil {
		return packet.Quantum{}, hardware(err, "querying packet parameters")
	}
	return packet.Quantum{Unit: unit, Max: maxBytes}, nil
}
