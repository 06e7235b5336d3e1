// Package packet converts between frame rate, packets per frame and packet size for
// isochronous IIDC transmission.
//
// In the scalable (Format 7) format the frame rate is entirely a function of the number of
// packets per frame, one packet per bus period. The conversions are deliberately not
// exact inverses: rate is quantized by the integer packet count and again by the packet
// size quantum, so callers must read back the achieved rate after setting one.
package packet

import (
	"math"

	"github.com/samber/lo"
)

// Limits are the per-camera bus timing limits.
type Limits struct {
	// BusPeriod is the time in seconds taken by one packet.
	BusPeriod float64
	// MaxPackets is the largest legal number of packets per frame.
	MaxPackets int
}

// Quantum is the device's packet size granularity in bytes.
type Quantum struct {
	Unit int
	Max  int
}

// minUnitBytes is the smallest packet size quantum, one quadlet.
const minUnitBytes = 4

func (q Quantum) normalized() Quantum {
	if q.Unit < minUnitBytes {
		q.Unit = minUnitBytes
	}
	if q.Max < q.Unit {
		q.Max = math.MaxInt32
	}
	return q
}

func frameBits(width, height, depth int) int64 {
	return int64(width) * int64(height) * int64(depth)
}

// PacketSize returns the bytes per packet needed to carry a width by height frame of
// `depth` bits per pixel in numPackets packets. numPackets is clamped to
// [1, limits.MaxPackets] first, and the result is rounded up to the quantum.
func PacketSize(numPackets, width, height, depth int, limits Limits, quantum Quantum) int {
	n := lo.Clamp(numPackets, 1, limits.MaxPackets)
	size := ceilDiv(frameBits(width, height, depth), 8*int64(n))

	q := quantum.normalized()
	unit := int64(q.Unit)
	size = ceilDiv(size, unit) * unit
	return int(lo.Clamp(size, unit, int64(q.Max)))
}

// NumPackets returns the number of packets of packetSize bytes needed for a frame, at least
// one and at most limits.MaxPackets. A non-positive packet size yields MaxPackets.
func NumPackets(packetSize, width, height, depth int, limits Limits) int {
	if packetSize <= 0 {
		return limits.MaxPackets
	}
	n := ceilDiv(frameBits(width, height, depth), 8*int64(packetSize))
	return int(lo.Clamp(n, 1, int64(limits.MaxPackets)))
}

// FromFrameRate returns round(1/(BusPeriod*rate)) clamped to [1, MaxPackets]. A
// non-positive rate yields MaxPackets, the slowest legal rate.
func FromFrameRate(rate float64, limits Limits) int {
	if rate <= 0 || limits.BusPeriod <= 0 {
		return limits.MaxPackets
	}
	n := math.Round(1 / (limits.BusPeriod * rate))
	if n > float64(limits.MaxPackets) {
		return limits.MaxPackets
	}
	return lo.Clamp(int(n), 1, limits.MaxPackets)
}

// ToFrameRate returns the frame rate achieved with numPackets packets per frame.
func ToFrameRate(numPackets int, limits Limits) float64 {
	n := lo.Clamp(numPackets, 1, limits.MaxPackets)
	return 1 / (limits.BusPeriod * float64(n))
}

func ceilDiv(num, den int64) int64 {
	if den <= 0 {
		return 0
	}
	return (num + den - 1) / den
}
