package packet

import "go.viam.com/iidc/dcam"

// fixedRates lists the Format 0 frame rates in index order.
var fixedRates = []float64{1.875, 3.75, 7.5, 15, 30, 60, 120, 240}

// RateFromIndex returns the frame rate of a Format 0 rate index, or -1 if the index is unknown.
func RateFromIndex(index dcam.FrameRate) float64 {
	i := int(index) - int(dcam.FrameRate1_875)
	if i < 0 || i >= len(fixedRates) {
		return -1
	}
	return fixedRates[i]
}

// IndexFromRate returns the Format 0 rate index nearest to rate. Nearness is judged on a
// log scale: the boundary between two rates is their geometric mean.
func IndexFromRate(rate float64) dcam.FrameRate {
	square := rate * rate
	for i, fixed := range fixedRates[:len(fixedRates)-1] {
		if square < 2*fixed*fixed {
			return dcam.FrameRate1_875 + dcam.FrameRate(i)
		}
	}
	return dcam.FrameRate240
}

// FixedPackets returns the number of packets per frame of a Format 0 frame rate: 1920 at
// 3.75 fps, halving with each doubling of the rate.
func FixedPackets(rate float64) int {
	return 3840 >> uint(IndexFromRate(rate)-dcam.FrameRate1_875)
}

// FrameRateBits returns the fastest rate advertised by a Format 0 frame rate inquiry
// bitfield, or 0 if none is.
func FrameRateBits(bits uint32) float64 {
	for i := len(fixedRates) - 1; i >= 0; i-- {
		if bits&dcam.Bit(i) != 0 {
			return fixedRates[i]
		}
	}
	return 0
}
