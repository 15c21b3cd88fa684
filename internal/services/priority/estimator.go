package priority

import "math"

// LimitWithBuffer turns simulated usage into a unit limit: usage plus buffer,
// clamped to [DefaultComputeUnits, MaxComputeUnits]. A buffer <= 0 uses ComputeUnitBuffer.
func LimitWithBuffer(unitsConsumed uint64, buffer float64) uint32 {
	if buffer <= 0 {
		buffer = ComputeUnitBuffer
	}
	if unitsConsumed == 0 {
		return DefaultComputeUnits
	}
	bufferBps := uint64(math.Round(buffer * 10_000))
	limit := unitsConsumed + (unitsConsumed*bufferBps+9_999)/10_000
	switch {
	case limit > MaxComputeUnits:
		return MaxComputeUnits
	case limit < DefaultComputeUnits:
		return DefaultComputeUnits
	}
	return uint32(limit)
}

// NeedsEstimate reports whether the limit must come from simulation.
func NeedsEstimate(unitLimit uint32) bool {
	return unitLimit == 0
}
