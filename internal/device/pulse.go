package device

import "lightctl/internal/pattern"

// pulseLevel is the output level inside an element dwell that started at
// dwellStart. A coarse OFF element is LOW throughout. An ON element without a
// pulse period holds HIGH; with one it is HIGH for the first PulseWidthMs of
// every PulsePeriodMs, phase-locked to the dwell start. The element boundary
// itself is owned by the scheduler, so a final pulse is cut short at D.
func pulseLevel(e pattern.Element, dwellStart, now uint64) bool {
	if !e.Status {
		return false
	}
	if e.PulsePeriodMs == 0 || e.PulseWidthMs == 0 {
		return true
	}
	phase := (now - dwellStart) % uint64(e.PulsePeriodMs)
	return phase < uint64(e.PulseWidthMs)
}
