package wire

import (
	"fmt"
	"strings"
)

// Describe renders a human readable summary of a pattern command, used for
// command logs. Lines that do not parse are described as such.
func Describe(line string) string {
	cmd, err := ParsePattern(line)
	if err != nil {
		return "unparsed command"
	}

	parts := make([]string, 0, 6)
	if cmd.IsWait() {
		parts = append(parts, "Wait pattern")
	} else {
		parts = append(parts, fmt.Sprintf("Pattern #%d", cmd.ID))
	}
	parts = append(parts, fmt.Sprintf("Channel %d", cmd.Channel))

	status := make([]string, len(cmd.Status))
	for i, s := range cmd.Status {
		status[i] = formatStatus(s)
	}
	parts = append(parts, "Status: "+strings.Join(status, " → "))

	times := make([]string, len(cmd.TimeMs))
	for i, ms := range cmd.TimeMs {
		times[i] = HumanMs(uint64(ms))
	}
	parts = append(parts, "Time: "+strings.Join(times, " → "))

	if cmd.Repeats == 1 {
		parts = append(parts, "1 cycle")
	} else {
		parts = append(parts, fmt.Sprintf("%d cycles", cmd.Repeats))
	}

	pulses := make([]string, 0, len(cmd.Pulse))
	pulsed := false
	for _, p := range cmd.Pulse {
		if p.PeriodMs == 0 {
			pulses = append(pulses, "No pulse")
			continue
		}
		pulsed = true
		hz := 1000.0 / float64(p.PeriodMs)
		duty := float64(p.WidthMs) / float64(p.PeriodMs) * 100
		pulses = append(pulses, fmt.Sprintf("%.2fHz DC=%.1f%%", hz, duty))
	}
	if pulsed {
		parts = append(parts, "Pulse: "+strings.Join(pulses, " → "))
	}

	return strings.Join(parts, ", ")
}

// HumanMs formats a millisecond count with the largest fitting unit.
func HumanMs(ms uint64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	case ms < 3600000:
		return fmt.Sprintf("%.1fmin", float64(ms)/60000)
	default:
		return fmt.Sprintf("%.1fhr", float64(ms)/3600000)
	}
}
