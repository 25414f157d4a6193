package host

import (
	"lightctl/internal/device"
	"lightctl/internal/logger"
	"lightctl/internal/pattern"
)

// ChannelPreview compares the planned duration of a channel with what the
// simulated device did.
type ChannelPreview struct {
	Channel     int
	PlannedMs   uint64
	SimulatedMs uint64
	Completed   bool
}

// PreviewResult is the outcome of a dry run against a simulated device.
type PreviewResult struct {
	Channels    []ChannelPreview
	Diagnostics []string
	Finished    bool
}

// MinimalCapability is the smallest device that can hold the plan.
func (p *Plan) MinimalCapability() pattern.Capability {
	return pattern.Capability{
		MaxElementsPerPattern: max(p.Requirement.MaxEffectiveLength, 1),
		MaxPatternsPerChannel: max(p.Requirement.MaxPatternsPerChannel, 1),
		MaxChannels:           max(p.Requirement.MaxChannel, 1),
	}
}

// Preview replays the plan on a simulated device of capability c, ticking
// every stepMs. A nil c simulates the minimal device.
func Preview(log logger.Logger, plan *Plan, c *pattern.Capability, stepMs uint64) PreviewResult {
	capability := plan.MinimalCapability()
	if c != nil {
		capability = *c
	}
	if stepMs == 0 {
		stepMs = 1
	}

	var longest uint64
	for _, ch := range plan.Channels {
		longest = max(longest, ch.DurationMs)
	}

	sim := device.Simulate(log, capability, plan.Commands(), stepMs, longest+stepMs)
	res := PreviewResult{Diagnostics: sim.Diagnostics, Finished: sim.Finished}
	for _, ch := range plan.Channels {
		at, ok := sim.Completed[ch.Channel]
		res.Channels = append(res.Channels, ChannelPreview{
			Channel:     ch.Channel,
			PlannedMs:   ch.DurationMs,
			SimulatedMs: at,
			Completed:   ok,
		})
	}
	return res
}
