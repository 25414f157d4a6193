package device

import (
	"lightctl/internal/logger"
	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

// Simulation is the outcome of replaying a command stream offline.
type Simulation struct {
	Completed   map[int]uint64 // Completed - channel → completion time in ms.
	Diagnostics []string       // Diagnostics - WARN lines the device would have sent.
	Edges       []Edge
	EndedAt     uint64
	Finished    bool // Finished - false when limitMs was reached first.
}

// Simulate feeds lines to a firmware of capability c as if they arrived
// before Bye at time 0, then ticks a manual clock every stepMs until every
// channel completed or limitMs passed.
func Simulate(log logger.Logger, c pattern.Capability, lines []string, stepMs, limitMs uint64) Simulation {
	if stepMs == 0 {
		stepMs = 1
	}
	clock := &ManualClock{}
	rec := NewRecorder(clock)
	sim := Simulation{Completed: make(map[int]uint64)}

	fw := NewFirmware(log, c, Options{}, rec, func(e Event) {
		if e.Kind == EventComplete {
			sim.Completed[e.Channel] = e.At
		}
	})

	for _, line := range lines {
		for _, reply := range fw.Handle(line, 0) {
			if wire.IsDiagnostic(reply) {
				sim.Diagnostics = append(sim.Diagnostics, reply)
			}
		}
	}
	fw.Handle(wire.Bye, 0)

	for now := uint64(0); ; now += stepMs {
		clock.Set(now)
		sim.EndedAt = now
		if !fw.Tick(now) {
			sim.Finished = true
			break
		}
		if now >= limitMs {
			break
		}
	}
	sim.Edges = rec.Edges()
	return sim
}
