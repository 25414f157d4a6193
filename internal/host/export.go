package host

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"lightctl/internal/pattern"
	"lightctl/internal/wire"
)

type planDoc struct {
	CreatedAt   time.Time    `yaml:"created_at"`
	Window      int          `yaml:"window"`
	CalibFactor float64      `yaml:"calib_factor"`
	Requirement reqDoc       `yaml:"requirement"`
	Report      reportDoc    `yaml:"report"`
	Channels    []channelDoc `yaml:"channels"`
}

type reqDoc struct {
	PatternLength      int `yaml:"pattern_length"`
	PatternsPerChannel int `yaml:"patterns_per_channel"`
	Channels           int `yaml:"channels"`
}

type reportDoc struct {
	Counts  map[int]int `yaml:"counts"`
	Optimal int         `yaml:"optimal"`
	Savings float64     `yaml:"savings_percent"`
}

type channelDoc struct {
	Channel    int          `yaml:"channel"`
	DurationMs uint64       `yaml:"duration_ms"`
	Wait       *patternDoc  `yaml:"wait,omitempty"`
	Patterns   []patternDoc `yaml:"patterns"`
	Commands   []string     `yaml:"commands"`
}

type patternDoc struct {
	ID       int          `yaml:"id"`
	Repeats  uint32       `yaml:"repeats"`
	Elements []elementDoc `yaml:"elements"`
}

type elementDoc struct {
	Status bool   `yaml:"status"`
	Ms     uint32 `yaml:"ms"`
	Period uint32 `yaml:"period,omitempty"`
	Width  uint32 `yaml:"width,omitempty"`
}

func toPatternDoc(p pattern.Pattern) patternDoc {
	d := patternDoc{ID: p.ID, Repeats: p.Repeats}
	for _, e := range p.Elements[:p.EffectiveLength] {
		d.Elements = append(d.Elements, elementDoc{Status: e.Status, Ms: e.DurationMs, Period: e.PulsePeriodMs, Width: e.PulseWidthMs})
	}
	return d
}

// WritePlanYAML exports the plan for inspection by other tools.
func WritePlanYAML(w io.Writer, plan *Plan) error {
	doc := planDoc{
		CreatedAt:   plan.CreatedAt,
		Window:      plan.Window,
		CalibFactor: plan.CalibFactor,
		Requirement: reqDoc{
			PatternLength:      plan.Requirement.MaxEffectiveLength,
			PatternsPerChannel: plan.Requirement.MaxPatternsPerChannel,
			Channels:           plan.Requirement.MaxChannel,
		},
		Report: reportDoc{
			Counts:  plan.Report.Counts,
			Optimal: plan.Report.Optimal,
			Savings: plan.Report.Savings(),
		},
	}
	for _, ch := range plan.Channels {
		cd := channelDoc{Channel: ch.Channel, DurationMs: ch.DurationMs, Commands: ch.Commands}
		if ch.Wait != nil {
			wd := toPatternDoc(*ch.Wait)
			cd.Wait = &wd
		}
		for _, p := range ch.Patterns {
			cd.Patterns = append(cd.Patterns, toPatternDoc(p))
		}
		doc.Channels = append(doc.Channels, cd)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	return enc.Close()
}

// WriteCommandLog writes every command preceded by a human readable comment.
func WriteCommandLog(w io.Writer, plan *Plan) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# ========================================")
	fmt.Fprintln(bw, "# Light Controller Command Log")
	fmt.Fprintln(bw, "# ========================================")
	fmt.Fprintf(bw, "# Created: %s\n", plan.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "# Calibration factor: %.5f\n", plan.CalibFactor)
	fmt.Fprintf(bw, "# Pattern length: %d\n", plan.Window)
	fmt.Fprintf(bw, "# Channels: %d\n", len(plan.Channels))
	fmt.Fprintf(bw, "# Total commands: %d\n", len(plan.Commands()))

	for _, ch := range plan.Channels {
		fmt.Fprintf(bw, "\n# ---- Channel %d (%s) ----\n", ch.Channel, wire.HumanMs(ch.DurationMs))
		for _, line := range ch.Commands {
			fmt.Fprintf(bw, "# %s\n%s\n", wire.Describe(line), line)
		}
	}
	return bw.Flush()
}
