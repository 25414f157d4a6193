// Package loader reads channel timelines from YAML files. It only maps a
// file onto host inputs; all timing logic lives in the host package.
package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"lightctl/internal/host"
	"lightctl/internal/pattern"
)

var ErrInvalidTimeline = errors.New("invalid timeline")

// Level accepts true/false, on/off or 1/0.
type Level bool

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "1", "true", "on", "high":
		*l = true
	case "0", "false", "off", "low":
		*l = false
	default:
		return fmt.Errorf("line %d: %w: level %q", node.Line, ErrInvalidTimeline, node.Value)
	}
	return nil
}

// Step is one element, or a repeated group of steps when Steps is set.
type Step struct {
	Status Level  `yaml:"status"`
	Ms     uint32 `yaml:"ms"`
	Period uint32 `yaml:"period"`
	Width  uint32 `yaml:"width"`
	Times  int    `yaml:"times"`
	Steps  []Step `yaml:"steps"`
}

// WaitDoc is the level held before the channel starts.
type WaitDoc struct {
	Status Level  `yaml:"status"`
	Period uint32 `yaml:"period"`
	Width  uint32 `yaml:"width"`
}

// ChannelDoc is one channel of a timeline file.
type ChannelDoc struct {
	Channel    int           `yaml:"channel"`
	Start      string        `yaml:"start"`
	StartAfter time.Duration `yaml:"start-after"`
	Wait       *WaitDoc      `yaml:"wait"`
	Steps      []Step        `yaml:"steps"`
}

// Timeline is the whole file.
type Timeline struct {
	Name     string       `yaml:"name"`
	Channels []ChannelDoc `yaml:"channels"`
}

var startLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

// Load reads a timeline file.
func Load(path string) ([]host.ChannelInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a timeline and expands step groups.
func Parse(r io.Reader) ([]host.ChannelInput, error) {
	var doc Timeline
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrInvalidTimeline)
		}
		return nil, fmt.Errorf("decode timeline: %w", err)
	}

	inputs := make([]host.ChannelInput, 0, len(doc.Channels))
	for _, ch := range doc.Channels {
		in := host.ChannelInput{Channel: ch.Channel, StartAfter: ch.StartAfter}
		if ch.Start != "" {
			at, err := parseStart(ch.Start)
			if err != nil {
				return nil, fmt.Errorf("channel %d: %w", ch.Channel, err)
			}
			in.StartAt = at
		}
		if ch.Wait != nil {
			in.Wait = &host.WaitSpec{Status: bool(ch.Wait.Status), PulsePeriodMs: ch.Wait.Period, PulseWidthMs: ch.Wait.Width}
		}
		elements, err := expand(ch.Steps, 0)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", ch.Channel, err)
		}
		in.Elements = elements
		inputs = append(inputs, in)
	}
	return inputs, nil
}

const maxDepth = 8

func expand(steps []Step, depth int) ([]pattern.Element, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: groups nested deeper than %d", ErrInvalidTimeline, maxDepth)
	}
	var out []pattern.Element
	for i, s := range steps {
		times := s.Times
		if times == 0 {
			times = 1
		}
		if times < 0 {
			return nil, fmt.Errorf("%w: step %d repeats %d times", ErrInvalidTimeline, i, times)
		}

		var body []pattern.Element
		if len(s.Steps) > 0 {
			inner, err := expand(s.Steps, depth+1)
			if err != nil {
				return nil, err
			}
			body = inner
		} else {
			body = []pattern.Element{{
				Status:        bool(s.Status),
				DurationMs:    s.Ms,
				PulsePeriodMs: s.Period,
				PulseWidthMs:  s.Width,
			}}
		}
		for n := 0; n < times; n++ {
			out = append(out, body...)
		}
	}
	return out, nil
}

func parseStart(s string) (time.Time, error) {
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Time{}, fmt.Errorf("%w: start %q looks like an offset, use start-after: %gs", ErrInvalidTimeline, s, secs)
	}
	return time.Time{}, fmt.Errorf("%w: start %q", ErrInvalidTimeline, s)
}
