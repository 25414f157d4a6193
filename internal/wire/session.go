package wire

import (
	"fmt"
	"strconv"
	"strings"

	"lightctl/internal/pattern"
)

// Session control lines.
const (
	Greeting    = "Hello"
	Salve       = "Salve"
	Bye         = "Bye"
	Arrivederci = "Arrivederci"
	GetMemory   = "GET_MEMORY"
	Memory      = "MEMORY"
)

// Capability keys reported after Salve.
const (
	KeyPatternLength = "PATTERN_LENGTH"
	KeyMaxPatterns   = "MAX_PATTERN_NUM"
	KeyMaxChannels   = "MAX_CHANNEL_NUM"
)

// Diagnostic prefixes the device uses for best-effort messages.
const (
	WarnPrefix = "WARN:"
	InfoPrefix = "INFO:"
)

// FormatSalve renders the greeting reply. A nil capability gives the bare
// legacy reply.
func FormatSalve(c *pattern.Capability) string {
	if c == nil {
		return Salve
	}
	return fmt.Sprintf("%s;%s:%d;%s:%d;%s:%d", Salve,
		KeyPatternLength, c.MaxElementsPerPattern,
		KeyMaxPatterns, c.MaxPatternsPerChannel,
		KeyMaxChannels, c.MaxChannels)
}

// IsSalve reports whether line is a greeting reply of either form.
func IsSalve(line string) bool {
	line = strings.TrimSpace(line)
	return line == Salve || strings.HasPrefix(line, Salve+";")
}

// ParseSalve decodes a greeting reply. The returned capability is nil for a
// legacy reply that carries no sizing. Values that cannot be read are skipped,
// and a reply missing PATTERN_LENGTH is treated as legacy.
func ParseSalve(line string) (*pattern.Capability, error) {
	line = strings.TrimSpace(line)
	if !IsSalve(line) {
		return nil, fmt.Errorf("%w: not a greeting reply: %q", ErrMalformed, line)
	}

	values := parseKeyValues(line)
	length, ok := values[KeyPatternLength]
	if !ok {
		return nil, nil
	}
	return &pattern.Capability{
		MaxElementsPerPattern: length,
		MaxPatternsPerChannel: values[KeyMaxPatterns],
		MaxChannels:           values[KeyMaxChannels],
	}, nil
}

// Compile-time pulse support reported as PULSE_COMPILE.
const (
	PulseCompileDynamic = "dynamic"
	PulseCompileAlways  = "always"
	PulseCompileNever   = "never"
)

// MemoryReport is the device answer to GET_MEMORY.
type MemoryReport struct {
	Free         int
	Total        int
	PulseMode    bool
	PulseCompile string // PulseCompile - empty when the device did not say.
}

// Used returns the bytes in use.
func (m MemoryReport) Used() int {
	return m.Total - m.Free
}

// FormatMemory renders a MEMORY line.
func FormatMemory(m MemoryReport) string {
	mode := 0
	if m.PulseMode {
		mode = 1
	}
	line := fmt.Sprintf("%s;FREE:%d;TOTAL:%d;PULSE_MODE:%d", Memory, m.Free, m.Total, mode)
	if m.PulseCompile != "" {
		line += ";PULSE_COMPILE:" + m.PulseCompile
	}
	return line
}

// ParseMemory decodes a MEMORY line.
func ParseMemory(line string) (MemoryReport, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, Memory+";") {
		return MemoryReport{}, fmt.Errorf("%w: not a memory report: %q", ErrMalformed, line)
	}
	values := parseKeyValues(line)
	return MemoryReport{
		Free:         values["FREE"],
		Total:        values["TOTAL"],
		PulseMode:    values["PULSE_MODE"] == 1,
		PulseCompile: stringValue(line, "PULSE_COMPILE"),
	}, nil
}

// Warn formats a device warning line.
func Warn(format string, args ...interface{}) string {
	return WarnPrefix + fmt.Sprintf(format, args...)
}

// Info formats a device information line.
func Info(format string, args ...interface{}) string {
	return InfoPrefix + fmt.Sprintf(format, args...)
}

// IsDiagnostic reports whether line is a device diagnostic rather than a reply.
func IsDiagnostic(line string) bool {
	return strings.HasPrefix(line, WarnPrefix) || strings.HasPrefix(line, InfoPrefix)
}

func parseKeyValues(line string) map[string]int {
	values := make(map[string]int)
	for _, part := range strings.Split(line, ";")[1:] {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		values[strings.ToUpper(strings.TrimSpace(key))] = n
	}
	return values
}

func stringValue(line, key string) string {
	for _, part := range strings.Split(line, ";")[1:] {
		k, v, ok := strings.Cut(part, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
