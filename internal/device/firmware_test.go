package device

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lightctl/internal/link"
	"lightctl/internal/logger"
	"lightctl/internal/wire"
)

func TestFirmwareHandle(t *testing.T) {
	fw := NewFirmware(logger.Discard(), testCapability, Options{}, nil, nil)

	assert.Equal(t, []string{"Salve;PATTERN_LENGTH:4;MAX_PATTERN_NUM:10;MAX_CHANNEL_NUM:8"}, fw.Handle("Hello\r\n", 0))
	assert.Nil(t, fw.Handle("  ", 0))

	line := "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,100;REPEATS:2;PULSE:T0pw0,T0pw0"
	assert.Equal(t, []string{line}, fw.Handle(line, 0))

	replies := fw.Handle("PATTERN:2;CH:1;STATUS:1,0;TIME_MS:100,100,100;REPEATS:1;PULSE:T0pw0,T0pw0", 0)
	require.Len(t, replies, 2)
	assert.True(t, strings.HasPrefix(replies[0], wire.WarnPrefix))
	assert.True(t, wire.IsPattern(replies[1]))

	replies = fw.Handle("PATTERN:x;CH:1;STATUS:1", 0)
	require.Len(t, replies, 1)
	assert.True(t, wire.IsDiagnostic(replies[0]))

	replies = fw.Handle("GET_MEMORY", 0)
	require.Len(t, replies, 1)
	mem, err := wire.ParseMemory(replies[0])
	require.NoError(t, err)
	assert.Greater(t, mem.Total, mem.Free)
	assert.True(t, mem.PulseMode)

	replies = fw.Handle("FOO", 0)
	require.Len(t, replies, 1)
	assert.True(t, wire.IsDiagnostic(replies[0]))

	assert.True(t, fw.Accepting())
	assert.Equal(t, []string{"Arrivederci"}, fw.Handle("Bye", 0))
	assert.False(t, fw.Accepting())
	assert.True(t, fw.Scheduler().Started())

	replies = fw.Handle(line, 10)
	require.Len(t, replies, 1)
	assert.True(t, wire.IsDiagnostic(replies[0]))
	assert.Equal(t, 2, fw.Store().Len(1))
}

func TestFirmwareLegacyGreeting(t *testing.T) {
	fw := NewFirmware(logger.Discard(), testCapability, Options{Legacy: true}, nil, nil)
	assert.Equal(t, []string{"Salve"}, fw.Handle("Hello", 0))
}

func TestFirmwareRun(t *testing.T) {
	host, dev := link.Pipe()
	defer host.Close()

	fw := NewFirmware(logger.Discard(), testCapability, Options{}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- fw.Run(ctx, dev, NewSystemClock(), time.Millisecond) }()

	exchange := func(send string) string {
		require.NoError(t, host.Send(send))
		reply, err := host.Recv(ctx)
		require.NoError(t, err)
		return reply
	}

	assert.True(t, wire.IsSalve(exchange("Hello")))
	line := "PATTERN:1;CH:2;STATUS:1,0;TIME_MS:10,10;REPEATS:2;PULSE:T0pw0,T0pw0"
	assert.Equal(t, line, exchange(line))
	assert.Equal(t, "Arrivederci", exchange("Bye"))

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("firmware did not finish")
	}
	assert.True(t, fw.Done())
	assert.Equal(t, Completed, fw.Scheduler().State(2).Phase)
}

func TestFirmwareRunCancelled(t *testing.T) {
	_, dev := link.Pipe()
	fw := NewFirmware(logger.Discard(), testCapability, Options{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fw.Run(ctx, dev, &ManualClock{}, time.Millisecond), context.Canceled)
}

func TestSimulate(t *testing.T) {
	lines := []string{
		"PATTERN:0;CH:1;STATUS:0;TIME_MS:1000;REPEATS:1;PULSE:T0pw0",
		"PATTERN:1;CH:1;STATUS:1,0;TIME_MS:1000,1000;REPEATS:10;PULSE:T0pw0,T0pw0",
		"PATTERN:1;CH:2;STATUS:1,0,1;TIME_MS:10,10;REPEATS:1;PULSE:T0pw0,T0pw0",
	}
	sim := Simulate(logger.Discard(), testCapability, lines, 1, 60000)
	assert.True(t, sim.Finished)
	assert.Equal(t, map[int]uint64{1: 21000, 2: 20}, sim.Completed)
	require.Len(t, sim.Diagnostics, 1)
	assert.Equal(t, uint64(21000), sim.EndedAt)
}

func TestSimulateLimit(t *testing.T) {
	sim := Simulate(logger.Discard(), testCapability,
		[]string{"PATTERN:1;CH:1;STATUS:1;TIME_MS:5000;REPEATS:1;PULSE:T0pw0"}, 10, 100)
	assert.False(t, sim.Finished)
	assert.Empty(t, sim.Completed)
}

func TestFirmwareZeroDurationLoopCompletes(t *testing.T) {
	fw := NewFirmware(logger.Discard(), testCapability, Options{}, nil, nil)
	line := "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:0,0;REPEATS:4294967295;PULSE:T0pw0,T0pw0"
	replies := fw.Handle(line, 0)
	require.Len(t, replies, 2)
	assert.True(t, wire.IsDiagnostic(replies[0]))
	assert.Equal(t, line, replies[1])

	fw.Handle("Bye", 0)
	done := make(chan bool, 1)
	go func() { done <- fw.Tick(1) }()
	select {
	case running := <-done:
		assert.False(t, running)
		assert.True(t, fw.Done())
	case <-time.After(time.Second):
		t.Fatal("tick did not return")
	}
}

func TestFirmwareWithoutPulseSupport(t *testing.T) {
	fw := NewFirmware(logger.Discard(), testCapability, Options{NoPulse: true}, nil, nil)

	replies := fw.Handle("GET_MEMORY", 0)
	require.Len(t, replies, 1)
	mem, err := wire.ParseMemory(replies[0])
	require.NoError(t, err)
	assert.False(t, mem.PulseMode)
	assert.Equal(t, wire.PulseCompileNever, mem.PulseCompile)

	line := "PATTERN:1;CH:1;STATUS:1,0;TIME_MS:100,100;REPEATS:1;PULSE:T10pw5,T0pw0"
	replies = fw.Handle(line, 0)
	require.Len(t, replies, 2)
	assert.True(t, wire.IsDiagnostic(replies[0]))
	assert.Equal(t, line, replies[1])

	p, ok := fw.Store().Pattern(1, 0)
	require.True(t, ok)
	assert.Equal(t, 2, p.EffectiveLength)
	assert.Zero(t, p.Elements[0].PulsePeriodMs)

	plain := "PATTERN:2;CH:1;STATUS:1;TIME_MS:100;REPEATS:1;PULSE:T0pw0"
	assert.Equal(t, []string{plain}, fw.Handle(plain, 0))
}
