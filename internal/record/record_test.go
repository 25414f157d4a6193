package record

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	r, err := OpenFile(path)
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	r.Record(Entry{Timestamp: ts, SessionID: "s1", Kind: KindState, State: "handshake"})
	r.Record(Entry{Timestamp: ts, SessionID: "s1", Kind: KindLine, Direction: DirectionIn, Line: "Salve", Channel: 2})
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	r.Record(Entry{SessionID: "late"})

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, ts.Equal(entries[0].Timestamp))
	assert.Equal(t, "handshake", entries[0].State)
	assert.Equal(t, KindLine, entries[1].Kind)
	assert.Equal(t, DirectionIn, entries[1].Direction)
	assert.Equal(t, "Salve", entries[1].Line)
	assert.Equal(t, 2, entries[1].Channel)
}

func TestFileAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.cbor")
	for i := 0; i < 2; i++ {
		r, err := OpenFile(path)
		require.NoError(t, err)
		r.Record(Entry{SessionID: "s", Kind: KindError, Error: "boom"})
		require.NoError(t, r.Close())
	}

	entries, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0xff, 0x00}))
	assert.Error(t, err)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "OUT", DirectionOut.String())
	assert.Equal(t, "IN", DirectionIn.String())
	assert.Equal(t, "state", KindState.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
