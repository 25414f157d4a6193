package artnet

import (
	"sync"

	"lightctl/internal/config"
)

// Conf configures the DMX mirror.
type Conf struct {
	AddressRange string // AddressRange - CIDR the Art-Net interface lives in.
	Universe     uint16 // Universe: старший байт - SubUni, младший байт - Net.
	BaseChannel  uint16 // BaseChannel - DMX slot (0-511) of output channel 1.
	OnValue      uint8  // OnValue - DMX value written for a HIGH output.
	MaxFPS       int    // MaxFPS - upper bound of frames sent per second.
}

// ConvertConfig преобразует структуры.
func ConvertConfig(cfg config.ArtNetConf) Conf {
	return Conf{
		AddressRange: cfg.AddressRange,
		Universe:     cfg.Universe,
		BaseChannel:  cfg.BaseChannel,
		OnValue:      cfg.OnValue,
		MaxFPS:       cfg.MaxFPS,
	}
}

// ChannelValue defines an ArtNet Universe and the value of the DMX channel.
type ChannelValue struct {
	Universe uint16 // Universe: старший байт - SubUni, младший байт - Net.
	Channel  uint16 // Channel: номер байта (канал).
	Value    uint8  // Value: значение для канала.
}

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

func (u Universe) toByteSlice() [512]byte {
	return u
}

// UniverseStateMap holds the state of all used universes.
type UniverseStateMap map[uint16]Universe

// State is the last value written to every DMX slot.
type State struct {
	mu        sync.Mutex
	universes UniverseStateMap
}

func NewState() *State {
	return &State{universes: UniverseStateMap{}}
}

// SetChannel stores one slot value. Slots past the universe are ignored.
func (s *State) SetChannel(universe, channel uint16, value uint8) {
	if int(channel) >= len(Universe{}) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.universes[universe]
	u[channel] = value
	s.universes[universe] = u
}

// Get returns a copy of every universe.
func (s *State) Get() UniverseStateMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(UniverseStateMap, len(s.universes))
	for k, v := range s.universes {
		out[k] = v
	}
	return out
}
