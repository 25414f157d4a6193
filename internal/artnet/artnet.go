// Package artnet mirrors device channel levels into a DMX universe sent over
// Art-Net, so lamps on a DMX rig follow the scheduler outputs.
package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Haba1234/go-artnet"

	"lightctl/internal/logger"
)

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP).
type ArtNet struct {
	log         *logger.Log
	cfg         Conf
	sender      *artnet.Controller
	state       *State
	sendTrigger chan struct{}
	ctx         context.Context
}

// NewController returns an art-net output bound to the interface inside
// cfg.AddressRange.
func NewController(log logger.Logger, cfg Conf) (*ArtNet, error) {
	ip, err := FindArtNetIP(cfg.AddressRange)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	control := newArtNet(log, cfg)
	control.log.Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	fps := cfg.MaxFPS
	if fps <= 0 {
		fps = 40
	}
	control.sender = artnet.NewController(host, ip, artnet.NewDefaultLogger("info"), artnet.MaxFPS(fps))
	return control, nil
}

func newArtNet(log logger.Logger, cfg Conf) *ArtNet {
	if cfg.OnValue == 0 {
		cfg.OnValue = 255
	}
	return &ArtNet{
		log:         log.Module("art-net"),
		cfg:         cfg,
		state:       NewState(),
		sendTrigger: make(chan struct{}, 1),
		ctx:         context.Background(),
	}
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx = ctx
	go c.sendBackground()
	go c.debugDevices()
	return nil
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	c.sender.Stop()
}

// Set maps output channel to its DMX slot. It never blocks; frames are sent
// by a background goroutine.
func (c *ArtNet) Set(channel int, high bool) {
	v, ok := ChannelValueFor(c.cfg, channel, high)
	if !ok {
		c.log.Debugf("DMX. Channel %d outside the universe", channel)
		return
	}
	c.state.SetChannel(v.Universe, v.Channel, v.Value)
	c.triggerSend()
}

// ChannelValueFor returns the DMX slot value for an output channel (1-based).
func ChannelValueFor(cfg Conf, channel int, high bool) (ChannelValue, bool) {
	slot := int(cfg.BaseChannel) + channel - 1
	if channel < 1 || slot >= len(Universe{}) {
		return ChannelValue{}, false
	}
	v := ChannelValue{Universe: cfg.Universe, Channel: uint16(slot)}
	if high {
		v.Value = cfg.OnValue
	}
	return v, true
}

func (c *ArtNet) triggerSend() {
	select {
	case c.sendTrigger <- struct{}{}:
	default:
	}
}

func (c *ArtNet) sendBackground() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.sendTrigger:
			for u, dmx := range c.state.Get() {
				// u - адрес.
				// dmx - массив данных до 512 байт.
				c.log.Debugf("DMX. Отправка в контроллер по адресу %v", u)
				c.sender.SendDMXToAddress(dmx.toByteSlice(), universeToAddress(u))
			}
		}
	}
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - SubUni, младший байт - Net.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) string {
	var inputs, outputs []string
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	return fmt.Sprintf(
		" | IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
		n.UDPAddress.String(), n.Node.Name, n.Node.Type,
		n.Node.Manufacturer, n.Node.Description,
		strings.Join(inputs, "; "), strings.Join(outputs, "; "),
	)
}

func (c *ArtNet) debugDevices() {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			nodes := c.sender.Nodes
			list := make([]string, 0, len(nodes))
			for _, n := range nodes {
				list = append(list, NodeToString(n))
			}
			c.log.Debugf("Currently %d devices are registered: %v", len(nodes), list)
		}
	}
}
