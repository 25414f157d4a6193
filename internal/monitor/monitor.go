// Package monitor publishes session progress and channel levels to an MQTT
// broker for dashboards. It only ever publishes; nothing it receives can
// influence a session.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"lightctl/internal/logger"
)

// Client is an MQTT publisher.
type Client struct {
	ctx    context.Context
	log    *logger.Log
	cfg    Conf
	client mqtt.Client
	opts   *mqtt.ClientOptions
	now    func() time.Time

	mu           sync.Mutex
	levels       map[int]bool // levels - latest unpublished level per channel.
	levelTrigger chan struct{}
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfg Conf) *Client {
	if cfg.Schema == "" {
		cfg.Schema = "tcp"
	}
	return &Client{
		ctx: context.Background(),
		log: log.Module("mqtt"),
		cfg: cfg,
		now: time.Now,

		levels:       map[int]bool{},
		levelTrigger: make(chan struct{}, 1),
	}
}

// Start connects to the broker. It gives up when ctx ends first.
func (c *Client) Start(ctx context.Context) error {
	if c.log.GetLevel() == "debug" {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx
	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfg.Schema, c.cfg.Host, c.cfg.Port)).
		SetUsername(c.cfg.User).
		SetPassword(c.cfg.Password).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", c.client.IsConnected())
	go c.publishLevels()
	return nil
}

func (c *Client) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

func (c *Client) connectHandler(_ mqtt.Client) {
	c.log.Info("client connected to server")
}

func (c *Client) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
}

func (c *Client) topic(parts ...interface{}) string {
	t := c.cfg.TopicPrefix
	for _, p := range parts {
		t += fmt.Sprintf("/%v", p)
	}
	return t
}

// PublishState announces a session state change.
func (c *Client) PublishState(session, state string) {
	c.publish(c.topic("session", "state"), true, StatePayload{Session: session, State: state, At: c.now()})
}

// PublishCommands publishes the command lines planned for one channel.
func (c *Client) PublishCommands(session string, channel int, commands []string) {
	c.publish(c.topic("plan", channel), true, CommandsPayload{Session: session, Channel: channel, Commands: commands})
}

// Set queues a channel level, so the client can serve as a device output. It
// never blocks; levels are published by a background goroutine and only the
// latest level of each channel is sent.
func (c *Client) Set(channel int, high bool) {
	c.mu.Lock()
	c.levels[channel] = high
	c.mu.Unlock()

	select {
	case c.levelTrigger <- struct{}{}:
	default:
	}
}

func (c *Client) publishLevels() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.levelTrigger:
			c.mu.Lock()
			pending := c.levels
			c.levels = make(map[int]bool, len(pending))
			c.mu.Unlock()

			channels := make([]int, 0, len(pending))
			for ch := range pending {
				channels = append(channels, ch)
			}
			sort.Ints(channels)
			for _, ch := range channels {
				c.publish(c.topic("ch", ch, "level"), false, LevelPayload{Channel: ch, High: pending[ch]})
			}
		}
	}
}

func (c *Client) publish(topic string, retained bool, v interface{}) {
	if c.client == nil {
		return
	}
	msg, err := json.Marshal(v)
	if err != nil {
		c.log.Errorf("public topic %s. msg: %v", topic, err)
		return
	}
	token := c.client.Publish(topic, c.cfg.Qos, retained, msg)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("error publish topic %s. %v", topic, token.Error())
				return
			}
			c.log.Debugf("published %s", topic)
		}
	}()
}

var _ Publisher = (*Client)(nil)
