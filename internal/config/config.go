package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger LogConf    // Logger - конфигурация регистратора.
	Host   HostConf   // Host - параметры передающей стороны.
	Device DeviceConf // Device - параметры контроллера.
	ArtNet ArtNetConf // ArtNet - DMX выход контроллера.
	MQTT   MQTTConf   // MQTT - публикация для мониторинга.
	Record RecordConf // Record - журнал сессии.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// SerialConf describes one end of the serial link.
type SerialConf struct {
	Port          string `toml:"port"`            // Port - serial device, e.g. /dev/ttyACM0.
	Baud          int    `toml:"baud"`            // Baud - line speed.
	ReadTimeoutMs int    `toml:"read-timeout-ms"` // ReadTimeoutMs - driver read timeout.
}

// HostConf configures the pattern compiler and transmitter.
type HostConf struct {
	Serial             SerialConf `toml:"serial"`
	Window             int        `toml:"window"`               // Window - pattern length L.
	Candidates         []int      `toml:"candidates"`           // Candidates - window sizes for the efficiency report.
	CalibFactor        float64    `toml:"calib-factor"`         // CalibFactor - scalar supplied by the calibration subsystem.
	HandshakeTimeoutMs int        `toml:"handshake-timeout-ms"` // HandshakeTimeoutMs - wait for Salve.
	AckTimeoutMs       int        `toml:"ack-timeout-ms"`       // AckTimeoutMs - wait for each command echo.
	PlanOut            string     `toml:"plan-out"`             // PlanOut - YAML plan export path, empty disables.
	CommandLog         string     `toml:"command-log"`          // CommandLog - annotated command log path, empty disables.
}

// DeviceConf configures the device runtime.
type DeviceConf struct {
	Serial                SerialConf `toml:"serial"`
	MaxElementsPerPattern int        `toml:"max-elements"` // MaxElementsPerPattern - PATTERN_LENGTH.
	MaxPatternsPerChannel int        `toml:"max-patterns"` // MaxPatternsPerChannel - MAX_PATTERN_NUM.
	MaxChannels           int        `toml:"max-channels"` // MaxChannels - MAX_CHANNEL_NUM.
	Legacy                bool       `toml:"legacy"`       // Legacy - answer the greeting without capacities.
	PulseMode             bool       `toml:"pulse-mode"`   // PulseMode - pulse modulation built in.
	TickMs                int        `toml:"tick-ms"`      // TickMs - scheduler tick period.
}

// ArtNetConf configures the DMX mirror of the device outputs.
type ArtNetConf struct {
	Enabled      bool   `toml:"enabled"`
	AddressRange string `toml:"address-range"` // AddressRange - CIDR the Art-Net interface lives in.
	Universe     uint16 `toml:"universe"`      // Universe: старший байт - SubUni, младший байт - Net.
	BaseChannel  uint16 `toml:"base-channel"`  // BaseChannel - DMX slot of output channel 1.
	OnValue      uint8  `toml:"on-value"`      // OnValue - DMX value of a HIGH output.
	MaxFPS       int    `toml:"max-fps"`       // MaxFPS - frame rate limit of the sender.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled     bool   `toml:"enabled"`
	ClientID    string `toml:"clientID"`     // ClientID - имя клиента.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - корень топиков.
}

// RecordConf configures the CBOR session record.
type RecordConf struct {
	Path string `toml:"path"` // Path - record file, empty disables.
}

// Default returns the configuration used for any key the file leaves out.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		Host: HostConf{
			Serial:             SerialConf{Baud: 115200, ReadTimeoutMs: 100},
			Window:             2,
			Candidates:         []int{2, 4, 8},
			CalibFactor:        1,
			HandshakeTimeoutMs: 10000,
			AckTimeoutMs:       5000,
		},
		Device: DeviceConf{
			Serial:                SerialConf{Baud: 115200, ReadTimeoutMs: 100},
			MaxElementsPerPattern: 4,
			MaxPatternsPerChannel: 10,
			MaxChannels:           8,
			PulseMode:             true,
			TickMs:                1,
		},
		ArtNet: ArtNetConf{
			AddressRange: "192.168.6.0/24",
			BaseChannel:  0,
			OnValue:      255,
			MaxFPS:       40,
		},
		MQTT: MQTTConf{
			ClientID:    "lightctl",
			Port:        "1883",
			TopicPrefix: "lightctl",
		},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	ve := &ValidationError{}

	if c.Host.Window < 1 {
		ve.Add("host.window must be >= 1")
	}
	for _, w := range c.Host.Candidates {
		if w < 1 {
			ve.Add("host.candidates must all be >= 1, got %d", w)
		}
	}
	if c.Host.CalibFactor <= 0 {
		ve.Add("host.calib-factor must be > 0")
	}
	if c.Host.HandshakeTimeoutMs <= 0 {
		ve.Add("host.handshake-timeout-ms must be > 0")
	}
	if c.Host.AckTimeoutMs <= 0 {
		ve.Add("host.ack-timeout-ms must be > 0")
	}
	if c.Device.MaxElementsPerPattern < 1 {
		ve.Add("device.max-elements must be >= 1")
	}
	if c.Device.MaxPatternsPerChannel < 1 {
		ve.Add("device.max-patterns must be >= 1")
	}
	if c.Device.MaxChannels < 1 {
		ve.Add("device.max-channels must be >= 1")
	}
	if c.Device.TickMs < 1 {
		ve.Add("device.tick-ms must be >= 1")
	}
	if c.ArtNet.Enabled && int(c.ArtNet.BaseChannel)+c.Device.MaxChannels > 512 {
		ve.Add("artnet.base-channel %d leaves no room for %d channels", c.ArtNet.BaseChannel, c.Device.MaxChannels)
	}
	if c.ArtNet.Enabled && c.ArtNet.MaxFPS < 1 {
		ve.Add("artnet.max-fps must be >= 1")
	}
	if c.MQTT.Enabled && c.MQTT.Host == "" {
		ve.Add("mqtt.server must be set when mqtt is enabled")
	}
	if c.MQTT.Qos > 2 {
		ve.Add("mqtt.qos must be 0, 1 or 2")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}
