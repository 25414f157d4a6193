package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conf.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, ""))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, &def, cfg)
	assert.Equal(t, 2, cfg.Host.Window)
	assert.Equal(t, 4, cfg.Device.MaxElementsPerPattern)
	assert.True(t, cfg.Device.PulseMode)
	assert.Equal(t, 40, cfg.ArtNet.MaxFPS)
}

func TestNewConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
[logger]
log-level = "debug"

[host]
window = 4
candidates = [2, 4]
calib-factor = 1.0005

[host.serial]
port = "/dev/ttyACM0"
baud = 9600

[device]
max-elements = 8
max-channels = 4
legacy = true
pulse-mode = false

[artnet]
max-fps = 25

[mqtt]
enabled = true
server = "broker.local"
qos = 1
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 4, cfg.Host.Window)
	assert.Equal(t, []int{2, 4}, cfg.Host.Candidates)
	assert.InDelta(t, 1.0005, cfg.Host.CalibFactor, 1e-9)
	assert.Equal(t, "/dev/ttyACM0", cfg.Host.Serial.Port)
	assert.Equal(t, 9600, cfg.Host.Serial.Baud)
	assert.Equal(t, 100, cfg.Host.Serial.ReadTimeoutMs)
	assert.Equal(t, 8, cfg.Device.MaxElementsPerPattern)
	assert.Equal(t, 10, cfg.Device.MaxPatternsPerChannel)
	assert.Equal(t, 4, cfg.Device.MaxChannels)
	assert.True(t, cfg.Device.Legacy)
	assert.False(t, cfg.Device.PulseMode)
	assert.Equal(t, 25, cfg.ArtNet.MaxFPS)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, byte(1), cfg.MQTT.Qos)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Host.Window = 0
	cfg.Host.CalibFactor = 0
	cfg.Device.MaxChannels = 0
	cfg.MQTT.Enabled = true
	cfg.ArtNet.Enabled = true
	cfg.ArtNet.MaxFPS = 0

	err := cfg.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 5)
	assert.Contains(t, err.Error(), "host.window must be >= 1")
	assert.Contains(t, err.Error(), "mqtt.server must be set")
	assert.Contains(t, err.Error(), "artnet.max-fps must be >= 1")
}

func TestShippedConfig(t *testing.T) {
	cfg, err := NewConfig(filepath.Join("..", "..", "configs", "conf.toml"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Host.Serial.Port)
	assert.False(t, cfg.MQTT.Enabled)
}
