package monitor

import (
	"time"

	"lightctl/internal/config"
)

// Conf describes the broker connection.
type Conf struct {
	ClientID    string // ClientID - уникальное имя клиента для брокеров.
	Schema      string // Schema - тип подключения.
	Host        string // Host - адрес MQTT сервера.
	Port        string // Port - порт MQTT сервера.
	User        string // User - логин для подключения к MQTT серверу.
	Password    string // Password - пароль для подключения к MQTT серверу.
	Qos         byte   // Qos - качество обслуживания публикаций.
	TopicPrefix string // TopicPrefix - корень всех топиков.
}

// ConvertConfig преобразует структуры. suffix is appended to the client id so
// host and device can share one broker.
func ConvertConfig(cfg config.MQTTConf, suffix string) Conf {
	return Conf{
		ClientID:    cfg.ClientID + suffix,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}

// StatePayload is published on <prefix>/session/state.
type StatePayload struct {
	Session string    `json:"session"`
	State   string    `json:"state"`
	At      time.Time `json:"at"`
}

// CommandsPayload is published on <prefix>/plan/<channel>.
type CommandsPayload struct {
	Session  string   `json:"session"`
	Channel  int      `json:"channel"`
	Commands []string `json:"commands"`
}

// LevelPayload is published on <prefix>/ch/<channel>/level.
type LevelPayload struct {
	Channel int  `json:"channel"`
	High    bool `json:"high"`
}

// Publisher is the read-only monitoring surface the host and device report to.
type Publisher interface {
	PublishState(session, state string)
	PublishCommands(session string, channel int, commands []string)
}

// Nop publishes nothing.
type Nop struct{}

func (Nop) PublishState(string, string) {}
func (Nop) PublishCommands(string, int, []string) {}
func (Nop) Set(int, bool) {}
