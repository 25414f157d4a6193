package logger

import (
	"fmt"
	"io"
	"os"

	"lightctl/internal/config"

	"github.com/sirupsen/logrus"
)

type Log struct {
	*logrus.Entry
}

// NewLogger конструктор.
func NewLogger(cfg config.LogConf) (*Log, error) {
	return New(cfg, os.Stdout)
}

// New builds a logger writing to out.
func New(cfg config.LogConf, out io.Writer) (*Log, error) {
	log := logrus.New()

	log.SetOutput(out)

	log.Formatter = &logrus.TextFormatter{
		TimestampFormat:  "2006-01-02 15:04:05.0000",
		DisableColors:    false,
		ForceColors:      out == os.Stdout,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logger. Error in settings (level: %s): %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.Debug("set level: ", level)

	return &Log{Entry: log.WithFields(nil)}, nil
}

// Discard returns a logger that drops everything, for tests.
func Discard() *Log {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Log{Entry: log.WithFields(nil)}
}

// With will add the fields to the formatted log entry.
func (l *Log) With(fields Fields) *Log {
	return &Log{Entry: l.WithFields(logrus.Fields(fields))}
}

// Module is shorthand for With(Fields{"module": name}).
func (l *Log) Module(name string) *Log {
	return l.With(Fields{"module": name})
}

func (l *Log) GetLevel() string {
	return l.Logger.Level.String()
}

// Fields are a representation of formatted log fields.
type Fields map[string]interface{}

// Logger интерфейс для регистратора.
type Logger interface {
	// GetLevel возвращает текущий установленный уровень логирования.
	GetLevel() string
	With(fields Fields) *Log
	Module(name string) *Log
}
