package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the service logger. Every entry carries a service field.
func New(serviceName, level, format string) *logrus.Logger {
	return newLogger(os.Stdout, serviceName, level, format)
}

func newLogger(out io.Writer, serviceName, level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	if strings.EqualFold(format, "text") {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "ts",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if serviceName != "" {
		log.AddHook(serviceHook{name: serviceName})
	}
	return log
}

// serviceHook stamps the service name on every entry.
type serviceHook struct {
	name string
}

func (h serviceHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h serviceHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["service"]; !ok {
		entry.Data["service"] = h.name
	}
	return nil
}

// WithRequestID returns an entry tagged with the request id, if any.
func WithRequestID(log logrus.FieldLogger, requestID string) logrus.FieldLogger {
	if requestID == "" {
		return log
	}
	return log.WithField("request_id", requestID)
}
