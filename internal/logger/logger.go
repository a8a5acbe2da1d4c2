package logger

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// Init configures the standard logrus logger and returns a dedicated
// logger for HTTP access logs.
func Init(cfg Config) *log.Logger {
	level, err := log.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	formatter := newFormatter(cfg.Format)

	log.SetFormatter(formatter)
	log.SetLevel(level)
	log.SetOutput(out)

	access := log.New()
	access.SetFormatter(formatter)
	access.SetLevel(level)
	access.SetOutput(out)
	return access
}

func newFormatter(format string) log.Formatter {
	if strings.EqualFold(format, "text") {
		return &log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}

	return &log.JSONFormatter{
		FieldMap: log.FieldMap{
			log.FieldKeyTime: "@timestamp",
			log.FieldKeyMsg:  "message",
		},
	}
}
