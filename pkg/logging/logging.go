// Package logging provides the module-wide structured logger.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns the module's logger. The service argument is not attached to
// it; WithService adds the "service" field. In production (LOG_FORMAT=json)
// it emits JSON lines; otherwise a human-readable text formatter is used.
func New(service string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// WithService returns an Entry pre-tagged with the "service" field.
func WithService(log *logrus.Logger, service string) *logrus.Entry {
	return log.WithField("service", service)
}
