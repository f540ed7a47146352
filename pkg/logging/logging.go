package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// ConsoleLogger returns a logger writing human-readable output to stderr.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

// FileLogger returns a JSON logger writing to the given writer, suitable
// for shipping to an aggregator.
func FileLogger(level logrus.Level, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	log.SetFormatter(&logrus.JSONFormatter{})
	return log
}

// Component returns an entry tagged with the component name. Every
// long-lived service holds one of these instead of the root logger.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
