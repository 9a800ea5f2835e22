package logging

import (
	"github.com/sirupsen/logrus"
)

// Logger is the logging capability handed to components. Both *logrus.Logger
// and *logrus.Entry satisfy it, so loggers can be narrowed with WithField
// while being passed down.
type Logger interface {
	logrus.FieldLogger
}

func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}
