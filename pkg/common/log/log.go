package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	DefaultFormat = ""
	JSONFormat    = "JSON"
	TextFormat    = "TEXT"
)

// NewLogger returns a configured logger. An empty fileName logs to stdout.
func NewLogger(logLevel, format, fileName string) (logrus.FieldLogger, error) {
	var out io.Writer
	var err error

	if fileName != "" {
		out, err = os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
		if err != nil {
			return nil, err
		}
	} else {
		out = os.Stdout
	}

	logrusLevel, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.Out = out
	logger.Level = logrusLevel

	switch format {
	case DefaultFormat:
		// Logrus sets up a default formatter in logrus.New()
	case JSONFormat:
		logger.Formatter = &logrus.JSONFormatter{}
	case TextFormat:
		logger.Formatter = &logrus.TextFormatter{}
	default:
		return nil, fmt.Errorf("unknown logger format: %q", format)
	}

	return logger, nil
}
