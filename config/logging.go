package config

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// LogWriter is the writer used for application and database logs.
var LogWriter io.Writer = os.Stdout

var appLogger = newLogger(os.Stdout, false)

// LogFilePath returns the path to the backend log file.
func LogFilePath() string {
	return filepath.Join("logs", "aid-api.log")
}

// InitLogging prepares the log file and points both the standard logger and
// the structured logger at it.
func InitLogging(production bool) (*os.File, io.Writer) {
	logPath := filepath.Dir(LogFilePath())
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		log.Printf("Warning: Failed to create logs directory: %v", err)
	}

	logFile, err := os.OpenFile(LogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("Warning: Failed to open log file: %v", err)
		LogWriter = os.Stdout
		log.SetOutput(LogWriter)
		appLogger = newLogger(LogWriter, production)
		return nil, LogWriter
	}

	LogWriter = io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(LogWriter)
	appLogger = newLogger(LogWriter, production)
	return logFile, LogWriter
}

// Logger returns the structured application logger.
func Logger() *logrus.Logger {
	return appLogger
}

// SetLogger replaces the structured logger, mainly for tests.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		appLogger = l
	}
}

func newLogger(w io.Writer, production bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	if production {
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
