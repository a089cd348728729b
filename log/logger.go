package log

import (
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

const (
	// default log level
	defaultLogLevel = logrus.InfoLevel

	// log file name
	globalLogFileName = "global.log"
	// default log directory
	logDir = "nodelogs"
	// default log file params
	defaultLogMaxSize    = 100 // maximum file size before rotation, in MB
	defaultLogMaxBackups = 3   // maximum number of old log files to keep
	defaultLogMaxAge     = 28  // maximum number of days to retain old log files

	timestampFormat = "01-02|15:04:05.000"
)

var (
	// Global is the process wide logger. Components receive their own
	// logger through NewLogger.
	Global Logger

	// default logfile path
	defaultLogFilePath = filepath.Join(".", logDir, globalLogFileName)
)

func init() {
	Global = &LogWrapper{entry: logrus.NewEntry(createStandardLogger("", defaultLogLevel.String(), true))}
}

// SetGlobalLogger redirects the global logger to a rotating file (plus stdout)
// and changes its level.
func SetGlobalLogger(logFilename string, logLevel string, opts ...Options) {
	if logFilename == "" {
		logFilename = defaultLogFilePath
	}
	wrapper := &LogWrapper{entry: logrus.NewEntry(createStandardLogger(logFilename, logLevel, true))}
	for _, opt := range opts {
		opt(wrapper)
	}
	Global = wrapper
}

// NewLogger returns a component logger writing to its own rotating file.
// An empty file name logs to stdout only.
func NewLogger(logFilename string, logLevel string, opts ...Options) Logger {
	wrapper := &LogWrapper{entry: logrus.NewEntry(createStandardLogger(logFilename, logLevel, logFilename == ""))}
	for _, opt := range opts {
		opt(wrapper)
	}
	wrapper.WithFields(logrus.Fields{
		"path":  logFilename,
		"level": logLevel,
	}).Debug("Component logger started")
	return wrapper
}

func createStandardLogger(logFilename string, logLevel string, stdOut bool) *logrus.Logger {
	logger := logrus.New()

	var output io.Writer = os.Stdout
	if logFilename != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFilename,
			MaxSize:    defaultLogMaxSize,
			MaxBackups: defaultLogMaxBackups,
			MaxAge:     defaultLogMaxAge,
		}
		if stdOut {
			output = io.MultiWriter(rotating, os.Stdout)
		} else {
			output = rotating
		}
	}
	logger.SetOutput(output)

	logger.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		PadLevelText:    true,
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	})
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = defaultLogLevel
	}
	logger.SetLevel(level)
	return logger
}

func WithField(key string, val interface{}) Logger {
	return Global.WithField(key, val)
}

func WithFields(fields logrus.Fields) Logger {
	return Global.WithFields(fields)
}

func Debug(keyvals ...interface{}) {
	Global.Debug(keyvals...)
}

func Info(keyvals ...interface{}) {
	Global.Info(keyvals...)
}

func Warn(keyvals ...interface{}) {
	Global.Warn(keyvals...)
}

func Error(keyvals ...interface{}) {
	Global.Error(keyvals...)
}

func Fatalf(msg string, args ...interface{}) {
	Global.Fatalf(msg, args...)
}
