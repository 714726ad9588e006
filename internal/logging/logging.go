package logging

import (
	"os"
	"strings"

	logger "github.com/apsdehal/go-logger"
)

const appName = "ZENOBUNDLE"

// Logger is the process-wide logger, set up once in main.
var Logger *logger.Logger

func init() {
	// Usable default so tests and early startup never hit a nil logger.
	Logger, _ = logger.New(appName, 1, os.Stdout)
	Logger.SetFormat("%{time} [%{module}] [%{level}] %{message}")
	Logger.SetLogLevel(logger.InfoLevel)
}

// Setup configures the log level from config.
func Setup(logLevel string) {
	if strings.EqualFold(logLevel, "DEBUG") {
		Logger.SetLogLevel(logger.DebugLevel)
	} else {
		Logger.SetLogLevel(logger.InfoLevel)
	}
}
