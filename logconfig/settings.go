package logconfig

import (
	"fmt"
	"strings"

	myLogger "github.com/sirupsen/logrus"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// This output format is used in the test (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(textFormatter())
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(textFormatter())
}

// This output format is used in production.
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(&myLogger.JSONFormatter{})
}

// Configure sets the level ("debug", "info", "warn", ...) and the format
// ("text" or "json"). Empty values keep info and text.
func Configure(level, format string) error {
	lvl := myLogger.InfoLevel
	if level != "" {
		var err error
		lvl, err = myLogger.ParseLevel(level)
		if err != nil {
			return err
		}
	}

	switch strings.ToLower(format) {
	case "", FormatText:
		myLogger.SetFormatter(textFormatter())
	case FormatJSON:
		myLogger.SetFormatter(&myLogger.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format: %s", format)
	}

	myLogger.SetLevel(lvl)
	myLogger.SetReportCaller(lvl >= myLogger.DebugLevel)
	return nil
}

func textFormatter() *myLogger.TextFormatter {
	return &myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}
