package logging

import (
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

var current Level = LevelInfo

// InitFromEnv sets the log level based on LOG_LEVEL (debug|info|error).
func InitFromEnv() {
	SetLevel(Parse(os.Getenv("LOG_LEVEL")))
}

// Parse maps a level name to a Level, defaulting to info.
func Parse(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel overrides the current log level.
func SetLevel(l Level) {
	current = l
}

func Debugf(format string, args ...interface{}) {
	if current <= LevelDebug {
		log.Printf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if current <= LevelInfo {
		log.Printf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	log.Fatalf(format, args...)
}
