// Package logs is the leveled logger shared by every package in this module.
package logs

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var names = []string{
	"[DEBUG] ",
	"[INFO] ",
	"[WARN] ",
	"[ERROR] ",
	"[FATAL] ",
}

func (lv Level) String() string {
	if lv >= LevelDebug && lv <= LevelFatal {
		return names[lv]
	}
	return fmt.Sprintf("[?%d] ", lv)
}

// GetLevel maps a config string to a Level, defaulting to info.
func GetLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type logger struct {
	std   *log.Logger
	level Level
}

var def = &logger{
	std:   log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile|log.Lmicroseconds),
	level: LevelInfo,
}

func (l *logger) logf(lv Level, format string, v ...any) {
	if l.level > lv {
		return
	}
	msg := lv.String() + fmt.Sprintf(format, v...)
	l.std.Output(3, msg)
	if lv == LevelFatal {
		os.Exit(1)
	}
}

// SetLevel sets the level below which logs are not emitted.
// Not concurrent-safe; call during initialization.
func SetLevel(lv Level) {
	def.level = lv
}

// SetOutput redirects log output. By default, it is stderr.
func SetOutput(w io.Writer) {
	def.std.SetOutput(w)
}

func Debugf(format string, v ...any) { def.logf(LevelDebug, format, v...) }
func Infof(format string, v ...any)  { def.logf(LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { def.logf(LevelWarn, format, v...) }
func Errorf(format string, v ...any) { def.logf(LevelError, format, v...) }
func Fatalf(format string, v ...any) { def.logf(LevelFatal, format, v...) }
