package logger

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// LogLevel はログのレベルを表す型です。
type LogLevel int32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String はログレベルの表示名を返します。
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

var logLevel atomic.Int32

func init() {
	logLevel.Store(int32(LevelInfo))
}

// ParseLevel はログレベル文字列を LogLevel に変換します。不明な値の場合は false を返します。
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// SetLogLevel はログレベルを設定します。
func SetLogLevel(level string) {
	lv, ok := ParseLevel(level)
	if !ok {
		log.Printf("[WARN] 不明なログレベル '%s' が指定されました。INFO レベルで続行します。", level)
	}
	logLevel.Store(int32(lv))
}

// CurrentLevel は現在のログレベルを返します。
func CurrentLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// Enabled は指定レベルのログが出力対象かどうかを返します。
func Enabled(level LogLevel) bool {
	return CurrentLevel() <= level
}

func output(level LogLevel, format string, v ...interface{}) {
	if !Enabled(level) {
		return
	}
	log.Printf("["+level.String()+"] "+format, v...)
}

// Debugf は DEBUG レベルのログを出力します。
func Debugf(format string, v ...interface{}) {
	output(LevelDebug, format, v...)
}

// Infof は INFO レベルのログを出力します。
func Infof(format string, v ...interface{}) {
	output(LevelInfo, format, v...)
}

// Warnf は WARN レベルのログを出力します。
func Warnf(format string, v ...interface{}) {
	output(LevelWarn, format, v...)
}

// Errorf は ERROR レベルのログを出力します。
func Errorf(format string, v ...interface{}) {
	output(LevelError, format, v...)
}
