package logs

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Logger logger interface
type Logger interface {
	Debug(ctx context.Context, msg string, args ...interface{})
	Info(ctx context.Context, msg string, args ...interface{})
	Warn(ctx context.Context, msg string, args ...interface{})
	Error(ctx context.Context, msg string, args ...interface{})
}

// LogLevel log level
type LogLevel int

const (
	//Debug enable debug or above log output
	Debug LogLevel = 0
	//Info enable info or above log output
	Info LogLevel = 1
	//Warn enable warn or above log output
	Warn LogLevel = 2
	//Error enable error or above log output
	Error LogLevel = 3
)

var levelNames = map[LogLevel]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

func (ll LogLevel) String() string {
	return levelNames[ll]
}

//ParseLevel parse a level name such as "info" or "WARN", unknown names yield Info and false
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		name = "WARN"
	}
	for level, levelName := range levelNames {
		if levelName == name {
			return level, true
		}
	}
	return Info, false
}

type defaultLogger struct {
	mu       sync.Mutex
	writer   io.StringWriter
	logLevel LogLevel
}

//NewLogger init Logger instance, safe for use by concurrent tasks
func NewLogger(writer io.StringWriter, logLevel LogLevel) *defaultLogger {
	return &defaultLogger{writer: writer, logLevel: logLevel}
}

func (l *defaultLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	l.output(Debug, msg, args...)
}

func (l *defaultLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.output(Info, msg, args...)
}

func (l *defaultLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.output(Warn, msg, args...)
}

func (l *defaultLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.output(Error, msg, args...)
}

func (l *defaultLogger) output(level LogLevel, msg string, args ...interface{}) {
	if level < l.logLevel {
		return
	}
	line := logBase(level) + fmt.Sprintf(msg, args...) + "\n"
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writer.WriteString(line)
}

var seperatorReg = regexp.MustCompile("[/\\\\]")

func fileLine() string {
	_, file, line, ok := runtime.Caller(4)
	if ok {
		idx := seperatorReg.FindAllStringIndex(file, -1)
		if len(idx) > 0 {
			file = file[idx[len(idx)-1][1]:]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
	return ""
}

func logBase(level LogLevel) string {
	return fmt.Sprintf("%v [%s] %s ", time.Now().Format("2006-01-02 15:04:05.000000"), level, fileLine())
}
