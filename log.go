package quarry

import (
	"io"
	"log"
	"os"
)

// Logger provides leveled logging for the simulation core. The zero value is
// not usable; construct with NewLogger or NewLoggerTo.
type Logger struct {
	infoLogger *log.Logger
	warnLogger *log.Logger
	errLogger  *log.Logger
}

// NewLogger creates a logger writing info and warnings to stdout and errors
// to stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a logger with explicit sinks. Tests typically pass
// io.Discard for both.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{
		infoLogger: log.New(out, "[QUARRY-INFO] ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger: log.New(out, "[QUARRY-WARN] ", log.Ldate|log.Ltime|log.Lshortfile),
		errLogger:  log.New(errOut, "[QUARRY-ERROR] ", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.infoLogger.Printf(format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.warnLogger.Printf(format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.errLogger.Printf(format, v...)
}
