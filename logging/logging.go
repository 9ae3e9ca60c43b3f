package logging

import "sync/atomic"

const (
	// TraceLevel indicates a log message's level of criticality
	TraceLevel = iota
	// DebugLevel indicates a log message's level of criticality
	DebugLevel
	// InfoLevel indicates a log message's level of criticality
	InfoLevel
	// WarnLevel indicates a log message's level of criticality
	WarnLevel
	// ErrorLevel indicates a log message's level of criticality
	ErrorLevel
	// FatalLevel indicates a log message's level of criticality
	FatalLevel
)

var verbosity int32 = WarnLevel

// SetLogLevel adjusts the minimum level at which Sieve emits log messages
func SetLogLevel(level int) {
	atomic.StoreInt32(&verbosity, int32(level))
}

// Enabled returns true iff messages at the given level should be logged
func Enabled(level int) bool {
	return int32(level) >= atomic.LoadInt32(&verbosity)
}

// LogLevelToString translates a log level enum to a string representation
func LogLevelToString(level int) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "TRACE"
	}
}
