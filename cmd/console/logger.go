package main

import (
	"fmt"
	"strings"

	accounts "github.com/ia-nocode/user-roles-v4"
)

type structuredLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// logLevel normalizes the configured level name, unknown names fall back
// to info.
func logLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "trace", "debug", "info", "warn", "error":
		return l
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

// printfLogger adapts a structured glog logger to the printf style
// accounts.Logger. Level filtering is left to glog.
type printfLogger struct {
	out structuredLogger
}

func (l printfLogger) Debug(format string, args ...any) {
	l.out.Debug(fmt.Sprintf(format, args...))
}

func (l printfLogger) Info(format string, args ...any) {
	l.out.Info(fmt.Sprintf(format, args...))
}

func (l printfLogger) Warn(format string, args ...any) {
	l.out.Warn(fmt.Sprintf(format, args...))
}

func (l printfLogger) Error(format string, args ...any) {
	l.out.Error(fmt.Sprintf(format, args...))
}

func newLoggerProvider(get func(name string) structuredLogger) accounts.LoggerProvider {
	return accounts.LoggerProviderFunc(func(name string) accounts.Logger {
		return printfLogger{out: get(name)}
	})
}
