package builder

// Logger receives build progress. The builder emits Debug for per-source
// fetch/extract/remap detail and Info for pipeline command execution;
// callers plug in their own implementation via Config.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
}

// noopLogger discards everything. Used when Config.Logger is nil, so the
// build core never prints on its own.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}

func defaultLogger() Logger {
	return noopLogger{}
}
