package logger

// Logger is the structured logging interface the store, watcher and
// supporting services log through. Messages take alternating key/value
// pairs, zap sugared style.
type Logger interface {
	DebugW(msg string, keysAndValues ...any)
	InfoW(msg string, keysAndValues ...any)
	WarnW(msg string, keysAndValues ...any)
	ErrorW(msg string, keysAndValues ...any)
	Sync() error
}
