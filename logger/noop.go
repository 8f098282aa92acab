package logger

import "go.uber.org/zap"

// NewNop returns a logger that discards everything. Components default
// to it when built without an explicit logger.
func NewNop() *DefaultLogger {
	return &DefaultLogger{logger: zap.NewNop().Sugar()}
}
