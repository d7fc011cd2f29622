package dice

import "go.uber.org/zap"

// LoggedSource wraps a Source and logs every draw at debug level.
// Logging is skipped entirely when debug is disabled, so wrapping is cheap in production.
type LoggedSource struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedSource creates a LoggedSource that draws from src and logs to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedSource(src Source, logger *zap.Logger) *LoggedSource {
	if src == nil || logger == nil {
		panic("dice.NewLoggedSource: src and logger must be non-nil")
	}
	return &LoggedSource{src: src, logger: logger}
}

// Intn draws from the wrapped source and logs the result.
func (l *LoggedSource) Intn(n int) int {
	v := l.src.Intn(n)
	if ce := l.logger.Check(zap.DebugLevel, "dice intn"); ce != nil {
		ce.Write(zap.Int("n", n), zap.Int("value", v))
	}
	return v
}

// Float64 draws from the wrapped source and logs the result.
func (l *LoggedSource) Float64() float64 {
	v := l.src.Float64()
	if ce := l.logger.Check(zap.DebugLevel, "dice float"); ce != nil {
		ce.Write(zap.Float64("value", v))
	}
	return v
}
