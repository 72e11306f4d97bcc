// internal/logging/otel.go
package logging

import (
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WithOTELBridge returns a logger whose records also flow to the OTEL
// collector through the otelzap bridge. The stdout core keeps writing;
// a nil provider returns the logger unchanged.
func (l *Logger) WithOTELBridge(provider log.LoggerProvider) *Logger {
	if provider == nil {
		return l
	}
	bridged := l.zap.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, otelzap.NewCore("lexd",
			otelzap.WithLoggerProvider(provider),
		))
	}))
	return &Logger{
		zap:    bridged,
		config: l.config,
	}
}
