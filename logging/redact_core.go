package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// redactCore filters fields before they reach the wrapped core, so loggers
// obtained through Logger.Zap are redacted the same way as the wrapper methods.
type redactCore struct {
	zapcore.Core
}

// NewRedactingCore wraps c so that sensitive fields and values are replaced
// with RedactedPlaceholder.
func NewRedactingCore(c zapcore.Core) zapcore.Core {
	if _, ok := c.(*redactCore); ok {
		return c
	}
	return &redactCore{Core: c}
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = RedactSensitiveData(ent.Message)
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = redactField(f)
	}
	return out
}

func redactField(f zapcore.Field) zapcore.Field {
	if IsSensitiveField(f.Key) {
		return zap.String(f.Key, RedactedPlaceholder)
	}
	switch f.Type {
	case zapcore.StringType:
		if redacted := RedactSensitiveData(f.String); redacted != f.String {
			return zap.String(f.Key, redacted)
		}
	case zapcore.ErrorType:
		if err, ok := f.Interface.(error); ok {
			if msg := err.Error(); ContainsSensitiveData(msg) {
				return zap.String(f.Key, RedactSensitiveData(msg))
			}
		}
	}
	return f
}
