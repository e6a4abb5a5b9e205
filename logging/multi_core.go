package logging

import (
	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees console and file output behind a redacting core.
//
// The file, when fileWriter is non-nil, always receives JSON. The console is
// colored and human-readable when isDev is set, JSON otherwise.
func NewMultiCore(level zapcore.LevelEnabler, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var consoleEncoder zapcore.Encoder
	if isDev {
		consoleEncoder = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		consoleEncoder = zapcore.NewJSONEncoder(NewEncoderConfig())
	}

	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, consoleWriter, level)}
	if fileWriter != nil {
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(NewEncoderConfig()), fileWriter, level))
	}
	return NewRedactingCore(zapcore.NewTee(cores...))
}
