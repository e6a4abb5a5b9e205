package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewMultiCore_TeesBothOutputs(t *testing.T) {
	var console, file bytes.Buffer
	core := NewMultiCore(zapcore.InfoLevel, zapcore.AddSync(&console), zapcore.AddSync(&file), true)

	zap.New(core).Info("tee", zap.String("k", "v"))

	if !strings.Contains(console.String(), "tee") {
		t.Errorf("console missing entry: %q", console.String())
	}
	if strings.HasPrefix(strings.TrimSpace(console.String()), "{") {
		t.Errorf("development console should not be JSON: %q", console.String())
	}
	if !strings.Contains(file.String(), `"k":"v"`) {
		t.Errorf("file should be JSON: %q", file.String())
	}
}

func TestNewMultiCore_ConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	core := NewMultiCore(zapcore.DebugLevel, zapcore.AddSync(&console), nil, false)

	zap.New(core).Debug("only console")

	if !strings.Contains(console.String(), `"message":"only console"`) {
		t.Errorf("production console should be JSON: %q", console.String())
	}
}

func TestNewRedactingCore_Idempotent(t *testing.T) {
	base := zapcore.NewNopCore()
	once := NewRedactingCore(base)
	if twice := NewRedactingCore(once); twice != once {
		t.Error("wrapping a redacting core twice should return it unchanged")
	}
}

func TestNewFileWriter_Defaults(t *testing.T) {
	path := t.TempDir() + "/nested/app.log"
	w, closer, err := NewFileWriter(path, FileWriterConfig{})
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer closer()

	if _, err := w.Write([]byte("line\n")); err != nil {
		t.Errorf("Write() error = %v", err)
	}
}
