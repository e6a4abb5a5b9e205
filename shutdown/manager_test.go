package shutdown

import (
	"context"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"areacapture/core"
)

func TestManager_HandleSignal(t *testing.T) {
	forcedWith := -1
	m := NewManager(zaptest.NewLogger(t), WithForceExit(func(code int) { forcedWith = code }))

	m.HandleSignal(syscall.SIGTERM)

	select {
	case <-m.Context().Done():
	default:
		t.Fatal("first signal should cancel the context")
	}
	if !m.IsShuttingDown() {
		t.Error("IsShuttingDown() = false after signal")
	}
	if m.ExitCode() != core.ExitCodeSIGTERM {
		t.Errorf("ExitCode() = %d, want %d", m.ExitCode(), core.ExitCodeSIGTERM)
	}
	if forcedWith != -1 {
		t.Fatal("first signal must not force exit")
	}

	m.HandleSignal(os.Interrupt)
	if forcedWith != core.ExitCodeSIGTERM {
		t.Errorf("force exit code = %d, want %d", forcedWith, core.ExitCodeSIGTERM)
	}
	if m.Signal() != syscall.SIGTERM {
		t.Errorf("Signal() = %v, want the first signal", m.Signal())
	}
}

func TestManager_ExitCodeWithoutSignal(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	m.Trigger()

	if m.ExitCode() != core.ExitCodeSuccess {
		t.Errorf("ExitCode() = %d, want success", m.ExitCode())
	}
	if m.Context().Err() == nil {
		t.Error("Trigger() should cancel the context")
	}
}

func TestManager_ShutdownWaitsForOperations(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t), WithTimeout(2*time.Second))

	started := make(chan struct{})
	release := make(chan struct{})
	opDone := make(chan error, 1)
	go func() {
		opDone <- m.WrapOperation(context.Background(), "generation", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	cleanupRan := make(chan struct{})
	m.Register("after-ops", 10, func(context.Context) error {
		if m.ActiveOperations() != 0 {
			t.Error("cleanup ran while an operation was in flight")
		}
		close(cleanupRan)
		return nil
	})

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	<-cleanupRan
	if err := <-opDone; err != nil {
		t.Errorf("operation error = %v", err)
	}

	err := m.WrapOperation(context.Background(), "late", func(context.Context) error { return nil })
	if !errors.Is(err, ErrTrackerClosed) {
		t.Errorf("WrapOperation() after shutdown = %v, want ErrTrackerClosed", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Errorf("second Shutdown() = %v, want nil", err)
	}
}

func TestManager_ShutdownReportsErrors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	boom := errors.New("close failed")
	m.Register("database", 30, func(context.Context) error { return boom })

	err := m.Shutdown()
	if !errors.Is(err, boom) {
		t.Errorf("Shutdown() = %v, want wrapped %v", err, boom)
	}
}

func TestManager_StartIsIdempotent(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	m.Start()
	m.Start()

	if err := m.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
