package lifecycle_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/certify/pkg/lifecycle"
)

func TestReadiness(t *testing.T) {
	lc := lifecycle.New()
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup: %v", err)
	}
	if !lc.Ready() {
		t.Error("should be ready after WaitForStartup")
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if lc.Ready() {
		t.Error("should not be ready after Shutdown")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var count atomic.Int32
	for range 3 {
		lc.OnStartup("counter", func(context.Context) error {
			count.Add(1)
			return nil
		})
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup: %v", err)
	}
	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
}

func TestStartupFailureBlocksReadiness(t *testing.T) {
	lc := lifecycle.New()
	boom := errors.New("ping refused")

	lc.OnStartup("database", func(context.Context) error { return boom })
	lc.OnStartup("storage", func(context.Context) error { return nil })

	err := lc.WaitForStartup()
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if !strings.Contains(err.Error(), "database") {
		t.Errorf("got %q, want hook name in error", err)
	}
	if lc.Ready() {
		t.Error("ready despite failed startup hook")
	}
}

func TestShutdownHooksExecute(t *testing.T) {
	lc := lifecycle.New()

	var cleaned atomic.Bool
	lc.OnShutdown(func() {
		if lc.Context().Err() == nil {
			t.Error("shutdown hook ran before cancellation")
		}
		cleaned.Store(true)
	})

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if !cleaned.Load() {
		t.Error("shutdown hook did not execute")
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New()

	lc.OnShutdown(func() {
		time.Sleep(500 * time.Millisecond)
	})

	if err := lc.Shutdown(50 * time.Millisecond); err == nil {
		t.Error("expected timeout error, got nil")
	}
}
