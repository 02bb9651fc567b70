package cli

import (
	"context"
	"testing"
	"time"
)

func TestSignalContext(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SignalContext(parent)
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled too early")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with its parent")
	}
}

func TestSignalContextStop(t *testing.T) {
	ctx, stop := SignalContext(context.Background())
	stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop should cancel the context")
	}
}
