package main

import (
	"context"
	"errors"
	"testing"
)

func TestCounterRejectsPaddedLayout(t *testing.T) {
	err := newRootCmd().ParseAndRun(context.Background(),
		[]string{"-layout", "padded", "counter", "-goroutines", "1", "-iterations", "2"})
	if !errors.Is(err, errCounterLayout) {
		t.Fatalf("ParseAndRun = %v, want errCounterLayout", err)
	}
}

func TestUnknownLayout(t *testing.T) {
	err := newRootCmd().ParseAndRun(context.Background(), []string{"-layout", "striped", "counter"})
	if err == nil {
		t.Fatal("ParseAndRun accepted an unknown layout")
	}
}
