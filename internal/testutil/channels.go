// Package testutil provides shared test helpers for asynchronous code.
package testutil

import (
	"testing"
	"time"
)

// DefaultTestTimeout bounds waits on background work in tests.
const DefaultTestTimeout = 5 * time.Second

// Receive returns the next value from ch or fails the test after
// DefaultTestTimeout.
func Receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(DefaultTestTimeout):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

// ExpectNone fails the test if ch yields a value within wait.
func ExpectNone[T any](t *testing.T, ch <-chan T, wait time.Duration) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(wait):
	}
}
