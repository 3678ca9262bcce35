package testutil

import (
	"log"
	"strings"
	"testing"
)

// testWriter routes logger output through t.Log so it is captured per
// test and only shown on failure or with -v.
type testWriter struct {
	t *testing.T
}

func (w *testWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	// background goroutines may still log after the test has finished;
	// t.Log panics then
	defer func() { _ = recover() }()
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return n, nil
}

// TestLogger returns a logger scoped to the running test.
func TestLogger(t *testing.T) *log.Logger {
	return log.New(&testWriter{t: t}, t.Name()+" ", log.LstdFlags)
}
