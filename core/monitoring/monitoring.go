// Package monitoring is a process-wide error reporting facade. The default
// monitor discards everything; main installs a Sentry backed one.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// PanicError converts a recovered value into an error and reports it. It
// returns nil when r is nil, so it can wrap recover() directly.
func PanicError(r any, tags map[string]string) error {
	if r == nil {
		return nil
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	err = fmt.Errorf("panic: %w", err)
	CaptureException(err, tags)
	return err
}

// Recover captures panics in goroutines.
func Recover() { get().Recover() }

// Flush flushes buffered events.
func Flush(d time.Duration) { get().Flush(d) }
