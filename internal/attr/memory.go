package attr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryOperator records immutable flags in memory instead of on disk.
//
// It is used for dry runs and by tests that cannot obtain CAP_LINUX_IMMUTABLE.
// SetImmutable and ClearImmutable fail like the real mechanism when the path
// does not exist.
type MemoryOperator struct {
	mu        sync.Mutex
	flags     map[string]bool
	failures  map[string]error
	supported error
	calls     int
}

// NewMemoryOperator creates an empty MemoryOperator.
func NewMemoryOperator() *MemoryOperator {
	return &MemoryOperator{
		flags:    make(map[string]bool),
		failures: make(map[string]error),
	}
}

// Name returns "memory".
func (m *MemoryOperator) Name() string {
	return "memory"
}

// FailOn makes every toggle of path return err.
func (m *MemoryOperator) FailOn(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[filepath.Clean(path)] = err
}

// SetSupported sets the value returned by Supported.
func (m *MemoryOperator) SetSupported(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supported = err
}

// SetImmutable records path as immutable.
func (m *MemoryOperator) SetImmutable(path string) error {
	return m.set(path, true)
}

// ClearImmutable records path as writable.
func (m *MemoryOperator) ClearImmutable(path string) error {
	return m.set(path, false)
}

// IsImmutable reports the recorded flag of path.
func (m *MemoryOperator) IsImmutable(path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[filepath.Clean(path)], nil
}

// Supported returns the value configured with SetSupported.
func (m *MemoryOperator) Supported(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supported
}

// Calls returns how many toggles were requested.
func (m *MemoryOperator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Immutable returns every path currently recorded as immutable, sorted.
func (m *MemoryOperator) Immutable() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.flags))
	for p, on := range m.flags {
		if on {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryOperator) set(path string, immutable bool) error {
	clean := filepath.Clean(path)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err, ok := m.failures[clean]; ok {
		return err
	}
	if _, err := os.Lstat(clean); err != nil {
		return fmt.Errorf("toggle %s: %w", clean, err)
	}
	m.flags[clean] = immutable
	return nil
}
