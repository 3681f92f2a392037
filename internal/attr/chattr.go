package attr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a single chattr or lsattr invocation.
const DefaultCommandTimeout = 30 * time.Second

// runFunc executes a program with an argument vector and returns its
// captured stdout and stderr.
type runFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ChattrOperator toggles the attribute with chattr(1) and reads it with lsattr(1).
//
// Design decision: Arguments are always passed as a vector to exec, never
// through a shell, and paths are made absolute first so a file named like an
// option ("-R", "+a") can never be parsed as one.
type ChattrOperator struct {
	chattr  string
	lsattr  string
	timeout time.Duration
	run     runFunc
}

// ChattrOption configures a ChattrOperator.
type ChattrOption func(*ChattrOperator)

// WithBinaries overrides the chattr and lsattr program names.
func WithBinaries(chattr, lsattr string) ChattrOption {
	return func(o *ChattrOperator) {
		if chattr != "" {
			o.chattr = chattr
		}
		if lsattr != "" {
			o.lsattr = lsattr
		}
	}
}

// WithCommandTimeout sets the per-invocation timeout.
func WithCommandTimeout(d time.Duration) ChattrOption {
	return func(o *ChattrOperator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// withRunner replaces process execution. Used by tests.
func withRunner(r runFunc) ChattrOption {
	return func(o *ChattrOperator) {
		o.run = r
	}
}

// NewChattrOperator creates a ChattrOperator using chattr and lsattr from PATH.
func NewChattrOperator(opts ...ChattrOption) *ChattrOperator {
	o := &ChattrOperator{
		chattr:  "chattr",
		lsattr:  "lsattr",
		timeout: DefaultCommandTimeout,
		run:     execRun,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Name returns "chattr".
func (o *ChattrOperator) Name() string {
	return "chattr"
}

// SetImmutable runs chattr +i on path.
func (o *ChattrOperator) SetImmutable(path string) error {
	return o.toggle("+i", path)
}

// ClearImmutable runs chattr -i on path.
func (o *ChattrOperator) ClearImmutable(path string) error {
	return o.toggle("-i", path)
}

// IsImmutable runs lsattr -d on path and looks for the i flag.
func (o *ChattrOperator) IsImmutable(path string) (bool, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	stdout, stderr, err := o.run(ctx, o.lsattr, "-d", abs)
	if err != nil {
		return false, commandError(o.lsattr, err, stderr)
	}
	return parseLsattr(string(stdout))
}

// Supported runs chattr without arguments. chattr prints its usage on stderr
// and exits non-zero; seeing that usage line proves the binary resolves.
func (o *ChattrOperator) Supported(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	_, stderr, err := o.run(ctx, o.chattr)
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnsupported, o.chattr)
	}
	lower := strings.ToLower(string(stderr))
	if !strings.Contains(lower, "usage:") {
		return fmt.Errorf("%w: unexpected response from %s", ErrUnsupported, o.chattr)
	}
	return nil
}

func (o *ChattrOperator) toggle(mode, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	_, stderr, err := o.run(ctx, o.chattr, mode, abs)
	if err != nil {
		return commandError(o.chattr, err, stderr)
	}
	return nil
}

// parseLsattr extracts the attribute field from "----i---------e---- /path".
func parseLsattr(out string) (bool, error) {
	fields := strings.Fields(out)
	if len(fields) < 2 {
		return false, fmt.Errorf("unexpected lsattr output %q", strings.TrimSpace(out))
	}
	return strings.ContainsRune(fields[0], 'i'), nil
}

func commandError(name string, err error, stderr []byte) error {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		return fmt.Errorf("%s: %w", name, err)
	}
	return fmt.Errorf("%s: %w: %s", name, err, msg)
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // fixed program, argument vector
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
