package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// console is the colored operator-facing output of the CLI. Diagnostics go
// through slog to stderr; console output goes to stdout.
type console struct {
	out io.Writer
	in  *bufio.Reader

	header  *color.Color
	success *color.Color
	warning *color.Color
	failure *color.Color
	plain   *color.Color
}

// newConsole creates a console writing to out and reading answers from in.
func newConsole(out io.Writer, in io.Reader, noColor bool) *console {
	c := &console{
		out:     out,
		in:      bufio.NewReader(in),
		header:  color.New(color.FgHiCyan, color.Bold),
		success: color.New(color.FgGreen),
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
		plain:   color.New(color.Reset),
	}
	if noColor {
		for _, col := range []*color.Color{c.header, c.success, c.warning, c.failure, c.plain} {
			col.DisableColor()
		}
	}
	return c
}

// Header prints a framed title.
func (c *console) Header(title string) {
	line := strings.Repeat("=", 50)
	c.header.Fprintln(c.out, line)
	c.header.Fprintln(c.out, "  "+title)
	c.header.Fprintln(c.out, line)
}

// Success prints a green line.
func (c *console) Success(format string, a ...any) {
	c.success.Fprintf(c.out, format+"\n", a...)
}

// Warn prints a yellow line.
func (c *console) Warn(format string, a ...any) {
	c.warning.Fprintf(c.out, format+"\n", a...)
}

// Fail prints a red line.
func (c *console) Fail(format string, a ...any) {
	c.failure.Fprintf(c.out, format+"\n", a...)
}

// Println prints an uncolored line.
func (c *console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

// Printf prints uncolored text.
func (c *console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// Prompt prints prompt and returns the trimmed answer. ok is false when the
// input is exhausted.
func (c *console) Prompt(prompt string) (answer string, ok bool) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Confirm asks a yes/no question that defaults to no. Only y, yes or 是
// (case-insensitive) approve; end of input declines.
func (c *console) Confirm(prompt string) bool {
	answer, ok := c.Prompt(prompt + " (y/N): ")
	if !ok {
		c.Println()
		c.Warn("Cancelled.")
		return false
	}
	return isYes(answer)
}

// isYes reports whether answer is an explicit approval.
func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "是":
		return true
	default:
		return false
	}
}
