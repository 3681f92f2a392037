package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "safemac" {
			t.Errorf("expected use 'safemac', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" {
			t.Error("expected non-empty short description")
		}
		if cmd.Long == "" {
			t.Error("expected non-empty long description")
		}
	})

	t.Run("has version", func(t *testing.T) {
		t.Parallel()
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("runs the menu without subcommand", func(t *testing.T) {
		t.Parallel()
		if cmd.RunE == nil {
			t.Error("expected RunE for the interactive menu")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		flags := []struct {
			name      string
			shorthand string
		}{
			{name: "verbose", shorthand: "v"},
			{name: "config", shorthand: "c"},
			{name: "site-list", shorthand: "s"},
			{name: "data-dir"},
			{name: "log-dir"},
			{name: "no-color"},
			{name: "log-json"},
		}
		for _, f := range flags {
			flag := cmd.PersistentFlags().Lookup(f.name)
			if flag == nil {
				t.Errorf("expected %s flag", f.name)
				continue
			}
			if flag.Shorthand != f.shorthand {
				t.Errorf("flag %s: expected shorthand %q, got %q", f.name, f.shorthand, flag.Shorthand)
			}
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{
			"scan [base-path...]": false,
			"check [site...]":     false,
			"lock [site...]":      false,
			"unlock [site...]":    false,
			"history [site]":      false,
			"init":                false,
			"version":             false,
		}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Use]; ok {
				want[sub.Use] = true
			}
		}
		for use, found := range want {
			if !found {
				t.Errorf("expected %q subcommand", use)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage {
			t.Error("expected SilenceUsage to be true")
		}
		if !cmd.SilenceErrors {
			t.Error("expected SilenceErrors to be true")
		}
	})
}
