package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/safemac-dev/safemac/internal/model"
	"github.com/safemac-dev/safemac/internal/sitelist"
	"github.com/spf13/cobra"
)

// runMenuCmd starts the interactive menu.
func runMenuCmd(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	return a.runMenu(cmd.Context())
}

// runMenu shows the main menu until the operator exits or input ends.
//
// Signals are only trapped while an action runs: Ctrl+C at the prompt
// ends the program, Ctrl+C during an action stops that action.
func (a *app) runMenu(ctx context.Context) error {
	a.con.Header("MacCMS file check system " + getVersion())
	a.con.Println()

	if !sitelist.Exists(a.cfg.SiteListPath) {
		a.con.Warn("No site list found, scanning for MacCMS sites...")
		a.con.Println()
		sites, err := a.withSignals(ctx, func(ctx context.Context) ([]string, error) {
			return a.scanSites(ctx)
		})
		if err != nil {
			return err
		}
		if len(sites) == 0 {
			return fmt.Errorf("%w: the site scan found nothing", errNoSites)
		}
	}

	for {
		a.con.Success("Choose an action:")
		a.con.Println("1. Update site list")
		a.con.Println("2. Run malware check")
		a.con.Println("3. Lock website files")
		a.con.Println("4. Unlock website files")
		a.con.Println("0. Exit")
		a.con.Println()

		choice, ok := a.con.Prompt("Enter choice [0-4]: ")
		a.con.Println()
		if !ok {
			a.con.Success("Goodbye.")
			return nil
		}

		switch choice {
		case "1":
			a.con.Warn("Updating site list...")
			a.reportMenuError(a.withSignals(ctx, a.scanSites))
		case "2":
			a.menuCheck(ctx)
		case "3":
			a.menuProtect(ctx, model.OperationLock)
		case "4":
			a.menuProtect(ctx, model.OperationUnlock)
		case "0":
			a.con.Success("Goodbye.")
			return nil
		default:
			a.con.Fail("Invalid choice, try again.")
			a.con.Println()
		}
	}
}

// menuCheck runs the malware check on every listed site after the
// operator confirms the warning.
func (a *app) menuCheck(ctx context.Context) {
	a.con.Fail("WARNING: this may modify site files. Back up your sites first.")
	a.con.Warn("Press Ctrl+C to interrupt the check.")
	a.con.Println()

	if !a.con.Confirm("Continue?") {
		a.con.Success("Cancelled.")
		a.con.Println()
		return
	}

	sites, err := a.resolveSites(nil)
	if err != nil {
		a.reportMenuError(nil, err)
		return
	}

	a.con.Warn("Starting malware check...")
	_, err = a.withSignals(ctx, func(ctx context.Context) ([]string, error) {
		_, err := a.checkSites(ctx, sites)
		return nil, err
	})
	a.reportMenuError(nil, err)
	a.con.Println()
}

// menuProtect locks or unlocks the listed sites the operator selects.
func (a *app) menuProtect(ctx context.Context, op model.Operation) {
	listed, err := a.resolveSites(nil)
	if err != nil {
		a.reportMenuError(nil, err)
		return
	}

	sites := a.selectSites(listed)
	if len(sites) == 0 {
		a.con.Fail("No valid site selected.")
		a.con.Println()
		return
	}
	a.con.Warn("Selected sites:")
	for _, s := range sites {
		a.con.Printf("  %s\n", s)
	}
	a.con.Println()

	_, err = a.withSignals(ctx, func(ctx context.Context) ([]string, error) {
		_, err := a.protectSites(ctx, op, sites)
		return nil, err
	})
	a.reportMenuError(nil, err)
}

// selectSites prints the numbered site list and returns the sites the
// operator picks, by number or with "all". End of input selects nothing.
func (a *app) selectSites(sites []string) []string {
	a.con.Success("Sites:")
	for i, s := range sites {
		a.con.Printf("%2d. %s\n", i+1, s)
	}
	a.con.Println()

	answer, ok := a.con.Prompt("Select sites (numbers separated by spaces, or 'all'): ")
	if !ok {
		a.con.Println()
		return nil
	}
	return pickSites(sites, answer)
}

// pickSites resolves a selection answer against sites. Numbers are 1-based;
// out of range and non-numeric words are ignored, and repeats count once.
func pickSites(sites []string, answer string) []string {
	if strings.EqualFold(strings.TrimSpace(answer), "all") {
		return sites
	}

	picked := make([]string, 0, len(sites))
	seen := make(map[int]bool, len(sites))
	for _, word := range strings.Fields(answer) {
		n, err := strconv.Atoi(word)
		if err != nil || n < 1 || n > len(sites) || seen[n] {
			continue
		}
		seen[n] = true
		picked = append(picked, sites[n-1])
	}
	return picked
}

// withSignals runs fn with a context cancelled by SIGINT or SIGTERM and
// restores the default signal behavior afterwards.
func (a *app) withSignals(ctx context.Context, fn func(context.Context) ([]string, error)) ([]string, error) {
	sctx, stop := signalContext(ctx)
	defer stop()
	return fn(sctx)
}

// reportMenuError prints err, if any; the menu keeps running.
func (a *app) reportMenuError(_ []string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		a.con.Warn("Interrupted.")
	} else {
		a.con.Fail("Error: %v", err)
	}
	a.con.Println()
}
