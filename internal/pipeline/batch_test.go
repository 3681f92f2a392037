package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/safemac-dev/safemac/internal/model"
)

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	t.Run("generates a run ID", func(t *testing.T) {
		t.Parallel()

		a := NewBatchProcessor(New())
		b := NewBatchProcessor(New())
		if a.RunID() == "" || a.RunID() == b.RunID() {
			t.Errorf("expected distinct run IDs, got %q and %q", a.RunID(), b.RunID())
		}
	})

	t.Run("WithRunID overrides", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(New(), WithRunID("fixed"), WithBatchLogger(nil))
		if bp.RunID() != "fixed" {
			t.Errorf("RunID() = %q", bp.RunID())
		}
		if bp.logger == nil {
			t.Error("expected default logger")
		}
	})
}

func TestProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("checks sites in order and skips missing ones", func(t *testing.T) {
		t.Parallel()

		first := t.TempDir()
		second := t.TempDir()
		missing := filepath.Join(t.TempDir(), "gone")

		visited := make([]string, 0)
		p := New()
		p.AddStep(&mockStep{
			name: "record",
			doFunc: func(_ context.Context, r *model.CheckReport) error {
				visited = append(visited, r.Site)
				return nil
			},
		})

		bp := NewBatchProcessor(p, WithRunID("run-7"))
		reports, err := bp.ProcessBatch(context.Background(), []string{first, missing, second})
		if err != nil {
			t.Fatal(err)
		}

		if len(reports) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(reports))
		}
		if strings.Join(visited, ",") != first+","+second {
			t.Errorf("visited = %v", visited)
		}
		if len(reports[1].Errors) != 1 || !strings.Contains(reports[1].Errors[0], model.ErrSiteNotFound.Error()) {
			t.Errorf("missing site report errors = %v", reports[1].Errors)
		}
		for _, r := range reports {
			if r.RunID != "run-7" {
				t.Errorf("report run ID = %q", r.RunID)
			}
			if r.FinishedAt.IsZero() {
				t.Error("FinishedAt should be set")
			}
		}
	})

	t.Run("stops at cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := New()
		p.AddStep(&mockStep{
			name: "cancel",
			doFunc: func(ctx context.Context, _ *model.CheckReport) error {
				cancel()
				return ctx.Err()
			},
		})

		bp := NewBatchProcessor(p)
		reports, err := bp.ProcessBatch(ctx, []string{t.TempDir(), t.TempDir()})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if len(reports) != 1 {
			t.Fatalf("expected the interrupted site only, got %d reports", len(reports))
		}
		if !reports[0].Cancelled {
			t.Error("interrupted report should be marked cancelled")
		}
	})

	t.Run("callback receives indexes", func(t *testing.T) {
		t.Parallel()

		sites := []string{t.TempDir(), t.TempDir(), t.TempDir()}
		indexes := make([]int, 0)

		bp := NewBatchProcessor(New())
		err := bp.ProcessBatchWithCallback(context.Background(), sites, func(r *model.CheckReport, i int) {
			if r.Site != sites[i] {
				t.Errorf("index %d carries site %s", i, r.Site)
			}
			indexes = append(indexes, i)
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(indexes) != 3 || indexes[2] != 2 {
			t.Errorf("indexes = %v", indexes)
		}
	})
}
