package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/safemac-dev/safemac/internal/detect"
	"github.com/safemac-dev/safemac/internal/logsink"
	"github.com/safemac-dev/safemac/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

// infectedSite builds a site with one finding of every kind.
func infectedSite(t *testing.T) string {
	t.Helper()
	site := filepath.Join(t.TempDir(), "infected")
	writeFile(t, filepath.Join(site, "application", "extra", "active.php"), "<?php @eval($_POST['x']);")
	writeFile(t, filepath.Join(site, "application", "extra", "addons.php"), "<?php // ThinkPHP hooks loader\nreturn array('hooks' => array('x'));")
	writeFile(t, filepath.Join(site, "static", "js", "home.js"), "if(/Mac|Win/.test(navigator.platform)){document.body.appendChild(s)}")
	writeFile(t, filepath.Join(site, "template", "default", "index.html"), `<script src="https://evil.example/a.js"></script>`)
	return site
}

func newSink(t *testing.T) *logsink.Sink {
	t.Helper()
	sink, err := logsink.New(t.TempDir(), time.Date(2025, 1, 31, 14, 25, 1, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return sink
}

func runDefault(t *testing.T, site string, opts ...DefaultPipelineOption) *model.CheckReport {
	t.Helper()
	p, err := DefaultPipeline(model.DefaultRuleSet(), newSink(t), []Option{WithContinueOnError(true)}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	report := model.NewCheckReport("run", site)
	if err := p.Execute(context.Background(), report); err != nil {
		t.Fatal(err)
	}
	return report
}

func TestDefaultPipelineSteps(t *testing.T) {
	t.Parallel()

	p, err := DefaultPipeline(model.DefaultRuleSet(), newSink(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"exact_file", "hijack", "pattern_scan"}
	got := p.StepNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("StepNames() = %v, want %v", got, want)
	}
}

func TestDefaultPipelineInvalidPattern(t *testing.T) {
	t.Parallel()

	rules := model.DefaultRuleSet()
	rules.Patterns = append(rules.Patterns, model.PatternSignature{Name: "broken", Regex: "[a-"})

	if _, err := DefaultPipeline(rules, newSink(t), nil); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestCheckWithoutConfirmerChangesNothing(t *testing.T) {
	t.Parallel()

	site := infectedSite(t)
	report := runDefault(t, site)

	if got := len(report.FindingsOfKind(model.KindExactFile)); got != 1 {
		t.Errorf("exact-file findings = %d, want 1", got)
	}
	if got := len(report.FindingsOfKind(model.KindHijack)); got != 1 {
		t.Errorf("hijack findings = %d, want 1", got)
	}
	if got := len(report.FindingsOfKind(model.KindPattern)); got != 1 {
		t.Errorf("pattern findings = %d, want 1", got)
	}
	if got := len(report.FindingsOfKind(model.KindExternalScript)); got != 1 {
		t.Errorf("external script findings = %d, want 1", got)
	}

	for _, f := range report.Findings {
		if f.Kind == model.KindExactFile || f.Kind == model.KindHijack {
			if f.Action != model.ActionDeclined {
				t.Errorf("%s: action = %q, want declined", f.Rule, f.Action)
			}
		}
	}
	if _, err := os.Stat(filepath.Join(site, "application", "extra", "active.php")); err != nil {
		t.Error("planted file must stay in place without confirmation")
	}
}

func TestCheckDryRunNeverAsks(t *testing.T) {
	t.Parallel()

	asked := 0
	confirm := func(string) bool {
		asked++
		return true
	}

	site := infectedSite(t)
	report := runDefault(t, site, WithPipelineDryRun(true), WithPipelineConfirmer(confirm))

	if asked != 0 {
		t.Errorf("confirmer asked %d times during dry run", asked)
	}
	for _, f := range report.Findings {
		if f.Action != model.ActionNone {
			t.Errorf("%s: action = %q in dry run", f.Rule, f.Action)
		}
	}
}

func TestCheckWithApproval(t *testing.T) {
	t.Parallel()

	site := infectedSite(t)
	report := runDefault(t, site, WithPipelineConfirmer(detect.Always))

	exact := report.FindingsOfKind(model.KindExactFile)
	if len(exact) != 1 || exact[0].Action != model.ActionQuarantined {
		t.Fatalf("unexpected exact-file findings: %+v", exact)
	}
	if exact[0].BackupPath != filepath.Join(site, "application", "extra", "active.lock") {
		t.Errorf("quarantine target = %s", exact[0].BackupPath)
	}

	hijack := report.FindingsOfKind(model.KindHijack)
	if len(hijack) != 1 || hijack[0].Action != model.ActionReplaced {
		t.Fatalf("unexpected hijack findings: %+v", hijack)
	}
	if hijack[0].Digest == "" || hijack[0].BackupPath == "" {
		t.Error("hijack finding should carry digest and backup path")
	}
	clean, err := os.ReadFile(filepath.Join(site, "application", "extra", "addons.php"))
	if err != nil {
		t.Fatal(err)
	}
	if string(clean) != model.CleanAddonsContent {
		t.Error("addons.php should hold the clean content")
	}

	pattern := report.FindingsOfKind(model.KindPattern)
	if len(pattern) != 1 {
		t.Fatalf("pattern findings = %d", len(pattern))
	}
	if pattern[0].Count != 3 {
		t.Errorf("pattern count = %d, want 3", pattern[0].Count)
	}
	if pattern[0].Detail != "navigator.platform=1, appendChild=1, Mac|Win=1" {
		t.Errorf("pattern detail = %q", pattern[0].Detail)
	}

	if report.Summary.FilesScanned != 2 || report.Summary.SuspiciousFiles != 1 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if len(report.PerformedSteps) != 3 {
		t.Errorf("performed steps = %v", report.PerformedSteps)
	}
}

func TestCheckQuarantineFailureIsRecorded(t *testing.T) {
	t.Parallel()

	site := infectedSite(t)
	writeFile(t, filepath.Join(site, "application", "extra", "active.lock"), "earlier quarantine")

	report := runDefault(t, site, WithPipelineConfirmer(detect.Always))

	exact := report.FindingsOfKind(model.KindExactFile)
	if len(exact) != 1 {
		t.Fatalf("exact-file findings = %d", len(exact))
	}
	if exact[0].Action != model.ActionFailed || exact[0].Error == "" {
		t.Errorf("expected failed action with error, got %+v", exact[0])
	}
}

func TestHijackStepRecordsReadErrors(t *testing.T) {
	t.Parallel()

	if os.Geteuid() == 0 {
		t.Skip("root can read unreadable files")
	}

	site := t.TempDir()
	path := filepath.Join(site, "application", "extra", "addons.php")
	writeFile(t, path, "<?php")
	if err := os.Chmod(path, 0o000); err != nil {
		t.Fatal(err)
	}

	step := NewHijackStep(model.DefaultRuleSet().Hijacks, Remediation{}, nil)
	report := model.NewCheckReport("run", site)
	if err := step.Do(context.Background(), report); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if len(report.Errors) != 1 {
		t.Errorf("expected one recorded error, got %v", report.Errors)
	}
	if report.HasFindings() {
		t.Error("unreadable file should not produce a finding")
	}
}
