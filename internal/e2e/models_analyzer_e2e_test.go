package e2e

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/antmicro/renode-models-analyzer/internal/analyzer"
	"github.com/antmicro/renode-models-analyzer/internal/config"
	"github.com/antmicro/renode-models-analyzer/internal/report"
)

// The full pipeline over the checked-in fixtures: source discovery, parsing,
// register resolution, contract validation, policy evaluation and report
// emission.
func TestAnalyzerEndToEnd(t *testing.T) {
	dataDir := filepath.Join(findRepoRoot(t), "testdata", "csharp")

	outDir := filepath.Join(t.TempDir(), "registersInfo")
	cfg := config.DefaultConfig()
	cfg.Output.Dir = outDir
	disabled := false
	cfg.Analysis.Cache.Enabled = &disabled

	a := analyzer.NewWithConfig(cfg)
	a.JSONOutput = true
	a.WriteReports = true

	result, err := a.Analyze(dataDir)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(result.ParseErrors) > 0 {
		t.Fatalf("parse errors: %v", result.ParseErrors)
	}
	if result.Summary.Peripherals != 2 {
		t.Fatalf("expected 2 peripherals, got %d", result.Summary.Peripherals)
	}

	rules := make(map[string]int)
	for _, v := range result.Violations {
		rules[v.Rule]++
	}
	if rules["field-overlap"] == 0 {
		t.Errorf("expected a field-overlap violation, got %v", rules)
	}
	if rules["register-gap"] == 0 {
		t.Errorf("expected register-gap violations, got %v", rules)
	}
	if rules["register-unused"] == 0 {
		t.Errorf("expected a register-unused violation, got %v", rules)
	}
	if result.Summary.Errors == 0 {
		t.Errorf("overlap should count as an error, summary: %+v", result.Summary)
	}

	// Per-peripheral report files
	watchdogPath := filepath.Join(outDir, "WatchdogTimer-registersInfo.json")
	groups, err := report.ReadRegistersInfo(watchdogPath)
	if err != nil {
		t.Fatalf("ReadRegistersInfo(%s): %v", watchdogPath, err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group for WatchdogTimer, got %d", len(groups))
	}

	byName := make(map[string]bool)
	for _, r := range groups[0].Registers {
		byName[r.Name] = true
	}
	// 4 declared registers plus 3 replicas from the Compare0 array
	for _, want := range []string{"Control", "Reload", "Status", "Compare0", "Compare0_1", "Compare0_2", "Compare0_3"} {
		if !byName[want] {
			t.Errorf("missing register %s in report, have %v", want, byName)
		}
	}

	if _, err := os.Stat(filepath.Join(outDir, "FlawedUART-registersInfo.json")); err != nil {
		t.Errorf("expected FlawedUART report: %v", err)
	}
}

func findRepoRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate caller for repo root")
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found walking up from test file")
		}
		dir = parent
	}
}
