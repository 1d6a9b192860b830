package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
)

func intPtr(v int) *int       { return &v }
func u64Ptr(v uint64) *uint64 { return &v }

func TestEmbeddedRulesTriageFindings(t *testing.T) {
	engine, err := NewEmbedded()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	result, err := engine.Evaluate(Input{
		Findings: []registers.Finding{
			{Kind: registers.FindingOverlap, Register: "Control", File: "Timer.cs", Line: 10,
				Message: "fields A and B of register Control overlap"},
			{Kind: registers.FindingGap, Register: "Status", File: "Timer.cs", Line: 20,
				Message: "bits [8, 32) of register Status are not covered by any field"},
			{Kind: registers.FindingUnusedDefinite, Register: "Spare", File: "Timer.cs", Line: 30,
				Message: "register Spare is never referenced"},
		},
		Registers: []RegisterRow{},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	if len(result.Violations) != 3 {
		t.Fatalf("got %d violations, want 3", len(result.Violations))
	}
	bySeverity := map[string]string{}
	for _, v := range result.Violations {
		bySeverity[v.Rule] = v.Severity
	}
	if bySeverity["field-overlap"] != "error" {
		t.Errorf("overlap severity = %s, want error", bySeverity["field-overlap"])
	}
	if bySeverity["register-gap"] != "warning" {
		t.Errorf("gap severity = %s, want warning", bySeverity["register-gap"])
	}
	if bySeverity["register-unused"] != "info" {
		t.Errorf("unused severity = %s, want info", bySeverity["register-unused"])
	}

	if result.Summary.TotalViolations != 3 || result.Summary.Errors != 1 ||
		result.Summary.Warnings != 1 || result.Summary.Info != 1 {
		t.Errorf("summary = %+v, want 3 total, 1/1/1 split", result.Summary)
	}
}

func TestRegisterRowRules(t *testing.T) {
	engine, err := NewEmbedded()
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	result, err := engine.Evaluate(Input{
		Findings: []registers.Finding{},
		Registers: []RegisterRow{
			// Fits: no violation.
			{Peripheral: "T", Name: "Control", File: "T.cs", Line: 1, Address: 0x0,
				Width: intPtr(8), ResetValue: u64Ptr(0xFF), MaxValue: WidthMaxValue(intPtr(8)), SpecialKind: "None"},
			// 0x1FF does not fit in 8 bits.
			{Peripheral: "T", Name: "Status", File: "T.cs", Line: 2, Address: 0x4,
				Width: intPtr(8), ResetValue: u64Ptr(0x1FF), MaxValue: WidthMaxValue(intPtr(8)), SpecialKind: "None"},
			// 32-bit register at offset 2 is misaligned.
			{Peripheral: "T", Name: "Data", File: "T.cs", Line: 3, Address: 0x2,
				Width: intPtr(32), MaxValue: WidthMaxValue(intPtr(32)), SpecialKind: "None"},
			// A full-width 64-bit reset value is still in range.
			{Peripheral: "T", Name: "Wide", File: "T.cs", Line: 4, Address: 0x8,
				Width: intPtr(64), ResetValue: u64Ptr(^uint64(0)), MaxValue: WidthMaxValue(intPtr(64)), SpecialKind: "None"},
			// Unknown width: both rules stay silent.
			{Peripheral: "T", Name: "Mystery", File: "T.cs", Line: 5,
				Address: 0x3, SpecialKind: "None"},
		},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	rules := map[string]string{}
	for _, v := range result.Violations {
		rules[v.Rule] = v.Register
	}
	if len(result.Violations) != 2 {
		t.Fatalf("violations = %+v, want exactly reset overflow and misalignment", result.Violations)
	}
	if rules["reset-value-exceeds-width"] != "Status" {
		t.Errorf("reset rule hit %q, want Status", rules["reset-value-exceeds-width"])
	}
	if rules["register-address-misaligned"] != "Data" {
		t.Errorf("alignment rule hit %q, want Data", rules["register-address-misaligned"])
	}
}

func TestWidthMaxValue(t *testing.T) {
	if v := WidthMaxValue(intPtr(8)); v == nil || *v != 0xFF {
		t.Errorf("8-bit bound = %v, want 0xFF", v)
	}
	if v := WidthMaxValue(intPtr(64)); v == nil || *v != ^uint64(0) {
		t.Errorf("64-bit bound = %v, want all ones", v)
	}
	for _, w := range []*int{nil, intPtr(0), intPtr(-1), intPtr(65)} {
		if WidthMaxValue(w) != nil {
			t.Errorf("width %v should have no bound", w)
		}
	}
}

func TestPolicyDirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	rules := `package renode.coverage

import rego.v1

all_violations contains violation if {
	some finding in input.findings
	violation := {
		"rule": finding.kind,
		"severity": "error",
		"file": finding.file,
		"line": finding.line,
		"message": finding.message,
		"register": finding.register,
	}
}

summary := {
	"total_violations": count(all_violations),
	"errors": count(all_violations),
	"warnings": 0,
	"info": 0,
}
`
	if err := os.WriteFile(filepath.Join(dir, "strict.rego"), []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	engine, err := New(dir)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	result, err := engine.Evaluate(Input{
		Findings: []registers.Finding{
			{Kind: registers.FindingUnusedDefinite, Register: "Spare", File: "T.cs", Line: 1, Message: "unused"},
		},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(result.Violations) != 1 || result.Violations[0].Severity != "error" {
		t.Fatalf("violations = %+v, want the override's error severity", result.Violations)
	}
}

func TestMissingPolicyDirectory(t *testing.T) {
	if _, err := New(t.TempDir()); err == nil {
		t.Fatalf("empty policy directory accepted")
	}
}
