package syntax

import (
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

const sampleSource = `using System;

namespace Antmicro.Renode.Peripherals.Timers
{
    public class SampleTimer : BasicDoubleWordPeripheral, IKnownSize
    {
        public long Size => 0x20;

        private const int TimerWidth = 16;
        private const int DoubleWidth = TimerWidth * 2;
        private DoubleWordRegister control;

        private void DefineRegisters()
        {
            var reg = control;
            long offset = (long)Registers.Value;
            Action<int> setter = x =>
            {
                var inner = x;
            };
        }

        private enum Registers
        {
            Control = 0x0,
            Value,
            Prescaler = Control + 0x8,
            Mask = 0xFF00,
        }
    }
}
`

func TestCollectSymbols(t *testing.T) {
	m := parseSource(t, sampleSource)

	class := mustSymbol(t, m, "SampleTimer", KindClass)
	bases := m.ClassBases(class)
	if len(bases) != 2 || bases[0] != "BasicDoubleWordPeripheral" {
		t.Fatalf("bases = %v, want [BasicDoubleWordPeripheral IKnownSize]", bases)
	}

	width := mustSymbol(t, m, "TimerWidth", KindField)
	if !width.IsConst {
		t.Errorf("TimerWidth not marked const")
	}
	if width.Type != "int" {
		t.Errorf("TimerWidth type = %q, want int", width.Type)
	}

	reg := mustSymbol(t, m, "reg", KindLocal)
	if reg.Type != "" {
		t.Errorf("var-declared local has type %q, want empty", reg.Type)
	}
	if reg.Init == nil {
		t.Errorf("reg initializer not recorded")
	}
	if reg.Scope == nil {
		t.Errorf("reg scope not recorded")
	}

	inner := mustSymbol(t, m, "inner", KindLocal)
	if inner.Scope == nil || inner.Scope.Type() != "lambda_expression" {
		t.Errorf("lambda-local scope = %v, want the lambda itself", inner.Scope)
	}
}

func TestEnumMemberValues(t *testing.T) {
	m := parseSource(t, sampleSource)

	enum := mustSymbol(t, m, "Registers", KindEnum)
	members := m.EnumMembers(enum)
	if len(members) != 4 {
		t.Fatalf("got %d members, want 4", len(members))
	}

	want := map[string]int64{
		"Control":   0x0,
		"Value":     0x1,
		"Prescaler": 0x8,
		"Mask":      0xFF00,
	}
	for _, member := range members {
		if !member.Resolved {
			t.Errorf("member %s not resolved", member.Symbol.Name)
			continue
		}
		if member.Value != want[member.Symbol.Name] {
			t.Errorf("member %s = %#x, want %#x", member.Symbol.Name, member.Value, want[member.Symbol.Name])
		}
	}
	if members[1].Explicit {
		t.Errorf("implicit member Value marked explicit")
	}
}

func TestConstantFolding(t *testing.T) {
	m := parseSource(t, sampleSource)

	dw := mustSymbol(t, m, "DoubleWidth", KindField)
	c, ok := m.ConstantValue(dw.Init)
	if !ok || c.Kind != ConstInt || c.Int != 32 {
		t.Fatalf("DoubleWidth folded to %+v (ok=%v), want 32", c, ok)
	}

	// The enum cast in DefineRegisters folds through the member value.
	offset := mustSymbol(t, m, "offset", KindLocal)
	c, ok = m.ConstantValue(offset.Init)
	if !ok || c.Int != 0x1 {
		t.Fatalf("offset folded to %+v (ok=%v), want 1", c, ok)
	}
}

func TestReferencesReturnQualifiedAccess(t *testing.T) {
	m := parseSource(t, sampleSource)

	enum := mustSymbol(t, m, "Registers", KindEnum)
	var value *Symbol
	for _, member := range m.EnumMembers(enum) {
		if member.Symbol.Name == "Value" {
			value = member.Symbol
		}
	}
	if value == nil {
		t.Fatal("enum member Value not collected")
	}

	refs := m.References(value, nil)
	if len(refs) != 1 {
		t.Fatalf("got %d references, want 1", len(refs))
	}
	if refs[0].Type() != "member_access_expression" {
		t.Errorf("reference node = %s, want full member access", refs[0].Type())
	}
	if m.Text(refs[0]) != "Registers.Value" {
		t.Errorf("reference text = %q, want Registers.Value", m.Text(refs[0]))
	}
}

func TestArgumentParts(t *testing.T) {
	source := `class C
{
    void M(int shift)
    {
        reg.WithFlag(0, name: "ENABLE");
        reg.WithValueField(shift, 4);
    }
}
`
	m := parseSource(t, source)

	flag := mustCall(t, m, "WithFlag")
	args := ArgumentList(flag)
	if len(args) != 2 {
		t.Fatalf("got %d arguments, want 2", len(args))
	}
	name, value := ArgumentParts(args[0], m.Source)
	if name != "" || m.Text(value) != "0" {
		t.Errorf("positional argument = (%q, %q), want (\"\", \"0\")", name, m.Text(value))
	}
	name, value = ArgumentParts(args[1], m.Source)
	if name != "name" {
		t.Errorf("named argument binding = %q, want name", name)
	}
	if value == nil || value.Type() != "string_literal" {
		t.Errorf("named argument value = %v, want the string literal", value)
	}

	// A bare identifier argument must not be misread as a named binding.
	field := mustCall(t, m, "WithValueField")
	args = ArgumentList(field)
	name, value = ArgumentParts(args[0], m.Source)
	if name != "" || m.Text(value) != "shift" {
		t.Errorf("identifier argument = (%q, %q), want (\"\", \"shift\")", name, m.Text(value))
	}
}

func TestSameBlock(t *testing.T) {
	source := `class C
{
    void M(bool cond)
    {
        First();
        Second();
        if (cond)
        {
            Third();
        }
        Action a = () => Fourth();
        Action b = () => Fifth();
    }
}
`
	m := parseSource(t, source)

	first := mustCall(t, m, "First")
	second := mustCall(t, m, "Second")
	third := mustCall(t, m, "Third")
	fourth := mustCall(t, m, "Fourth")
	fifth := mustCall(t, m, "Fifth")

	if !m.SameBlock(first, second) {
		t.Errorf("First and Second should share the method body block")
	}
	if m.SameBlock(first, third) {
		t.Errorf("Third sits in the if body, not the method body")
	}
	if m.SameBlock(fourth, fifth) {
		t.Errorf("separate lambdas must not share a block")
	}
	if !m.SameBlock(fourth, fourth) {
		t.Errorf("a node always shares a block with itself")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.cs")
	if err := os.WriteFile(path, []byte(sampleSource), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	m, err := New().ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if m.Path != path {
		t.Errorf("model path = %q, want %q", m.Path, path)
	}
	if len(m.Classes()) != 1 {
		t.Errorf("got %d classes, want 1", len(m.Classes()))
	}
}

func parseSource(t *testing.T, source string) *Model {
	t.Helper()
	m, err := New().Parse("test.cs", []byte(source))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return m
}

func mustSymbol(t *testing.T, m *Model, name, kind string) *Symbol {
	t.Helper()
	for _, s := range m.Symbols() {
		if s.Name == name && s.Kind == kind {
			return s
		}
	}
	t.Fatalf("symbol not found: %s (%s)", name, kind)
	return nil
}

func mustCall(t *testing.T, m *Model, name string) *sitter.Node {
	t.Helper()
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "invocation_expression" && CalleeName(n, m.Source) == name {
			found = n
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(m.Root())
	if found == nil {
		t.Fatalf("call not found: %s", name)
	}
	return found
}
