package registers

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

const peripheralTemplate = `using System;
using System.Collections.Generic;

namespace Antmicro.Renode.Peripherals.Miscellaneous
{
    public class TestPeripheral : BasicDoubleWordPeripheral, IKnownSize
    {
        public long Size => 0x100;

        private void DefineRegisters()
        {
%s
        }

        private enum Registers
        {
            Control = 0x0,
            Status = 0x4,
            Data = 0x8,
        }
    }
}
`

func TestFlagAndReservedChain(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this, 0x0)
                .WithFlag(0, name: "ENABLE")
                .WithReservedBits(1, 31);
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if desc.Width == nil || *desc.Width != 32 {
		t.Fatalf("width = %v, want 32", desc.Width)
	}
	if desc.ResetValue == nil || *desc.ResetValue != 0 {
		t.Fatalf("reset value = %v, want 0", desc.ResetValue)
	}
	if len(desc.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(desc.Fields))
	}
	flag := desc.Fields[0]
	if flag.Name != "ENABLE" || flag.Range != (BitRange{0, 0}) {
		t.Errorf("flag = %q %+v, want ENABLE [0,0]", flag.Name, flag.Range)
	}
	reserved := desc.Fields[1]
	if reserved.Name != "RESERVED" || reserved.Range != (BitRange{1, 31}) {
		t.Errorf("reserved = %q %+v, want RESERVED [1,31]", reserved.Name, reserved.Range)
	}
	if !reserved.SpecialKind.Has(KindReserved) {
		t.Errorf("reserved field kind = %v, want Reserved", reserved.SpecialKind)
	}
	if gaps := FindGaps(desc); len(gaps) != 0 {
		t.Errorf("gaps = %v, want none", gaps)
	}
	if overlaps := FindOverlaps(desc.Fields); len(overlaps) != 0 {
		t.Errorf("overlaps = %v, want none", overlaps)
	}
	if eng.Status() != StatusPass {
		t.Errorf("status = %v, want Pass", eng.Status())
	}
}

func TestOverlappingValueFields(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this)
                .WithValueField(0, 16, name: "LOW")
                .WithValueField(8, 8, name: "MID");
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	overlaps := FindOverlaps(desc.Fields)
	if len(overlaps) != 1 {
		t.Fatalf("got %d overlaps, want 1", len(overlaps))
	}
	if overlaps[0].A.Name != "LOW" || overlaps[0].B.Name != "MID" {
		t.Errorf("overlap pair = %s/%s, want LOW/MID", overlaps[0].A.Name, overlaps[0].B.Name)
	}
	if !hasFinding(eng, FindingOverlap) {
		t.Errorf("no overlap finding reported")
	}
}

func TestDefineManyReplication(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Data.DefineMany(this, 4, stepInBytes: 4, setup: (reg, idx) =>
            {
                reg.WithFlag(0, name: "READY");
            });
`)
	desc := mustResolve(t, eng, m, "Data", 0x8)

	if !desc.ArrayInfo.IsArray || desc.ArrayInfo.Length != 4 || desc.ArrayInfo.StepBytes != 4 {
		t.Fatalf("array info = %+v, want length 4 step 4", desc.ArrayInfo)
	}
	if len(desc.Fields) != 1 || desc.Fields[0].Name != "READY" {
		t.Fatalf("fields = %+v, want one READY field", desc.Fields)
	}
	replicas := eng.Replicas()
	if len(replicas) != 3 {
		t.Fatalf("got %d replicas, want 3", len(replicas))
	}
	for _, addr := range []int64{0xC, 0x10, 0x14} {
		link, ok := replicas[addr]
		if !ok {
			t.Fatalf("no replica at %#x", addr)
		}
		if link.Parent() != desc {
			t.Errorf("replica at %#x not resolved to parent", addr)
		}
		if fields := link.Fields(); len(fields) != 1 || fields[0].Name != "READY" {
			t.Errorf("replica at %#x fields = %+v, want parent's READY", addr, fields)
		}
		row := link.Descriptor()
		if row.ParentReg == nil || *row.ParentReg != desc.Name {
			t.Errorf("replica row parent = %v, want %q", row.ParentReg, desc.Name)
		}
	}
}

func TestUnreferencedRegister(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this).WithFlag(0);
`)
	desc := mustResolve(t, eng, m, "Status", 0x4)

	if !desc.SpecialKind.Has(KindMaybeUndefined) {
		t.Errorf("kind = %v, want MaybeUndefined", desc.SpecialKind)
	}
	if desc.Width != nil {
		t.Errorf("width = %v, want nil", desc.Width)
	}
	if len(desc.Fields) != 0 {
		t.Errorf("fields = %+v, want none", desc.Fields)
	}
	if !hasFinding(eng, FindingUnusedDefinite) {
		t.Errorf("no unused finding reported")
	}
}

func TestUnclassifiableReference(t *testing.T) {
	eng, m := analyzeBody(t, `
            var offset = (long)Registers.Status;
`)
	desc := mustResolve(t, eng, m, "Status", 0x4)

	if !desc.SpecialKind.Has(KindNoDefineFound) {
		t.Errorf("kind = %v, want NoDefineFound", desc.SpecialKind)
	}
	if !hasFinding(eng, FindingUnusedProbable) {
		t.Errorf("no probably-unused finding reported")
	}
}

func TestBranchLambdasGetDistinctBlocks(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this)
                .If(wideMode)
                .Then(reg => reg.WithFlag(0, name: "A"))
                .Else(reg => reg.WithFlag(0, name: "B"));
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if len(desc.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(desc.Fields))
	}
	a, b := desc.Fields[0], desc.Fields[1]
	if a.BlockId == b.BlockId {
		t.Fatalf("fields share block %d, want distinct blocks", a.BlockId)
	}
	if overlaps := FindOverlaps(desc.Fields); len(overlaps) != 0 {
		t.Errorf("overlaps across branches = %v, want none", overlaps)
	}
}

func TestAliasedChainContinuation(t *testing.T) {
	eng, m := analyzeBody(t, `
            var reg = Registers.Control.Define32(this, 0xFF);
            var alias = reg;
            alias.WithValueField(0, 8, name: "BYTE0");
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if desc.ResetValue == nil || *desc.ResetValue != 0xFF {
		t.Fatalf("reset value = %v, want 0xFF", desc.ResetValue)
	}
	if len(desc.Fields) != 1 || desc.Fields[0].Name != "BYTE0" {
		t.Fatalf("fields = %+v, want one BYTE0 field from the aliased chain", desc.Fields)
	}
}

func TestDictionaryEntryWidth(t *testing.T) {
	eng, m := analyzeBody(t, `
            var registersMap = new Dictionary<long, DoubleWordRegister>
            {
                {(long)Registers.Control, new DoubleWordRegister(this, 0x1)
                    .WithFlag(0, name: "GO")
                    .WithReservedBits(1, 31)},
            };
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if desc.Width == nil || *desc.Width != 32 {
		t.Fatalf("width = %v, want 32 from dictionary value type", desc.Width)
	}
	if desc.ResetValue == nil || *desc.ResetValue != 1 {
		t.Fatalf("reset value = %v, want 1", desc.ResetValue)
	}
	if len(desc.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(desc.Fields))
	}
}

func TestSwitchCaseWidthOnly(t *testing.T) {
	source := fmt.Sprintf(peripheralTemplate, `
            uint ReadInternal(long offset)
            {
                switch ((Registers)offset)
                {
                case Registers.Control:
                    return controlValue;
                default:
                    return 0;
                }
            }
`)
	eng, m := analyzeSource(t, source, 0)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if desc.SpecialKind.HasAny(KindMaybeUndefined | KindNoDefineFound) {
		t.Fatalf("kind = %v, switch-handled register should count as defined", desc.SpecialKind)
	}
	if len(desc.Fields) != 0 {
		t.Errorf("fields = %+v, want none for switch idiom", desc.Fields)
	}
}

func TestEmptyRegisterFullWidthGap(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this);
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	gaps := FindGaps(desc)
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(gaps))
	}
	if gaps[0] != (Gap{Start: 0, End: 32, BlockId: 0}) {
		t.Errorf("gap = %+v, want full-width (0, 32, 0)", gaps[0])
	}
}

func TestRegisterCallbackInjectors(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this)
                .WithFlag(0, writeCallback: (_, val) => Update(val))
                .WithWriteCallback((_, __) => UpdateInterrupts());
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if !desc.CallbackInfo.HasWriteCb {
		t.Errorf("register write callback not recorded")
	}
	if desc.CallbackInfo.HasReadCb {
		t.Errorf("spurious register read callback")
	}
	if len(desc.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(desc.Fields))
	}
	if !desc.Fields[0].CallbackInfo.HasWriteCb {
		t.Errorf("field write callback not recorded")
	}
}

func TestVariablePositionField(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this)
                .WithFlag(shift, name: "MOVABLE");
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if len(desc.Fields) != 1 {
		t.Fatalf("got %d fields, want 1", len(desc.Fields))
	}
	f := desc.Fields[0]
	if !f.SpecialKind.Has(KindVariablePosition) {
		t.Errorf("kind = %v, want VariablePosition", f.SpecialKind)
	}
	if f.Range.Start != 0 {
		t.Errorf("placeholder start = %d, want 0", f.Range.Start)
	}
	if gaps := FindGaps(desc); gaps != nil {
		t.Errorf("gaps = %v, want none while geometry is variable", gaps)
	}
}

func TestFieldModes(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this)
                .WithFlag(0, mode: FieldMode.Read | FieldMode.WriteOneToClear, name: "IRQ")
                .WithFlag(1, name: "PLAIN");
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if len(desc.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(desc.Fields))
	}
	irq := desc.Fields[0]
	if len(irq.FieldMode) != 2 || irq.FieldMode[0] != "Read" || irq.FieldMode[1] != "WriteOneToClear" {
		t.Errorf("modes = %v, want [Read WriteOneToClear]", irq.FieldMode)
	}
	if irq.SpecialKind.Has(KindVariableAccessMode) {
		t.Errorf("resolvable mode flagged as variable")
	}
	plain := desc.Fields[1]
	if len(plain.FieldMode) != 2 || plain.FieldMode[0] != "Read" || plain.FieldMode[1] != "Write" {
		t.Errorf("default modes = %v, want [Read Write]", plain.FieldMode)
	}
}

func TestRedefinitionKeepsLastDefinition(t *testing.T) {
	eng, m := analyzeBody(t, `
            Registers.Control.Define(this, 0x1).WithFlag(0, name: "OLD");
            Registers.Control.Define(this, 0x2).WithFlag(1, name: "NEW");
`)
	desc := mustResolve(t, eng, m, "Control", 0x0)

	if !hasFinding(eng, FindingRedefined) {
		t.Fatalf("no redefinition finding reported")
	}
	if len(desc.Fields) != 1 || desc.Fields[0].Name != "NEW" {
		t.Fatalf("fields = %+v, want only the last definition's NEW field", desc.Fields)
	}
	if desc.ResetValue == nil || *desc.ResetValue != 2 {
		t.Errorf("reset value = %v, want the last definition's 2", desc.ResetValue)
	}
}

func TestAliasTrackingClosure(t *testing.T) {
	source := fmt.Sprintf(peripheralTemplate, `
            void Build()
            {
                DoubleWordRegister a = MakeRegister();
                DoubleWordRegister b;
                b = a;
                var c = b;
                int unrelated = 3;
            }
`)
	eng, m := analyzeSource(t, source, 32)

	a := mustFindSymbol(t, m, "a")
	related := eng.FindRelated(a, nil)
	names := make(map[string]bool, len(related))
	for _, s := range related {
		names[s.Name] = true
	}
	if !names["a"] || !names["b"] || !names["c"] {
		t.Errorf("alias set = %v, want a, b and c", names)
	}
	if names["unrelated"] {
		t.Errorf("alias set leaked into unrelated variable")
	}

	// A predicate rejecting the transit symbol cuts the branch behind it.
	related = eng.FindRelated(a, func(s *syntax.Symbol) bool { return s.Name != "b" })
	names = make(map[string]bool, len(related))
	for _, s := range related {
		names[s.Name] = true
	}
	if !names["a"] || names["b"] || names["c"] {
		t.Errorf("filtered alias set = %v, want only a", names)
	}
}

func TestIdempotentResolution(t *testing.T) {
	body := `
            Registers.Control.Define(this, 0x4)
                .WithValueField(0, 8, name: "DATA")
                .WithReservedBits(8, 24);
`
	first := describeRun(t, body)
	second := describeRun(t, body)
	if first != second {
		t.Fatalf("re-running analysis changed output:\n%s\nvs:\n%s", first, second)
	}
}

func describeRun(t *testing.T, body string) string {
	t.Helper()
	eng, m := analyzeBody(t, body)
	desc := mustResolve(t, eng, m, "Control", 0x0)
	out, err := json.Marshal(desc)
	if err != nil {
		t.Fatalf("marshal descriptor: %v", err)
	}
	return string(out)
}

func analyzeBody(t *testing.T, body string) (*Engine, *syntax.Model) {
	t.Helper()
	return analyzeSource(t, fmt.Sprintf(peripheralTemplate, body), 32)
}

func analyzeSource(t *testing.T, source string, peripheralWidth int) (*Engine, *syntax.Model) {
	t.Helper()
	m, err := syntax.New().Parse("TestPeripheral.cs", []byte(source))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return NewEngine(m, Options{PeripheralWidth: peripheralWidth}), m
}

func mustResolve(t *testing.T, eng *Engine, m *syntax.Model, name string, address int64) *RegisterDescriptor {
	t.Helper()
	ref := mustFindRegister(t, m, name)
	if ref.Address != address {
		t.Fatalf("register %s address = %#x, want %#x", name, ref.Address, address)
	}
	desc, err := eng.GetRegisterInfo(ref)
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return desc
}

func mustFindRegister(t *testing.T, m *syntax.Model, name string) RegisterSymbolRef {
	t.Helper()
	for _, enum := range m.Enums() {
		if enum.Name != "Registers" {
			continue
		}
		for _, member := range m.EnumMembers(enum) {
			if member.Symbol.Name == name {
				return RegisterSymbolRef{Symbol: member.Symbol, Name: name, Address: member.Value}
			}
		}
	}
	t.Fatalf("register not found: %s", name)
	return RegisterSymbolRef{}
}

func mustFindSymbol(t *testing.T, m *syntax.Model, name string) *syntax.Symbol {
	t.Helper()
	for _, s := range m.Symbols() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("symbol not found: %s", name)
	return nil
}

func hasFinding(eng *Engine, kind string) bool {
	for _, f := range eng.Findings() {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
