package report

import (
	"strings"
	"testing"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
)

func TestBuildGroupOrdersRowsAndRendersReplicas(t *testing.T) {
	width := 32
	parent := &registers.RegisterDescriptor{Name: "Data", Address: 0x8, Width: &width}
	link := &registers.ReplicatedRegisterLink{Name: "Data_1", Address: 0xC}
	link.Resolve(parent)

	group := BuildGroup("Registers",
		[]*registers.RegisterDescriptor{
			{Name: "Status", Address: 0x4},
			parent,
			{Name: "Control", Address: 0x0},
		},
		map[int64]*registers.ReplicatedRegisterLink{0xC: link})

	names := make([]string, 0, len(group.Registers))
	for _, r := range group.Registers {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "Control,Status,Data,Data_1" {
		t.Fatalf("row order = %s, want Control,Status,Data,Data_1", got)
	}

	replica := group.Registers[3]
	if replica.ParentReg == nil || *replica.ParentReg != "Data" {
		t.Errorf("replica parent = %v, want Data", replica.ParentReg)
	}
	if replica.Width == nil || *replica.Width != 32 {
		t.Errorf("replica width = %v, want inherited 32", replica.Width)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	width := 16
	reset := uint64(0xFF)
	groups := []RegistersGroup{{
		Name: "Registers",
		Registers: []*registers.RegisterDescriptor{{
			Name:       "Control",
			Address:    0x0,
			Width:      &width,
			ResetValue: &reset,
			Fields: []*registers.FieldDescriptor{{
				Name:          "EN",
				GeneratorName: "WithFlag",
				Range:         registers.BitRange{Start: 0, End: 0},
				FieldMode:     []string{"Read", "Write"},
			}},
		}},
	}}

	dir := t.TempDir()
	path, err := WriteRegistersInfo(dir, "SampleTimer", groups)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(path, "SampleTimer-registersInfo.json") {
		t.Fatalf("path = %s, want peripheral-suffixed file name", path)
	}

	loaded, err := ReadRegistersInfo(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(loaded) != 1 || len(loaded[0].Registers) != 1 {
		t.Fatalf("loaded %+v, want one group with one register", loaded)
	}
	reg := loaded[0].Registers[0]
	if reg.Name != "Control" || reg.Width == nil || *reg.Width != 16 {
		t.Errorf("register = %+v, want Control of width 16", reg)
	}
	if len(reg.Fields) != 1 || reg.Fields[0].Name != "EN" {
		t.Errorf("fields = %+v, want EN", reg.Fields)
	}
}

func TestComputeDelta(t *testing.T) {
	prev := []RegistersGroup{{
		Name: "Registers",
		Registers: []*registers.RegisterDescriptor{
			{Name: "Control", Address: 0x0},
			{Name: "Status", Address: 0x4},
		},
	}}
	next := []RegistersGroup{{
		Name: "Registers",
		Registers: []*registers.RegisterDescriptor{
			{Name: "Control", Address: 0x0},
			{Name: "Data", Address: 0x8},
		},
	}}

	delta := ComputeDelta(prev, next)
	if len(delta.Added) != 1 || len(delta.Added[0].Registers) != 1 {
		t.Fatalf("added = %+v, want one row", delta.Added)
	}
	if delta.Added[0].Registers[0].Name != "Data" {
		t.Errorf("added row = %s, want Data", delta.Added[0].Registers[0].Name)
	}
	if len(delta.Removed) != 1 || len(delta.Removed[0].Registers) != 1 {
		t.Fatalf("removed = %+v, want one row", delta.Removed)
	}
	if delta.Removed[0].Registers[0].Name != "Status" {
		t.Errorf("removed row = %s, want Status", delta.Removed[0].Registers[0].Name)
	}
}

func TestDeltaSeesFieldLayoutChanges(t *testing.T) {
	mk := func(end int) []RegistersGroup {
		return []RegistersGroup{{
			Name: "Registers",
			Registers: []*registers.RegisterDescriptor{{
				Name:    "Control",
				Address: 0x0,
				Fields: []*registers.FieldDescriptor{{
					Name:  "DATA",
					Range: registers.BitRange{Start: 0, End: end},
				}},
			}},
		}}
	}

	delta := ComputeDelta(mk(7), mk(15))
	if len(delta.Added[0].Registers) != 1 || len(delta.Removed[0].Registers) != 1 {
		t.Fatalf("layout change not reported: %+v", delta)
	}
}

func TestFilterGroupsByRegisters(t *testing.T) {
	groups := []RegistersGroup{{
		Name: "Registers",
		Registers: []*registers.RegisterDescriptor{
			{Name: "Control", Address: 0x0},
			{Name: "Status", Address: 0x4},
		},
	}}

	filtered := FilterGroupsByRegisters(groups, map[string]bool{"Status": true})
	if len(filtered) != 1 || len(filtered[0].Registers) != 1 {
		t.Fatalf("filtered = %+v, want one row", filtered)
	}
	if filtered[0].Registers[0].Name != "Status" {
		t.Errorf("kept row = %s, want Status", filtered[0].Registers[0].Name)
	}

	empty := FilterGroupsByRegisters(groups, nil)
	if len(empty) != 1 || len(empty[0].Registers) != 0 {
		t.Errorf("empty filter = %+v, want groups with no rows", empty)
	}
}
