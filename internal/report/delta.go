package report

import (
	"strconv"
	"strings"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
)

// Delta captures register rows added and removed between two registersInfo
// snapshots, grouped the same way the snapshots are.
type Delta struct {
	Added   []RegistersGroup `json:"added"`
	Removed []RegistersGroup `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two
// snapshots of the same peripheral.
func ComputeDelta(prev, next []RegistersGroup) Delta {
	return Delta{
		Added:   diffGroups(prev, next),
		Removed: diffGroups(next, prev),
	}
}

// diffGroups returns the groups of `to` reduced to rows absent from `from`.
// Groups that end up empty are kept with an empty row list so consumers can
// tell "group unchanged" from "group gone".
func diffGroups(from, to []RegistersGroup) []RegistersGroup {
	fromRows := make(map[string]map[string]bool, len(from))
	for _, g := range from {
		rows := make(map[string]bool, len(g.Registers))
		for _, r := range g.Registers {
			rows[registerKey(r)] = true
		}
		fromRows[g.Name] = rows
	}

	out := make([]RegistersGroup, 0, len(to))
	for _, g := range to {
		diff := RegistersGroup{Name: g.Name, Registers: []*registers.RegisterDescriptor{}}
		for _, r := range g.Registers {
			if !fromRows[g.Name][registerKey(r)] {
				diff.Registers = append(diff.Registers, r)
			}
		}
		out = append(out, diff)
	}
	return out
}

// registerKey flattens the comparable parts of a register row. Field geometry
// participates so a layout change shows up as remove+add of the same name.
func registerKey(r *registers.RegisterDescriptor) string {
	parts := []string{
		r.Name,
		strconv.FormatInt(r.Address, 10),
		intPtrKey(r.Width),
		r.SpecialKind.String(),
		boolKey(r.ArrayInfo.IsArray),
		strconv.FormatInt(r.ArrayInfo.Length, 10),
	}
	if r.ResetValue != nil {
		parts = append(parts, strconv.FormatUint(*r.ResetValue, 10))
	} else {
		parts = append(parts, "-")
	}
	for _, f := range r.Fields {
		parts = append(parts,
			f.Name,
			f.GeneratorName,
			strconv.Itoa(f.Range.Start),
			strconv.Itoa(f.Range.End),
			f.SpecialKind.String(),
			strings.Join(f.FieldMode, "+"),
		)
	}
	return strings.Join(parts, "|")
}

func intPtrKey(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
