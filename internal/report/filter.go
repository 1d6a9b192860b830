package report

import "github.com/antmicro/renode-models-analyzer/internal/registers"

// FilterGroupsByRegisters returns a copy of groups reduced to the named
// registers. An empty name set yields no rows at all.
func FilterGroupsByRegisters(groups []RegistersGroup, names map[string]bool) []RegistersGroup {
	out := make([]RegistersGroup, 0, len(groups))
	for _, g := range groups {
		filtered := RegistersGroup{Name: g.Name, Registers: []*registers.RegisterDescriptor{}}
		if len(names) > 0 {
			for _, r := range g.Registers {
				if names[r.Name] {
					filtered.Registers = append(filtered.Registers, r)
				}
			}
		}
		out = append(out, filtered)
	}
	return out
}

// FilterDeltaByRegisters reduces a delta to the named registers.
func FilterDeltaByRegisters(delta Delta, names map[string]bool) Delta {
	return Delta{
		Added:   FilterGroupsByRegisters(delta.Added, names),
		Removed: FilterGroupsByRegisters(delta.Removed, names),
	}
}
