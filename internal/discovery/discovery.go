// Package discovery locates peripheral classes and their register tables in
// a parsed source unit. A register table is an enum named "Registers" or with
// a "Registers" suffix, declared inside a class that derives from one of the
// peripheral base classes.
package discovery

import (
	"strings"

	"github.com/antmicro/renode-models-analyzer/internal/registers"
	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// peripheralBaseWidths maps peripheral base classes to the bit width of the
// register collection they provide.
var peripheralBaseWidths = map[string]int{
	"BasicBytePeripheral":       8,
	"BasicWordPeripheral":       16,
	"BasicDoubleWordPeripheral": 32,
	"BasicQuadWordPeripheral":   64,
}

// peripheralMarkers are base types that mark a class as a peripheral even
// when they imply no register width.
var peripheralMarkers = map[string]bool{
	"IPeripheral":                 true,
	"IDoubleWordPeripheral":       true,
	"IWordPeripheral":             true,
	"IBytePeripheral":             true,
	"IQuadWordPeripheral":         true,
	"IKnownSize":                  true,
	"IProvidesRegisterCollection": true,
}

// RegisterGroup is one register enum of a peripheral with its members
// resolved to symbol references usable by the resolution engine.
type RegisterGroup struct {
	Name      string
	Enum      *syntax.Symbol
	Registers []registers.RegisterSymbolRef
}

// Peripheral is a class holding at least one register table.
type Peripheral struct {
	Class *syntax.Symbol
	// Width is the register width implied by the base class, 0 if none
	// of the bases pins one down.
	Width  int
	Groups []RegisterGroup
}

// FindPeripherals scans a model for peripheral classes carrying register
// enums. Classes without any register table are skipped even when they
// derive from a peripheral base.
func FindPeripherals(m *syntax.Model) []Peripheral {
	var out []Peripheral
	for _, class := range m.Classes() {
		if !isPeripheral(m, class) {
			continue
		}
		p := Peripheral{Class: class, Width: baseWidth(m, class)}
		for _, enum := range m.EnumsIn(class) {
			if !isRegisterEnum(enum.Name) {
				continue
			}
			p.Groups = append(p.Groups, buildGroup(m, enum))
		}
		if len(p.Groups) > 0 {
			out = append(out, p)
		}
	}
	return out
}

func buildGroup(m *syntax.Model, enum *syntax.Symbol) RegisterGroup {
	g := RegisterGroup{Name: enum.Name, Enum: enum}
	for _, member := range m.EnumMembers(enum) {
		g.Registers = append(g.Registers, registers.RegisterSymbolRef{
			Symbol:  member.Symbol,
			Name:    member.Symbol.Name,
			Address: member.Value,
		})
	}
	return g
}

func isPeripheral(m *syntax.Model, class *syntax.Symbol) bool {
	for _, base := range m.ClassBases(class) {
		if _, ok := peripheralBaseWidths[base]; ok {
			return true
		}
		if peripheralMarkers[base] {
			return true
		}
	}
	return false
}

func baseWidth(m *syntax.Model, class *syntax.Symbol) int {
	for _, base := range m.ClassBases(class) {
		if w, ok := peripheralBaseWidths[base]; ok {
			return w
		}
	}
	return 0
}

func isRegisterEnum(name string) bool {
	return name == "Registers" || strings.HasSuffix(name, "Registers")
}
