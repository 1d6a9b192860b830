package registers

import (
	"strings"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// CallKind classifies one builder call in a register definition chain.
// Classification happens exactly once per call; every later stage switches on
// the kind instead of re-comparing method names.
type CallKind int

const (
	CallUnrecognized CallKind = iota
	CallDefinition
	CallReplication
	CallBranch
	CallCallbackInjector
	CallCoverageGenerator
)

func (k CallKind) String() string {
	switch k {
	case CallDefinition:
		return "definition"
	case CallReplication:
		return "replication"
	case CallBranch:
		return "branch"
	case CallCallbackInjector:
		return "callback-injector"
	case CallCoverageGenerator:
		return "coverage-generator"
	}
	return "unrecognized"
}

// defineWidths maps width-suffixed definition methods to their bit width.
// Plain Define/DefineMany take the width from the peripheral's base class.
var defineWidths = map[string]int{
	"Define8":  8,
	"Define16": 16,
	"Define32": 32,
	"Define64": 64,
}

// registerTypeWidths maps register value-type names (dictionary idiom,
// in-place construction) to bit widths.
var registerTypeWidths = map[string]int{
	"ByteRegister":       8,
	"WordRegister":       16,
	"DoubleWordRegister": 32,
	"QuadWordRegister":   64,
}

// peripheralBaseWidths maps peripheral base classes to the width of the
// registers their collection holds.
var peripheralBaseWidths = map[string]int{
	"BasicBytePeripheral":       8,
	"BasicWordPeripheral":       16,
	"BasicDoubleWordPeripheral": 32,
	"BasicQuadWordPeripheral":   64,
}

// builtinTypeWidths maps C# built-in integer types to bit widths, used to
// guess a width from a switch scrutinee's pre-cast type.
var builtinTypeWidths = map[string]int{
	"byte":   8,
	"sbyte":  8,
	"short":  16,
	"ushort": 16,
	"int":    32,
	"uint":   32,
	"long":   64,
	"ulong":  64,
}

var definitionNames = map[string]bool{
	"Define":            true,
	"Define8":           true,
	"Define16":          true,
	"Define32":          true,
	"Define64":          true,
	"DefineConditional": true,
}

var branchNames = map[string]bool{
	"If":   true,
	"Then": true,
	"Else": true,
}

var injectorNames = map[string]bool{
	"WithReadCallback":   true,
	"WithWriteCallback":  true,
	"WithChangeCallback": true,
}

// classifyCall resolves a method or constructor name to its CallKind.
func classifyCall(name string) CallKind {
	switch {
	case name == "DefineMany":
		return CallReplication
	case definitionNames[name]:
		return CallDefinition
	case registerTypeWidths[name] != 0:
		return CallDefinition
	case branchNames[name]:
		return CallBranch
	case injectorNames[name]:
		return CallCallbackInjector
	case strings.HasPrefix(name, "With"):
		return CallCoverageGenerator
	}
	return CallUnrecognized
}

// Param is one formal parameter of a known builder method.
type Param struct {
	Name    string
	Type    string
	Default *syntax.Constant
}

func defaultInt(v int64) *syntax.Constant {
	c := syntax.IntConstant(v)
	return &c
}

// signatures lists the formal parameters of every recognized builder method,
// in declaration order, so positional arguments can be bound without a full
// C# overload resolver.
var signatures = map[string][]Param{
	"Define": {
		{Name: "owner", Type: "IProvidesRegisterCollection"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
		{Name: "softResettable", Type: "bool"},
		{Name: "name", Type: "string"},
	},
	"DefineConditional": {
		{Name: "owner", Type: "IProvidesRegisterCollection"},
		{Name: "condition", Type: "Func<bool>"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
		{Name: "name", Type: "string"},
	},
	"DefineMany": {
		{Name: "owner", Type: "IProvidesRegisterCollection"},
		{Name: "count", Type: "uint"},
		{Name: "setup", Type: "Action"},
		{Name: "stepInBytes", Type: "uint", Default: defaultInt(4)},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
		{Name: "softResettable", Type: "bool"},
		{Name: "name", Type: "string"},
	},
	"WithFlag": {
		{Name: "position", Type: "int"},
		{Name: "flagField", Type: "IFlagRegisterField"},
		{Name: "mode", Type: "FieldMode"},
		{Name: "readCallback", Type: "Action"},
		{Name: "writeCallback", Type: "Action"},
		{Name: "changeCallback", Type: "Action"},
		{Name: "valueProviderCallback", Type: "Func"},
		{Name: "softResettable", Type: "bool"},
		{Name: "name", Type: "string"},
	},
	"WithValueField": {
		{Name: "position", Type: "int"},
		{Name: "width", Type: "int", Default: defaultInt(1)},
		{Name: "valueField", Type: "IValueRegisterField"},
		{Name: "mode", Type: "FieldMode"},
		{Name: "readCallback", Type: "Action"},
		{Name: "writeCallback", Type: "Action"},
		{Name: "changeCallback", Type: "Action"},
		{Name: "valueProviderCallback", Type: "Func"},
		{Name: "softResettable", Type: "bool"},
		{Name: "name", Type: "string"},
	},
	"WithEnumField": {
		{Name: "position", Type: "int"},
		{Name: "width", Type: "int", Default: defaultInt(1)},
		{Name: "enumField", Type: "IEnumRegisterField"},
		{Name: "mode", Type: "FieldMode"},
		{Name: "readCallback", Type: "Action"},
		{Name: "writeCallback", Type: "Action"},
		{Name: "changeCallback", Type: "Action"},
		{Name: "valueProviderCallback", Type: "Func"},
		{Name: "name", Type: "string"},
	},
	"WithTag": {
		{Name: "name", Type: "string"},
		{Name: "position", Type: "int"},
		{Name: "width", Type: "int", Default: defaultInt(1)},
	},
	"WithTaggedFlag": {
		{Name: "name", Type: "string"},
		{Name: "position", Type: "int"},
	},
	"WithReservedBits": {
		{Name: "position", Type: "int"},
		{Name: "width", Type: "int", Default: defaultInt(1)},
		{Name: "allowedValue", Type: "ulong"},
	},
	"WithIgnoredBits": {
		{Name: "position", Type: "int"},
		{Name: "width", Type: "int", Default: defaultInt(1)},
	},
	"WithReadCallback": {
		{Name: "readCallback", Type: "Action"},
	},
	"WithWriteCallback": {
		{Name: "writeCallback", Type: "Action"},
	},
	"WithChangeCallback": {
		{Name: "changeCallback", Type: "Action"},
	},
	"If": {
		{Name: "condition", Type: "bool"},
	},
	"Then": {
		{Name: "action", Type: "Action"},
	},
	"Else": {
		{Name: "action", Type: "Action"},
	},
	// Register constructors (dictionary idiom).
	"ByteRegister": {
		{Name: "parent", Type: "IPeripheral"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
	},
	"WordRegister": {
		{Name: "parent", Type: "IPeripheral"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
	},
	"DoubleWordRegister": {
		{Name: "parent", Type: "IPeripheral"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
	},
	"QuadWordRegister": {
		{Name: "parent", Type: "IPeripheral"},
		{Name: "resetValue", Type: "ulong", Default: defaultInt(0)},
	},
}

// genericGeneratorParams is the assumed shape of With* methods missing from
// the signature table. Unknown generators still need position/width binding
// so new builder variants degrade gracefully instead of vanishing.
var genericGeneratorParams = []Param{
	{Name: "position", Type: "int"},
	{Name: "width", Type: "int", Default: defaultInt(1)},
	{Name: "mode", Type: "FieldMode"},
	{Name: "readCallback", Type: "Action"},
	{Name: "writeCallback", Type: "Action"},
	{Name: "changeCallback", Type: "Action"},
	{Name: "valueProviderCallback", Type: "Func"},
	{Name: "name", Type: "string"},
}

// signatureFor returns the parameter list for a recognized call name.
func signatureFor(name string) []Param {
	if sig, ok := signatures[name]; ok {
		return sig
	}
	// Width-suffixed definition methods share the plain Define shape.
	if _, ok := defineWidths[name]; ok {
		return signatures["Define"]
	}
	if strings.HasPrefix(name, "With") {
		// Tag/reserved style variants put name first, value fields put
		// position first; pick the generic shape that matches.
		if strings.Contains(name, "Tag") {
			return signatures["WithTag"]
		}
		return genericGeneratorParams
	}
	return nil
}

// defaultFieldModes is FieldMode.Read | FieldMode.Write, the implicit access
// mode of value-carrying fields when no mode argument is given.
var defaultFieldModes = []string{"Read", "Write"}
