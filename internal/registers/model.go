package registers

import (
	"encoding/json"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// SpecialKind is a bit-flag set describing irregularities of a register or
// field. The JSON form is a comma-joined flag string ("None" when empty),
// which is what the report tooling consumes.
type SpecialKind uint16

const (
	KindReserved SpecialKind = 1 << iota
	KindVariableLength
	KindVariablePosition
	KindIgnored
	KindTag
	KindVariableAccessMode
	KindMaybeUndefined
	KindNoDefineFound
)

// KindNone is the empty flag set.
const KindNone SpecialKind = 0

var kindNames = []struct {
	flag SpecialKind
	name string
}{
	{KindReserved, "Reserved"},
	{KindVariableLength, "VariableLength"},
	{KindVariablePosition, "VariablePosition"},
	{KindIgnored, "Ignored"},
	{KindTag, "Tag"},
	{KindVariableAccessMode, "VariableAccessMode"},
	{KindMaybeUndefined, "MaybeUndefined"},
	{KindNoDefineFound, "NoDefineFound"},
}

// Has reports whether all flags in mask are set.
func (k SpecialKind) Has(mask SpecialKind) bool { return k&mask == mask }

// HasAny reports whether any flag in mask is set.
func (k SpecialKind) HasAny(mask SpecialKind) bool { return k&mask != 0 }

func (k SpecialKind) String() string {
	if k == KindNone {
		return "None"
	}
	var parts []string
	for _, kn := range kindNames {
		if k.Has(kn.flag) {
			parts = append(parts, kn.name)
		}
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON renders the flag set as its comma-joined string form.
func (k SpecialKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the comma-joined string form back into flags.
func (k *SpecialKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = KindNone
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		for _, kn := range kindNames {
			if kn.name == part {
				*k |= kn.flag
			}
		}
	}
	return nil
}

// BitRange is an inclusive [Start, End] bit interval within a register.
// When the register's width is unknown the range is advisory only.
type BitRange struct {
	Start int `json:"Start"`
	End   int `json:"End"`
}

// Overlaps reports whether two inclusive ranges intersect.
func (r BitRange) Overlaps(other BitRange) bool {
	return min(r.End, other.End) >= max(r.Start, other.Start)
}

// Width returns the number of bits the range spans.
func (r BitRange) Width() int { return r.End - r.Start + 1 }

// CallbackInfo records which callbacks are attached to a register (aggregate)
// or to a single field.
type CallbackInfo struct {
	HasReadCb          bool `json:"HasReadCb"`
	HasWriteCb         bool `json:"HasWriteCb"`
	HasChangeCb        bool `json:"HasChangeCb"`
	HasValueProviderCb bool `json:"HasValueProviderCb"`
}

// Any reports whether any callback is present.
func (c CallbackInfo) Any() bool {
	return c.HasReadCb || c.HasWriteCb || c.HasChangeCb || c.HasValueProviderCb
}

func (c *CallbackInfo) merge(other CallbackInfo) {
	c.HasReadCb = c.HasReadCb || other.HasReadCb
	c.HasWriteCb = c.HasWriteCb || other.HasWriteCb
	c.HasChangeCb = c.HasChangeCb || other.HasChangeCb
	c.HasValueProviderCb = c.HasValueProviderCb || other.HasValueProviderCb
}

// FieldDescriptor is one bit field extracted from a coverage-generating call.
// Immutable once created; the UniqueId is the order of discovery within the
// register, which also drives gap computation.
type FieldDescriptor struct {
	UniqueId      int          `json:"UniqueId"`
	Range         BitRange     `json:"Range"`
	Name          string       `json:"Name"`
	GeneratorName string       `json:"GeneratorName"`
	SpecialKind   SpecialKind  `json:"SpecialKind"`
	CallbackInfo  CallbackInfo `json:"CallbackInfo"`
	FieldMode     []string     `json:"FieldMode"`
	BlockId       int          `json:"BlockId"`

	node *sitter.Node // originating call expression, for diagnostics
}

// Line returns the 1-based source line of the generating call, 0 if unknown.
func (f *FieldDescriptor) Line() int {
	if f.node == nil {
		return 0
	}
	return int(f.node.StartPoint().Row) + 1
}

// ArrayInfo describes register replication produced by a DefineMany call.
type ArrayInfo struct {
	IsArray   bool  `json:"IsArray"`
	Length    int64 `json:"Length"`
	StepBytes int64 `json:"StepBytes"`
}

// RegisterDescriptor is the analysis result for one register enum member.
// Built once per member per run; immutable after construction except for
// Fields, which is populated before coverage analysis sees the descriptor.
type RegisterDescriptor struct {
	Name         string             `json:"Name"`
	OriginalName string             `json:"OriginalName"`
	Address      int64              `json:"Address"`
	Width        *int               `json:"Width"`
	ResetValue   *uint64            `json:"ResetValue"`
	SpecialKind  SpecialKind        `json:"SpecialKind"`
	CallbackInfo CallbackInfo       `json:"CallbackInfo"`
	ParentReg    *string            `json:"ParentReg"`
	ArrayInfo    ArrayInfo          `json:"ArrayInfo"`
	Fields       []*FieldDescriptor `json:"Fields"`

	line int
}

// Line returns the source line of the register's enum member declaration.
func (r *RegisterDescriptor) Line() int { return r.line }

// ReplicatedRegisterLink is a placeholder for one replica produced by a
// replication call. It never owns fields; once resolved it refers back to the
// fully analyzed parent descriptor.
type ReplicatedRegisterLink struct {
	Name    string
	Address int64

	parent *RegisterDescriptor
}

// Resolve fills in the back-reference to the analyzed parent.
func (l *ReplicatedRegisterLink) Resolve(parent *RegisterDescriptor) { l.parent = parent }

// Parent returns the analyzed parent descriptor, nil before resolution.
func (l *ReplicatedRegisterLink) Parent() *RegisterDescriptor { return l.parent }

// Fields exposes the parent's field list; replicas have none of their own.
func (l *ReplicatedRegisterLink) Fields() []*FieldDescriptor {
	if l.parent == nil {
		return nil
	}
	return l.parent.Fields
}

// Descriptor renders the link as a register row for report output.
func (l *ReplicatedRegisterLink) Descriptor() *RegisterDescriptor {
	desc := &RegisterDescriptor{
		Name:         l.Name,
		OriginalName: l.Name,
		Address:      l.Address,
		Fields:       []*FieldDescriptor{},
	}
	if l.parent != nil {
		name := l.parent.Name
		desc.ParentReg = &name
		desc.Width = l.parent.Width
		desc.ResetValue = l.parent.ResetValue
	}
	return desc
}

// RegisterSymbolRef is an opaque reference to a declared register constant:
// the enum member symbol plus its folded address value. Created once per enum
// member during register-table discovery.
type RegisterSymbolRef struct {
	Symbol  *syntax.Symbol
	Name    string
	Address int64
}

// Finding is a single diagnostic produced during analysis, reported upward to
// the policy layer. Kind is a stable identifier, not free text.
type Finding struct {
	Kind     string `json:"kind"`
	Register string `json:"register"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// Finding kinds.
const (
	FindingGap              = "register-gap"
	FindingOverlap          = "field-overlap"
	FindingUnusedDefinite   = "register-unused"
	FindingUnusedProbable   = "register-probably-unused"
	FindingRedefined        = "register-redefined"
	FindingUnrecognizedCall = "unrecognized-call"
	FindingInconsistent     = "inconsistent-definition"
	FindingUnsupported      = "unsupported-construct"
	FindingDepthExhausted   = "branch-depth-exhausted"
	FindingWidthUnknown     = "width-unknown"
)

// Status is the coarse per-unit analysis outcome, monotonically non-decreasing
// within one run.
type Status int

const (
	StatusSkip Status = iota
	StatusPass
	StatusIncomplete
	StatusError
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSkip:
		return "Skip"
	case StatusPass:
		return "Pass"
	case StatusIncomplete:
		return "Incomplete"
	case StatusError:
		return "Error"
	case StatusFatal:
		return "Fatal"
	}
	return "Unknown"
}
