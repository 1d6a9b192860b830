package registers

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// DefaultBranchDepthLimit bounds lambda descent through conditional builder
// branches so self-referential definitions terminate.
const DefaultBranchDepthLimit = 25

// Options configures an Engine for one source unit.
type Options struct {
	// PeripheralWidth is the register width implied by the peripheral's
	// base class, used when a definition call does not carry its own.
	// Zero means unknown.
	PeripheralWidth int
	// BranchDepthLimit overrides DefaultBranchDepthLimit when positive.
	BranchDepthLimit int
}

// Engine resolves register definitions within a single source unit. It is
// not safe for concurrent use; the host creates one engine per analyzed unit.
type Engine struct {
	model           *syntax.Model
	depthLimit      int
	peripheralWidth int

	status   Status
	findings []Finding
	replicas map[int64]*ReplicatedRegisterLink
	aliases  map[*syntax.Symbol][]*syntax.Symbol
}

// NewEngine builds an engine over an already parsed semantic model.
func NewEngine(model *syntax.Model, opts Options) *Engine {
	limit := opts.BranchDepthLimit
	if limit <= 0 {
		limit = DefaultBranchDepthLimit
	}
	return &Engine{
		model:           model,
		depthLimit:      limit,
		peripheralWidth: opts.PeripheralWidth,
		status:          StatusSkip,
		replicas:        make(map[int64]*ReplicatedRegisterLink),
	}
}

// GetRegisterInfo resolves one register symbol into a full descriptor:
// definition sites are classified, the builder chain expanded, fields
// extracted and coverage checked. Diagnostics accumulate on the engine.
func (e *Engine) GetRegisterInfo(ref RegisterSymbolRef) (*RegisterDescriptor, error) {
	if ref.Symbol == nil {
		return nil, fmt.Errorf("register %s: no backing symbol", ref.Name)
	}
	e.elevate(StatusPass)

	desc := e.expand(ref)
	e.reportCoverage(desc)
	return desc, nil
}

// reportCoverage turns gap and overlap analysis into findings for a resolved
// descriptor. Unused registers carry no layout to check.
func (e *Engine) reportCoverage(desc *RegisterDescriptor) {
	if desc.SpecialKind.HasAny(KindMaybeUndefined | KindNoDefineFound) {
		return
	}
	for _, gap := range FindGaps(desc) {
		e.addFindingAt(FindingGap, desc.Name, desc.Line(),
			fmt.Sprintf("bits [%d, %d) of register %s are not covered by any field", gap.Start, gap.End, desc.Name))
	}
	for _, ov := range FindOverlaps(desc.Fields) {
		e.addFindingAt(FindingOverlap, desc.Name, ov.B.Line(),
			fmt.Sprintf("fields %s and %s of register %s overlap", describeField(ov.A), describeField(ov.B), desc.Name))
	}
}

// Findings returns the diagnostics accumulated so far, in discovery order.
func (e *Engine) Findings() []Finding { return e.findings }

// Status returns the aggregate analysis status for this unit.
func (e *Engine) Status() Status { return e.status }

// Replicas returns the replicated-register links produced by replication
// calls, keyed by absolute address.
func (e *Engine) Replicas() map[int64]*ReplicatedRegisterLink { return e.replicas }

// SetFatal forces the status to Fatal. The host boundary calls this after
// recovering from a panic inside unit analysis.
func (e *Engine) SetFatal() { e.status = StatusFatal }

// elevate raises the status; the status never goes back down within a run.
func (e *Engine) elevate(s Status) {
	if s > e.status {
		e.status = s
	}
}

func (e *Engine) addFinding(kind, register string, node *sitter.Node, message string) {
	e.addFindingAt(kind, register, e.model.Line(node), message)
}

func (e *Engine) addFindingAt(kind, register string, line int, message string) {
	e.findings = append(e.findings, Finding{
		Kind:     kind,
		Register: register,
		File:     e.model.Path,
		Line:     line,
		Message:  message,
	})
}

func (e *Engine) recordReplica(link *ReplicatedRegisterLink) {
	e.replicas[link.Address] = link
}
