package registers

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// extractField interprets one coverage-generating call as a field descriptor.
// It returns nil when the call carries no position argument: such a call is
// not declaring a bit range, whatever else it may be doing.
func (e *Engine) extractField(call *sitter.Node, name string, uniqueId int) *FieldDescriptor {
	params := signatureFor(name)
	args := e.resolveArguments(call, params)

	pos, posOK := argByName(args, "position")
	if !posOK || !pos.Explicit {
		return nil
	}

	f := &FieldDescriptor{
		UniqueId:      uniqueId,
		GeneratorName: name,
		FieldMode:     []string{},
		node:          call,
	}

	start := 0
	if pos.HasValue && pos.Value.Kind == syntax.ConstInt {
		start = int(pos.Value.Int)
	} else {
		// Position exists but is computed at runtime; keep the field with
		// a placeholder range so coverage knows to stay away from it.
		f.SpecialKind |= KindVariablePosition
	}

	width := 1
	if w, ok := argByName(args, "width"); ok {
		if w.HasValue && w.Value.Kind == syntax.ConstInt {
			width = int(w.Value.Int)
		} else if w.Explicit {
			f.SpecialKind |= KindVariableLength
		}
	}
	f.Range = BitRange{Start: start, End: start + width - 1}

	if s, ok := stringArg(args, "name"); ok {
		f.Name = s
	}
	switch {
	case strings.Contains(strings.ToLower(name), "reserved"):
		f.SpecialKind |= KindReserved
		if f.Name == "" {
			f.Name = "RESERVED"
		}
	case strings.Contains(strings.ToLower(name), "ignored"):
		f.SpecialKind |= KindIgnored
		if f.Name == "" {
			f.Name = "IGNORED"
		}
	case strings.Contains(name, "Tag"):
		f.SpecialKind |= KindTag
	}

	e.extractFieldModes(f, args, params)

	if a, ok := argByName(args, "readCallback"); ok && a.Explicit {
		f.CallbackInfo.HasReadCb = true
	}
	if a, ok := argByName(args, "writeCallback"); ok && a.Explicit {
		f.CallbackInfo.HasWriteCb = true
	}
	if a, ok := argByName(args, "changeCallback"); ok && a.Explicit {
		f.CallbackInfo.HasChangeCb = true
	}
	if a, ok := argByName(args, "valueProviderCallback"); ok && a.Explicit {
		f.CallbackInfo.HasValueProviderCb = true
	}
	return f
}

// extractFieldModes fills in the access-mode token list. Mode expressions are
// flag combinations (`FieldMode.Read | FieldMode.WriteOneToClear`) that an
// external enum defines, so they are read structurally: each `|`-separated
// term of the shape FieldMode.X contributes its member name, anything else is
// kept as raw source text and the field is flagged as having a mode we could
// not resolve.
func (e *Engine) extractFieldModes(f *FieldDescriptor, args []ResolvedArgument, params []Param) {
	mode, ok := argByName(args, "mode")
	if !ok {
		return
	}
	if !mode.Explicit {
		if hasParam(params, "mode") && !f.SpecialKind.HasAny(KindReserved|KindIgnored|KindTag) {
			f.FieldMode = append(f.FieldMode, defaultFieldModes...)
		}
		return
	}
	for _, term := range strings.Split(e.model.Text(mode.Expr), "|") {
		term = strings.TrimSpace(term)
		if member, ok := strings.CutPrefix(term, "FieldMode."); ok && isIdentifier(member) {
			f.FieldMode = append(f.FieldMode, member)
		} else {
			f.FieldMode = append(f.FieldMode, term)
			f.SpecialKind |= KindVariableAccessMode
		}
	}
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// assignBlockIds groups fields by the statement block their generating calls
// live in. A field joins the block id of the first earlier field sharing its
// block; otherwise it opens a new block. Fields from alternative branches end
// up in distinct blocks, which scopes overlap detection correctly.
func assignBlockIds(m *syntax.Model, fields []*FieldDescriptor) {
	next := 0
	for i, f := range fields {
		assigned := false
		for _, prev := range fields[:i] {
			if m.SameBlock(f.node, prev.node) {
				f.BlockId = prev.BlockId
				assigned = true
				break
			}
		}
		if !assigned {
			f.BlockId = next
			next++
		}
	}
}

// describeField renders a short human-readable field summary for diagnostics.
func describeField(f *FieldDescriptor) string {
	name := f.Name
	if name == "" {
		name = fmt.Sprintf("field #%d", f.UniqueId)
	}
	return fmt.Sprintf("%s [%d, %d]", name, f.Range.Start, f.Range.End)
}
