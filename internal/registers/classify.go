package registers

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// Idiom names the register definition style found at a reference site.
type Idiom int

const (
	IdiomNone Idiom = iota
	IdiomExtensionChain
	IdiomDictEntry
	IdiomSwitchCase
)

func (i Idiom) String() string {
	switch i {
	case IdiomExtensionChain:
		return "extension-chain"
	case IdiomDictEntry:
		return "dict-entry"
	case IdiomSwitchCase:
		return "switch-case"
	}
	return "none"
}

// Classification records how a single reference defines a register, plus the
// syntax node to expand from. Width is nil when no table could supply one.
type Classification struct {
	Idiom Idiom
	Width *int

	// Call is the definition invocation for extension chains, the register
	// constructor for dictionary entries, and nil for switch cases.
	Call *sitter.Node
	// Entry is the two-element initializer for dictionary entries.
	Entry *sitter.Node
	// Section is the enclosing switch section for switch cases.
	Section *sitter.Node
}

// classifyReference inspects a reference to a register symbol and determines
// which definition idiom, if any, it participates in. References that match
// no idiom return IdiomNone; the caller decides whether that is suspicious.
func (e *Engine) classifyReference(ref *sitter.Node) Classification {
	if c, ok := e.classifyExtensionChain(ref); ok {
		return c
	}
	if c, ok := e.classifyDictEntry(ref); ok {
		return c
	}
	if c, ok := e.classifySwitchCase(ref); ok {
		return c
	}
	return Classification{}
}

// classifyExtensionChain matches `Registers.Foo.Define32(this, ...)`: the
// reference is the receiver of a member access whose parent invokes a
// definition method.
func (e *Engine) classifyExtensionChain(ref *sitter.Node) (Classification, bool) {
	access := ref.Parent()
	if access == nil || access.Type() != "member_access_expression" {
		return Classification{}, false
	}
	expr := access.ChildByFieldName("expression")
	if !syntax.SameNode(expr, ref) {
		return Classification{}, false
	}
	call := access.Parent()
	if call == nil || call.Type() != "invocation_expression" {
		return Classification{}, false
	}
	name := e.model.Text(access.ChildByFieldName("name"))
	kind := classifyCall(name)
	if kind != CallDefinition && kind != CallReplication {
		// The register value is dotted into something that is not a
		// definition. A method we have never seen on a register enum
		// member usually means the builder API grew a new entry point.
		if kind == CallUnrecognized {
			e.addFinding(FindingUnrecognizedCall, "", ref,
				fmt.Sprintf("method %q called on a register value is not a known definition method", name))
		}
		return Classification{}, false
	}
	c := Classification{Idiom: IdiomExtensionChain, Call: call}
	if w, ok := defineWidths[name]; ok {
		c.Width = &w
	} else if e.peripheralWidth != 0 {
		w := e.peripheralWidth
		c.Width = &w
	}
	return c, true
}

// classifyDictEntry matches the dictionary collection-initializer idiom:
//
//	new Dictionary<long, DoubleWordRegister> {
//	    {(long)Registers.Foo, new DoubleWordRegister(this).WithFlag(0)},
//	}
//
// The reference sits inside a two-element inner initializer nested in the
// dictionary's collection initializer.
func (e *Engine) classifyDictEntry(ref *sitter.Node) (Classification, bool) {
	entry := syntax.Ancestor(ref, "initializer_expression")
	if entry == nil {
		return Classification{}, false
	}
	// The entry's parent is the collection initializer itself.
	outer := entry.Parent()
	if outer == nil || outer.Type() != "initializer_expression" {
		return Classification{}, false
	}
	creation := syntax.Ancestor(outer, "object_creation_expression")
	if creation == nil {
		return Classification{}, false
	}

	elems := syntax.NamedChildren(entry)
	if len(elems) != 2 {
		e.elevate(StatusError)
		e.addFinding(FindingInconsistent, "", entry,
			fmt.Sprintf("dictionary entry has %d elements, expected key and register", len(elems)))
		return Classification{}, false
	}
	if !syntax.Contains(elems[0], ref) && !syntax.SameNode(elems[0], ref) {
		// The register symbol must be (inside) the key; a register
		// mentioned in the value position is a nested use, not a
		// definition site.
		return Classification{}, false
	}

	c := Classification{Idiom: IdiomDictEntry, Entry: entry}
	c.Call = dictEntryConstructor(elems[1])
	if args := syntax.TypeArguments(creation.ChildByFieldName("type"), e.model.Source); len(args) == 2 {
		if w, ok := registerTypeWidths[args[1]]; ok {
			c.Width = &w
		}
	}
	if c.Width == nil && c.Call != nil {
		if w, ok := registerTypeWidths[syntax.CalleeName(c.Call, e.model.Source)]; ok {
			c.Width = &w
		}
	}
	return c, true
}

// dictEntryConstructor digs the register constructor out of a dictionary
// entry's value, skipping through any trailing builder chain.
func dictEntryConstructor(value *sitter.Node) *sitter.Node {
	for value != nil {
		switch value.Type() {
		case "object_creation_expression":
			return value
		case "invocation_expression":
			value = value.ChildByFieldName("function")
		case "member_access_expression":
			value = value.ChildByFieldName("expression")
		case "parenthesized_expression", "cast_expression":
			if inner := value.ChildByFieldName("value"); inner != nil {
				value = inner
			} else if kids := syntax.NamedChildren(value); len(kids) > 0 {
				value = kids[len(kids)-1]
			} else {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// classifySwitchCase matches register handling inside `switch ((Registers)offset)`
// sections where the reference labels a case. The register's width comes from
// the scrutinee's built-in type before the cast, when there is one.
func (e *Engine) classifySwitchCase(ref *sitter.Node) (Classification, bool) {
	section := syntax.Ancestor(ref, "switch_section")
	if section == nil {
		return Classification{}, false
	}
	// The reference must appear in a case label, not in the section body.
	label := syntax.Ancestor(ref, "case_switch_label", "case_pattern_switch_label", "constant_pattern")
	if label == nil || !syntax.Contains(section, label) {
		return Classification{}, false
	}
	sw := syntax.Ancestor(section, "switch_statement")
	if sw == nil {
		return Classification{}, false
	}

	c := Classification{Idiom: IdiomSwitchCase, Section: section}
	if w, ok := e.scrutineeWidth(syntax.SwitchValue(sw)); ok {
		c.Width = &w
	} else if e.peripheralWidth != 0 {
		w := e.peripheralWidth
		c.Width = &w
	}
	return c, true
}

// scrutineeWidth derives a register width from what the switch examines: the
// declared built-in type of the switched variable, looking through a cast to
// the register enum.
func (e *Engine) scrutineeWidth(value *sitter.Node) (int, bool) {
	for value != nil {
		switch value.Type() {
		case "cast_expression":
			value = value.ChildByFieldName("value")
		case "parenthesized_expression":
			value = firstNamed(value)
		default:
			if sym, ok := e.model.ResolveExpression(value); ok {
				if w, ok := builtinTypeWidths[sym.Type]; ok {
					return w, true
				}
			}
			return 0, false
		}
	}
	return 0, false
}

func firstNamed(n *sitter.Node) *sitter.Node {
	kids := syntax.NamedChildren(n)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}
