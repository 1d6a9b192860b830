package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Tree navigation helpers shared by the model and the register engine. The
// helpers tolerate missing field names by falling back to child-type scans,
// which keeps us working across minor grammar revisions.

// childOfType returns the first named child (recursively one level deep for
// wrapped declarations) with the given type, or nil.
func childOfType(n *sitter.Node, nodeType string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() == nodeType {
			return c
		}
	}
	return nil
}

// ChildOfType is the exported form of childOfType.
func ChildOfType(n *sitter.Node, nodeType string) *sitter.Node {
	return childOfType(n, nodeType)
}

// NamedChildren returns the named children of a node.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	return n.NamedChild(0)
}

// Ancestor walks up from n until it finds a node of one of the given types.
func Ancestor(n *sitter.Node, types ...string) *sitter.Node {
	for cur := parentOf(n); cur != nil; cur = cur.Parent() {
		for _, t := range types {
			if cur.Type() == t {
				return cur
			}
		}
	}
	return nil
}

func parentOf(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.Parent()
}

// sameNode compares node identity by span and type. Tree-sitter hands out
// fresh Node values on every navigation, so pointer comparison is useless.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// SameNode is the exported form of sameNode.
func SameNode(a, b *sitter.Node) bool { return sameNode(a, b) }

// contains reports whether outer's span strictly covers inner's span.
func contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}

// Contains is the exported form of contains.
func Contains(outer, inner *sitter.Node) bool { return contains(outer, inner) }

// hasModifier reports whether a declaration carries the given modifier keyword.
func hasModifier(decl *sitter.Node, source []byte, modifier string) bool {
	if decl == nil {
		return false
	}
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() == "modifier" && c.Content(source) == modifier {
			return true
		}
	}
	return false
}

// enumMemberValue returns the explicit initializer expression of an enum
// member declaration, or nil.
func enumMemberValue(decl *sitter.Node) *sitter.Node {
	if v := decl.ChildByFieldName("value"); v != nil {
		return v
	}
	// Fallback: the value is the named child after the identifier.
	var sawName bool
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() == "identifier" && !sawName {
			sawName = true
			continue
		}
		if sawName {
			return c
		}
	}
	return nil
}

// declaratorInitializer returns the initializer expression of a
// variable_declarator (`name = expr`), or nil.
func declaratorInitializer(declarator *sitter.Node) *sitter.Node {
	if eq := childOfType(declarator, "equals_value_clause"); eq != nil {
		return firstNamedChild(eq)
	}
	// Some grammar revisions inline the initializer after '='.
	if declarator.NamedChildCount() >= 2 {
		return declarator.NamedChild(int(declarator.NamedChildCount()) - 1)
	}
	return nil
}

// CalleeName returns the called method name of an invocation or
// object-creation expression: `a.b.Define(...)` -> "Define",
// `new DoubleWordRegister(...)` -> "DoubleWordRegister".
func CalleeName(call *sitter.Node, source []byte) string {
	if call == nil {
		return ""
	}
	switch call.Type() {
	case "invocation_expression":
		fn := call.ChildByFieldName("function")
		if fn == nil {
			return ""
		}
		switch fn.Type() {
		case "member_access_expression":
			return textOf(fn.ChildByFieldName("name"), source)
		case "identifier", "generic_name":
			return textOf(fn, source)
		}
	case "object_creation_expression":
		return TypeName(call.ChildByFieldName("type"), source)
	}
	return ""
}

// Receiver returns the expression a method is invoked on, or nil for plain
// function calls and object creations.
func Receiver(call *sitter.Node) *sitter.Node {
	if call == nil || call.Type() != "invocation_expression" {
		return nil
	}
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "member_access_expression" {
		return nil
	}
	return fn.ChildByFieldName("expression")
}

// ArgumentList returns the argument nodes of a call or object creation.
func ArgumentList(call *sitter.Node) []*sitter.Node {
	if call == nil {
		return nil
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		args = childOfType(call, "argument_list")
	}
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == "argument" {
			out = append(out, c)
		}
	}
	return out
}

// ArgumentParts splits an argument node into its optional name (from a
// `name:` prefix) and the value expression. The grammar flattens a named
// argument into (identifier, expression) siblings with the ':' as an
// anonymous token, so the name is recognized by that token, never by child
// count alone — a bare identifier argument has no colon.
func ArgumentParts(arg *sitter.Node, source []byte) (name string, value *sitter.Node) {
	if arg == nil {
		return "", nil
	}
	for i := 0; i < int(arg.NamedChildCount()); i++ {
		c := arg.NamedChild(i)
		if c.Type() == "name_colon" {
			name = textOf(childOfType(c, "identifier"), source)
			continue
		}
		value = c
	}
	if name == "" && arg.NamedChildCount() == 2 {
		first := arg.NamedChild(0)
		if first.Type() == "identifier" && hasColonToken(arg) {
			return textOf(first, source), arg.NamedChild(1)
		}
	}
	return name, value
}

func hasColonToken(n *sitter.Node) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == ":" {
			return true
		}
	}
	return false
}

// TypeName reduces a type node to its bare name: `DoubleWordRegister`,
// `Dictionary<long, DoubleWordRegister>` -> "Dictionary".
func TypeName(t *sitter.Node, source []byte) string {
	if t == nil {
		return ""
	}
	switch t.Type() {
	case "generic_name":
		return textOf(childOfType(t, "identifier"), source)
	case "qualified_name":
		if name := t.ChildByFieldName("name"); name != nil {
			return TypeName(name, source)
		}
	}
	return textOf(t, source)
}

// TypeArguments returns the type-argument names of a generic type node.
func TypeArguments(t *sitter.Node, source []byte) []string {
	if t == nil {
		return nil
	}
	list := childOfType(t, "type_argument_list")
	if list == nil {
		return nil
	}
	var out []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		out = append(out, TypeName(list.NamedChild(i), source))
	}
	return out
}

// SwitchValue returns the scrutinee expression of a switch statement.
func SwitchValue(sw *sitter.Node) *sitter.Node {
	if sw == nil {
		return nil
	}
	if v := sw.ChildByFieldName("value"); v != nil {
		return v
	}
	if v := sw.ChildByFieldName("condition"); v != nil {
		return v
	}
	return firstNamedChild(sw)
}

// LambdaBody returns the body of a lambda expression (block or expression).
func LambdaBody(lambda *sitter.Node) *sitter.Node {
	if lambda == nil {
		return nil
	}
	if b := lambda.ChildByFieldName("body"); b != nil {
		return b
	}
	if lambda.NamedChildCount() == 0 {
		return nil
	}
	return lambda.NamedChild(int(lambda.NamedChildCount()) - 1)
}

func textOf(n *sitter.Node, source []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(source)
}
