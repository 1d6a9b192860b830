package syntax

// =============================================================================
// SYNTAX PHILOSOPHY: A SMALL SEMANTIC MODEL, NOT A COMPILER
// =============================================================================
//
// This package is the frontend for the register analysis engine. Tree-sitter
// parses C# peripheral models into a syntax tree; on top of that we build a
// per-file symbol table that is just deep enough for the analysis to work:
//
//   - classes (with base lists), enums (with folded member values)
//   - fields, locals, parameters (with declared types)
//   - identifier -> symbol resolution, reference enumeration
//   - compile-time constant folding
//
// It is NOT a general C# semantic model. Overload resolution, generics and
// flow analysis are out of scope; the registers package works off known
// method-name tables instead. When resolution fails here, the engine degrades
// to an "unresolved"/"incomplete" report, it never guesses.
// =============================================================================

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// Symbol kinds.
const (
	KindClass      = "class"
	KindEnum       = "enum"
	KindEnumMember = "enum-member"
	KindField      = "field"
	KindLocal      = "local"
	KindParameter  = "parameter"
	KindMethod     = "method"
)

// Symbol is a named program element declared in one source file.
type Symbol struct {
	Name      string
	Kind      string
	Type      string // declared type text, "" for var/unknown
	Container string // enclosing class or enum name
	IsConst   bool
	Decl      *sitter.Node // declaring identifier node
	Init      *sitter.Node // initializer expression, nil if none
	Scope     *sitter.Node // enclosing method/lambda for locals and parameters
}

// EnumMember is one member of an enum with its folded constant value.
type EnumMember struct {
	Symbol   *Symbol
	Value    int64
	Resolved bool // false if the initializer could not be folded
	Explicit bool // true if the member carries an explicit initializer
}

// Parser wraps a tree-sitter parser configured for C#.
type Parser struct {
	parser *sitter.Parser
}

// New creates a parser for C# source units.
func New() *Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())
	return &Parser{parser: parser}
}

// ParseFile reads and parses a single C# file into a semantic model.
func (p *Parser) ParseFile(path string) (*Model, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return p.Parse(path, content)
}

// Parse builds a semantic model for one source unit.
func (p *Parser) Parse(path string, source []byte) (*Model, error) {
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}

	m := &Model{
		Path:    path,
		Source:  source,
		tree:    tree,
		root:    tree.RootNode(),
		byDecl:  make(map[uint32]*Symbol),
		bases:   make(map[*Symbol][]string),
		members: make(map[*Symbol][]EnumMember),
	}
	m.collect(m.root, "", nil)
	return m, nil
}

// Model is the per-file semantic model. Working sets are local to one file;
// a Model must not be shared across concurrently analyzed units.
type Model struct {
	Path   string
	Source []byte

	tree    *sitter.Tree
	root    *sitter.Node
	symbols []*Symbol
	byDecl  map[uint32]*Symbol
	bases   map[*Symbol][]string
	members map[*Symbol][]EnumMember
}

// Root returns the compilation unit node.
func (m *Model) Root() *sitter.Node { return m.root }

// Symbols returns every declaration collected from the file, in source order.
func (m *Model) Symbols() []*Symbol { return m.symbols }

// Text returns the source text of a node.
func (m *Model) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(m.Source)
}

// Line returns the 1-based source line of a node.
func (m *Model) Line(n *sitter.Node) int {
	if n == nil {
		return 0
	}
	return int(n.StartPoint().Row) + 1
}

// collect walks the tree registering declarations. container is the enclosing
// class/enum name, scope the enclosing method or lambda node (nil at file level).
func (m *Model) collect(node *sitter.Node, container string, scope *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "class_declaration", "struct_declaration":
		name := m.Text(node.ChildByFieldName("name"))
		if name != "" {
			sym := &Symbol{Name: name, Kind: KindClass, Container: container, Decl: node.ChildByFieldName("name")}
			m.add(sym)
			m.bases[sym] = m.baseNames(node)
			container = name
		}

	case "enum_declaration":
		m.collectEnum(node, container)
		return

	case "field_declaration":
		// Keep walking: initializer expressions may declare lambdas.
		m.collectVariables(node, KindField, container, nil, hasModifier(node, m.Source, "const"))

	case "local_declaration_statement":
		m.collectVariables(node, KindLocal, container, scope, hasModifier(node, m.Source, "const"))

	case "method_declaration", "constructor_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			m.add(&Symbol{Name: m.Text(nameNode), Kind: KindMethod, Container: container, Decl: nameNode})
		}
		m.collectParameters(node, container, node)
		scope = node

	case "lambda_expression":
		m.collectParameters(node, container, node)
		scope = node
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		m.collect(node.NamedChild(i), container, scope)
	}
}

func (m *Model) collectEnum(node *sitter.Node, container string) {
	nameNode := node.ChildByFieldName("name")
	name := m.Text(nameNode)
	if name == "" {
		return
	}
	enumSym := &Symbol{Name: name, Kind: KindEnum, Container: container, Decl: nameNode}
	m.add(enumSym)

	body := childOfType(node, "enum_member_declaration_list")
	if body == nil {
		return
	}

	var members []EnumMember
	next := int64(0)
	for i := 0; i < int(body.NamedChildCount()); i++ {
		decl := body.NamedChild(i)
		if decl.Type() != "enum_member_declaration" {
			continue
		}
		memberName := decl.ChildByFieldName("name")
		if memberName == nil {
			memberName = childOfType(decl, "identifier")
		}
		if memberName == nil {
			continue
		}
		sym := &Symbol{
			Name:      m.Text(memberName),
			Kind:      KindEnumMember,
			Type:      name,
			Container: name,
			IsConst:   true,
			Decl:      memberName,
		}
		member := EnumMember{Symbol: sym, Value: next, Resolved: true}
		m.add(sym)
		if value := enumMemberValue(decl); value != nil {
			member.Explicit = true
			sym.Init = value
			// Earlier members must be visible while folding, C# lets an
			// initializer reference them (B = A + 1).
			m.members[enumSym] = members
			if c, ok := m.ConstantValue(value); ok && c.Kind == ConstInt {
				member.Value = c.Int
			} else {
				member.Resolved = false
			}
		}
		next = member.Value + 1
		members = append(members, member)
	}
	m.members[enumSym] = members
}

// collectVariables handles field_declaration and local_declaration_statement,
// both of which wrap a variable_declaration with one or more declarators.
func (m *Model) collectVariables(node *sitter.Node, kind, container string, scope *sitter.Node, isConst bool) {
	varDecl := childOfType(node, "variable_declaration")
	if varDecl == nil {
		return
	}
	typeText := m.Text(varDecl.ChildByFieldName("type"))
	if typeText == "var" {
		typeText = ""
	}
	for i := 0; i < int(varDecl.NamedChildCount()); i++ {
		declarator := varDecl.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		nameNode := childOfType(declarator, "identifier")
		if nameNode == nil {
			continue
		}
		sym := &Symbol{
			Name:      m.Text(nameNode),
			Kind:      kind,
			Type:      typeText,
			Container: container,
			IsConst:   isConst,
			Decl:      nameNode,
			Scope:     scope,
			Init:      declaratorInitializer(declarator),
		}
		m.add(sym)
	}
}

func (m *Model) collectParameters(fn *sitter.Node, container string, scope *sitter.Node) {
	params := childOfType(fn, "parameter_list")
	if params == nil {
		// Single-parameter lambda without parentheses: x => ... The grammar
		// wraps the name in an implicit_parameter node.
		if fn.Type() == "lambda_expression" {
			for i := 0; i < int(fn.NamedChildCount()); i++ {
				c := fn.NamedChild(i)
				switch c.Type() {
				case "implicit_parameter":
					decl := childOfType(c, "identifier")
					if decl == nil {
						decl = c
					}
					m.add(&Symbol{Name: m.Text(decl), Kind: KindParameter, Container: container, Decl: decl, Scope: scope})
				case "identifier":
					m.add(&Symbol{Name: m.Text(c), Kind: KindParameter, Container: container, Decl: c, Scope: scope})
				default:
					continue
				}
				break
			}
		}
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() == "implicit_parameter" {
			decl := childOfType(p, "identifier")
			if decl == nil {
				decl = p
			}
			m.add(&Symbol{Name: m.Text(decl), Kind: KindParameter, Container: container, Decl: decl, Scope: scope})
			continue
		}
		if p.Type() != "parameter" {
			continue
		}
		nameNode := p.ChildByFieldName("name")
		if nameNode == nil {
			// Implicit lambda parameters carry no type; the identifier is
			// the only named child then.
			nameNode = childOfType(p, "identifier")
		}
		if nameNode == nil {
			continue
		}
		m.add(&Symbol{
			Name:      m.Text(nameNode),
			Kind:      KindParameter,
			Type:      m.Text(p.ChildByFieldName("type")),
			Container: container,
			Decl:      nameNode,
			Scope:     scope,
		})
	}
}

func (m *Model) add(sym *Symbol) {
	m.symbols = append(m.symbols, sym)
	if sym.Decl != nil {
		m.byDecl[sym.Decl.StartByte()] = sym
	}
}

func (m *Model) baseNames(classDecl *sitter.Node) []string {
	baseList := childOfType(classDecl, "base_list")
	if baseList == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(baseList.NamedChildCount()); i++ {
		b := baseList.NamedChild(i)
		switch b.Type() {
		case "identifier", "qualified_name", "generic_name":
			names = append(names, m.Text(b))
		}
	}
	return names
}

// Classes returns all class symbols in the unit, in source order.
func (m *Model) Classes() []*Symbol {
	return m.symbolsOfKind(KindClass)
}

// Enums returns all enum symbols in the unit, in source order.
func (m *Model) Enums() []*Symbol {
	return m.symbolsOfKind(KindEnum)
}

func (m *Model) symbolsOfKind(kind string) []*Symbol {
	var out []*Symbol
	for _, s := range m.symbols {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ClassBases returns the base-list names of a class symbol, or nil.
func (m *Model) ClassBases(class *Symbol) []string {
	return m.bases[class]
}

// EnumMembers returns the members of an enum in source order with folded
// constant values. Implicit members continue from the previous value, C# style.
func (m *Model) EnumMembers(enum *Symbol) []EnumMember {
	if enum == nil {
		return nil
	}
	return m.members[enum]
}

// EnumsIn returns the enums declared inside the given class.
func (m *Model) EnumsIn(class *Symbol) []*Symbol {
	var out []*Symbol
	for _, s := range m.symbols {
		if s.Kind == KindEnum && s.Container == class.Name {
			out = append(out, s)
		}
	}
	return out
}

// ResolveExpression resolves an identifier or member-access expression to the
// symbol it denotes. It covers exactly the shapes the register analysis needs:
// plain identifiers (innermost scope wins) and Qualifier.Name accesses where
// the qualifier is an enum or `this`.
func (m *Model) ResolveExpression(n *sitter.Node) (*Symbol, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Type() {
	case "identifier":
		return m.resolveIdentifier(n)
	case "member_access_expression":
		qualifier := n.ChildByFieldName("expression")
		name := n.ChildByFieldName("name")
		if qualifier == nil || name == nil {
			return nil, false
		}
		if qualifier.Type() == "this_expression" {
			return m.lookup(m.Text(name), KindField)
		}
		if qualSym, ok := m.ResolveExpression(qualifier); ok && qualSym.Kind == KindEnum {
			return m.lookupMember(qualSym, m.Text(name))
		}
		return nil, false
	case "parenthesized_expression":
		if inner := firstNamedChild(n); inner != nil {
			return m.ResolveExpression(inner)
		}
	case "cast_expression":
		if value := n.ChildByFieldName("value"); value != nil {
			return m.ResolveExpression(value)
		}
	}
	return nil, false
}

func (m *Model) resolveIdentifier(n *sitter.Node) (*Symbol, bool) {
	// A member-access name is resolved through its qualifier, never bare.
	if p := n.Parent(); p != nil && p.Type() == "member_access_expression" {
		if name := p.ChildByFieldName("name"); name != nil && sameNode(name, n) {
			return m.ResolveExpression(p)
		}
	}

	text := m.Text(n)
	var best *Symbol
	for _, s := range m.symbols {
		if s.Name != text || sameNode(s.Decl, n) {
			continue
		}
		switch s.Kind {
		case KindLocal, KindParameter:
			if s.Scope != nil && !contains(s.Scope, n) {
				continue
			}
			// Innermost scope wins.
			if best == nil || best.Kind == KindField || best.Kind == KindClass || best.Kind == KindEnum ||
				(best.Scope != nil && s.Scope != nil && contains(best.Scope, s.Scope)) {
				best = s
			}
		case KindField:
			if best == nil || best.Kind == KindClass || best.Kind == KindEnum {
				best = s
			}
		case KindClass, KindEnum:
			if best == nil {
				best = s
			}
		case KindEnumMember:
			// Bare member names are only visible inside their own enum body.
			if insideEnumBody(n) && (best == nil || best.Kind == KindClass || best.Kind == KindEnum) {
				best = s
			}
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

func (m *Model) lookup(name, kind string) (*Symbol, bool) {
	for _, s := range m.symbols {
		if s.Kind == kind && s.Name == name {
			return s, true
		}
	}
	return nil, false
}

func (m *Model) lookupMember(enum *Symbol, member string) (*Symbol, bool) {
	for _, em := range m.members[enum] {
		if em.Symbol.Name == member {
			return em.Symbol, true
		}
	}
	return nil, false
}

// MemberValue returns the folded constant value of an enum member symbol.
func (m *Model) MemberValue(sym *Symbol) (int64, bool) {
	if sym == nil || sym.Kind != KindEnumMember {
		return 0, false
	}
	for _, ems := range m.members {
		for _, em := range ems {
			if em.Symbol == sym {
				return em.Value, em.Resolved
			}
		}
	}
	return 0, false
}

// References returns every reference expression to sym within scope (the whole
// unit when scope is nil), in source order. For enum members the returned node
// is the full Qualifier.Name access when the reference is qualified.
func (m *Model) References(sym *Symbol, scope *sitter.Node) []*sitter.Node {
	if sym == nil {
		return nil
	}
	if scope == nil {
		scope = m.root
	}
	var refs []*sitter.Node
	m.walkReferences(scope, sym, &refs)
	return refs
}

func (m *Model) walkReferences(node *sitter.Node, sym *Symbol, refs *[]*sitter.Node) {
	if node == nil {
		return
	}
	if node.Type() == "identifier" && m.Text(node) == sym.Name && !sameNode(node, sym.Decl) {
		if resolved, ok := m.resolveIdentifier(node); ok && resolved == sym {
			ref := node
			if p := node.Parent(); p != nil && p.Type() == "member_access_expression" {
				if name := p.ChildByFieldName("name"); name != nil && sameNode(name, node) {
					ref = p
				}
			}
			*refs = append(*refs, ref)
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		m.walkReferences(node.NamedChild(i), sym, refs)
	}
}

// SameBlock reports whether two nodes share their nearest enclosing statement
// block. Lambda bodies count as their own block, so fields introduced in
// separate branch lambdas never share a block.
func (m *Model) SameBlock(a, b *sitter.Node) bool {
	ba := enclosingBlock(a)
	bb := enclosingBlock(b)
	if ba == nil || bb == nil {
		return ba == nil && bb == nil
	}
	return sameNode(ba, bb)
}

func insideEnumBody(n *sitter.Node) bool {
	return Ancestor(n, "enum_member_declaration_list") != nil
}

func enclosingBlock(n *sitter.Node) *sitter.Node {
	for cur := n; cur != nil; cur = cur.Parent() {
		switch cur.Type() {
		case "block", "switch_section":
			return cur
		case "lambda_expression":
			// Expression-bodied lambda: the lambda itself is the block.
			return cur
		}
	}
	return nil
}
