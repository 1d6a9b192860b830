package registers

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// AliasPredicate decides whether a symbol belongs in an alias set. Symbols it
// rejects are neither returned nor expanded, so rejecting cuts a whole branch
// of the closure.
type AliasPredicate func(*syntax.Symbol) bool

// registerFamilyTypes are variable types through which register values flow.
var registerFamilyTypes = map[string]bool{
	"ByteRegister":       true,
	"WordRegister":       true,
	"DoubleWordRegister": true,
	"QuadWordRegister":   true,
	"PeripheralRegister": true,
}

// DefaultAliasPredicate admits register-family variables plus anything whose
// type we cannot pin down (var declarations, untyped temporaries). Filtering
// on type keeps the closure from leaking into unrelated integer plumbing.
func DefaultAliasPredicate(sym *syntax.Symbol) bool {
	t := sym.Type
	if t == "" || t == "var" {
		return true
	}
	t = strings.TrimSuffix(t, "?")
	return registerFamilyTypes[t]
}

// trackableKinds limits alias expansion to symbols with value semantics we
// can follow. Methods, classes and enum members never alias a register.
var trackableKinds = map[string]bool{
	syntax.KindLocal:     true,
	syntax.KindField:     true,
	syntax.KindParameter: true,
}

// FindRelated computes the alias set of a symbol: the seed plus every
// trackable symbol connected to it through assignments or initializers,
// filtered by pred. The result always contains the seed when pred admits it,
// is deterministic, and is transitively closed.
func (e *Engine) FindRelated(seed *syntax.Symbol, pred AliasPredicate) []*syntax.Symbol {
	if pred == nil {
		pred = DefaultAliasPredicate
	}
	if seed == nil || !trackableKinds[seed.Kind] || !pred(seed) {
		return nil
	}

	edges := e.aliasEdges()
	seen := map[*syntax.Symbol]bool{seed: true}
	result := []*syntax.Symbol{seed}
	queue := []*syntax.Symbol{seed}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if seen[next] || !trackableKinds[next.Kind] || !pred(next) {
				continue
			}
			seen[next] = true
			result = append(result, next)
			queue = append(queue, next)
		}
	}
	return result
}

// aliasEdges builds the undirected assignment graph for the file, once per
// engine. An edge joins the two sides of `a = b` and a declarator with its
// initializer when both sides resolve to symbols.
func (e *Engine) aliasEdges() map[*syntax.Symbol][]*syntax.Symbol {
	if e.aliases != nil {
		return e.aliases
	}
	e.aliases = make(map[*syntax.Symbol][]*syntax.Symbol)

	addEdge := func(a, b *syntax.Symbol) {
		if a == nil || b == nil || a == b {
			return
		}
		e.aliases[a] = append(e.aliases[a], b)
		e.aliases[b] = append(e.aliases[b], a)
	}

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "assignment_expression" {
			left, lok := e.model.ResolveExpression(n.ChildByFieldName("left"))
			right, rok := e.model.ResolveExpression(n.ChildByFieldName("right"))
			if lok && rok {
				addEdge(left, right)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(e.model.Root())

	for _, sym := range e.model.Symbols() {
		if sym.Init == nil {
			continue
		}
		if target, ok := e.model.ResolveExpression(sym.Init); ok {
			addEdge(sym, target)
		}
	}
	return e.aliases
}
