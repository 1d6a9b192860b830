package registers

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// ResolvedArgument binds one formal parameter to whatever the call site
// provided for it. Explicit distinguishes arguments written at the call site
// from defaults filled in from the signature table.
type ResolvedArgument struct {
	Name     string
	Type     string
	Value    syntax.Constant
	HasValue bool
	Explicit bool
	Position int
	Expr     *sitter.Node
}

// resolveArguments binds the arguments of a builder call against the formal
// parameter list. Named arguments bind by name, positional ones by order;
// positional arguments past the end of the signature are dropped rather than
// reported, since overloads we do not model exist in the wild. Every formal
// parameter gets exactly one entry in the result, in declaration order.
func (e *Engine) resolveArguments(call *sitter.Node, params []Param) []ResolvedArgument {
	resolved := make([]ResolvedArgument, len(params))
	index := make(map[string]int, len(params))
	for i, p := range params {
		resolved[i] = ResolvedArgument{Name: p.Name, Type: p.Type, Position: i}
		if p.Default != nil {
			resolved[i].Value = *p.Default
			resolved[i].HasValue = true
		}
		index[p.Name] = i
	}

	pos := 0
	for _, arg := range syntax.ArgumentList(call) {
		name, value := syntax.ArgumentParts(arg, e.model.Source)
		var slot int
		if name != "" {
			i, ok := index[name]
			if !ok {
				continue
			}
			slot = i
		} else {
			if pos >= len(params) {
				continue
			}
			slot = pos
			pos++
		}
		resolved[slot].Explicit = true
		resolved[slot].Expr = value
		if value != nil {
			if c, ok := e.model.ConstantValue(value); ok {
				resolved[slot].Value = c
				resolved[slot].HasValue = true
			} else {
				// A non-constant expression overrides any default:
				// downstream stages must see "present but unknown".
				resolved[slot].HasValue = false
			}
		}
	}
	return resolved
}

// argByName finds a resolved argument by its formal parameter name.
func argByName(args []ResolvedArgument, name string) (ResolvedArgument, bool) {
	for _, a := range args {
		if a.Name == name {
			return a, true
		}
	}
	return ResolvedArgument{}, false
}

// intArg returns the constant integer bound to a parameter, if any.
func intArg(args []ResolvedArgument, name string) (int64, bool) {
	a, ok := argByName(args, name)
	if !ok || !a.HasValue || a.Value.Kind != syntax.ConstInt {
		return 0, false
	}
	return a.Value.Int, true
}

// stringArg returns the constant string bound to a parameter, if any.
func stringArg(args []ResolvedArgument, name string) (string, bool) {
	a, ok := argByName(args, name)
	if !ok || !a.HasValue || a.Value.Kind != syntax.ConstString {
		return "", false
	}
	return a.Value.Str, true
}
