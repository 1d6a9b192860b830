package registers

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/antmicro/renode-models-analyzer/internal/syntax"
)

// expansion is the per-register working state of one chain walk. It is
// created and discarded inside a single GetRegisterInfo call and never shared.
type expansion struct {
	e    *Engine
	ref  RegisterSymbolRef
	desc *RegisterDescriptor

	defined  bool
	replicas []*ReplicatedRegisterLink
}

// expand resolves one register symbol into a descriptor by walking every
// reference, classifying each definition site and following the builder chain
// rooted there. References that never classify leave the register flagged as
// probably unused; zero references flag it as definitely unused.
func (e *Engine) expand(ref RegisterSymbolRef) *RegisterDescriptor {
	x := &expansion{
		e:   e,
		ref: ref,
		desc: &RegisterDescriptor{
			Name:         ref.Name,
			OriginalName: ref.Name,
			Address:      ref.Address,
			Fields:       []*FieldDescriptor{},
			line:         e.model.Line(ref.Symbol.Decl),
		},
	}

	refs := e.model.References(ref.Symbol, nil)
	if len(refs) == 0 {
		x.desc.SpecialKind |= KindMaybeUndefined
		e.addFinding(FindingUnusedDefinite, ref.Name, ref.Symbol.Decl,
			fmt.Sprintf("register %s is never referenced", ref.Name))
		return x.desc
	}

	classified := false
	for _, r := range refs {
		c := e.classifyReference(r)
		if c.Idiom == IdiomNone {
			continue
		}
		classified = true
		x.applyWidth(c.Width)
		switch c.Idiom {
		case IdiomExtensionChain:
			x.expandChain(c.Call)
		case IdiomDictEntry:
			x.expandDictEntry(c)
		case IdiomSwitchCase:
			// Width only. The section body does manual value plumbing
			// that carries no field structure we can extract.
			x.defined = true
		}
	}
	if !classified {
		x.desc.SpecialKind |= KindNoDefineFound
		for _, r := range refs {
			e.addFinding(FindingUnusedProbable, ref.Name, r,
				fmt.Sprintf("reference to register %s matches no known definition idiom", ref.Name))
		}
		return x.desc
	}

	assignBlockIds(e.model, x.desc.Fields)
	for _, link := range x.replicas {
		link.Resolve(x.desc)
		e.recordReplica(link)
	}
	if x.desc.Width == nil {
		e.elevate(StatusIncomplete)
		e.addFinding(FindingWidthUnknown, ref.Name, ref.Symbol.Decl,
			fmt.Sprintf("could not determine the width of register %s", ref.Name))
	}
	return x.desc
}

// applyWidth adopts a width from a classification, complaining when two
// definition sites disagree.
func (x *expansion) applyWidth(w *int) {
	if w == nil {
		return
	}
	if x.desc.Width != nil && *x.desc.Width != *w {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingInconsistent, x.ref.Name, x.ref.Symbol.Decl,
			fmt.Sprintf("register %s is defined with conflicting widths %d and %d", x.ref.Name, *x.desc.Width, *w))
	}
	x.desc.Width = w
}

// expandChain walks a fluent chain starting at its definition call,
// processing every member call stacked on top of it, then follows aliases of
// whatever variable the chain result was stored in.
func (x *expansion) expandChain(defineCall *sitter.Node) {
	x.processCall(defineCall, 0)
	last := x.followFluent(defineCall, 0)
	x.followAliasedContinuations(last)
}

// followFluent walks outward from call through the member-access spine,
// processing each stacked invocation. Returns the outermost chain node.
func (x *expansion) followFluent(call *sitter.Node, depth int) *sitter.Node {
	cur := call
	for {
		access := cur.Parent()
		if access == nil || access.Type() != "member_access_expression" {
			return cur
		}
		if !syntax.SameNode(access.ChildByFieldName("expression"), cur) {
			return cur
		}
		next := access.Parent()
		if next == nil || next.Type() != "invocation_expression" {
			return cur
		}
		x.processCall(next, depth)
		cur = next
	}
}

// followAliasedContinuations handles definitions whose chain continues on a
// stored variable:
//
//	var reg = Registers.Ctrl.Define32(this);
//	reg.WithFlag(0);
//
// The chain's result symbol is alias-tracked and every member call rooted at
// an alias is folded into the same register.
func (x *expansion) followAliasedContinuations(chainEnd *sitter.Node) {
	sym := x.assignedSymbol(chainEnd)
	if sym == nil {
		return
	}
	for _, alias := range x.e.FindRelated(sym, nil) {
		for _, ref := range x.e.model.References(alias, nil) {
			if syntax.Contains(chainEnd, ref) {
				continue
			}
			call := receiverCall(ref)
			if call == nil {
				continue
			}
			x.processCall(call, 0)
			x.followFluent(call, 0)
		}
	}
}

// assignedSymbol resolves the variable a chain expression is stored into,
// through either a declarator initializer or a plain assignment.
func (x *expansion) assignedSymbol(chainEnd *sitter.Node) *syntax.Symbol {
	parent := chainEnd.Parent()
	for parent != nil && parent.Type() == "parenthesized_expression" {
		parent = parent.Parent()
	}
	if parent == nil {
		return nil
	}
	switch parent.Type() {
	case "variable_declarator":
		// The grammar hangs the initializer expression directly off the
		// declarator, next to the declared identifier.
		name := syntax.ChildOfType(parent, "identifier")
		if name == nil || syntax.SameNode(name, chainEnd) {
			return nil
		}
		if sym, ok := x.e.model.ResolveExpression(name); ok {
			return sym
		}
	case "equals_value_clause":
		declarator := parent.Parent()
		if declarator == nil || declarator.Type() != "variable_declarator" {
			return nil
		}
		name := syntax.ChildOfType(declarator, "identifier")
		if name == nil {
			return nil
		}
		if sym, ok := x.e.model.ResolveExpression(name); ok {
			return sym
		}
	case "assignment_expression":
		if sym, ok := x.e.model.ResolveExpression(parent.ChildByFieldName("left")); ok {
			return sym
		}
	}
	return nil
}

// receiverCall returns the invocation whose receiver is exactly ref, or nil.
func receiverCall(ref *sitter.Node) *sitter.Node {
	access := ref.Parent()
	if access == nil || access.Type() != "member_access_expression" {
		return nil
	}
	if !syntax.SameNode(access.ChildByFieldName("expression"), ref) {
		return nil
	}
	call := access.Parent()
	if call == nil || call.Type() != "invocation_expression" {
		return nil
	}
	return call
}

// expandDictEntry processes the value side of a dictionary register entry:
// a register constructed in place carries its chain right there, a reference
// to a separately built register is followed through the alias tracker.
func (x *expansion) expandDictEntry(c Classification) {
	elems := syntax.NamedChildren(c.Entry)
	if len(elems) != 2 {
		return
	}
	value := elems[1]
	if c.Call != nil {
		x.processCall(c.Call, 0)
		x.followFluent(c.Call, 0)
		return
	}
	// Not constructed in place; the value names an object built elsewhere.
	sym, ok := x.e.model.ResolveExpression(unwrapValue(value))
	if !ok {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingUnsupported, x.ref.Name, value,
			"dictionary register value is neither a construction nor a resolvable reference")
		return
	}
	x.defined = true
	for _, alias := range x.e.FindRelated(sym, nil) {
		if alias.Init != nil {
			if ctor := dictEntryConstructor(alias.Init); ctor != nil {
				x.processCall(ctor, 0)
				x.followFluent(ctor, 0)
			}
		}
		for _, ref := range x.e.model.References(alias, nil) {
			call := receiverCall(ref)
			if call == nil {
				continue
			}
			x.processCall(call, 0)
			x.followFluent(call, 0)
		}
	}
}

func unwrapValue(n *sitter.Node) *sitter.Node {
	for n != nil {
		switch n.Type() {
		case "parenthesized_expression":
			n = firstNamed(n)
		case "cast_expression":
			n = n.ChildByFieldName("value")
		default:
			return n
		}
	}
	return nil
}

// processCall dispatches one builder call by its kind. depth counts branch
// lambda nesting, bounded by the engine's limit.
func (x *expansion) processCall(call *sitter.Node, depth int) {
	name := syntax.CalleeName(call, x.e.model.Source)
	switch classifyCall(name) {
	case CallDefinition:
		x.processDefinition(call, name)
	case CallReplication:
		x.processReplication(call, depth)
	case CallBranch:
		x.processBranch(call, name, depth)
	case CallCallbackInjector:
		x.processInjector(name)
	case CallCoverageGenerator:
		if f := x.e.extractField(call, name, len(x.desc.Fields)); f != nil {
			x.desc.Fields = append(x.desc.Fields, f)
		}
	default:
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingUnrecognizedCall, x.ref.Name, call,
			fmt.Sprintf("call %q in the definition chain of %s is not a known builder method", name, x.ref.Name))
	}
}

// processDefinition extracts name and reset value from a canonical definition
// call. A second definition call for the same register means a conditional,
// data-dependent layout; the analysis keeps the last one seen and flags the
// result as unreliable.
func (x *expansion) processDefinition(call *sitter.Node, name string) {
	if x.defined {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingRedefined, x.ref.Name, call,
			fmt.Sprintf("register %s is defined more than once; keeping the last definition", x.ref.Name))
		x.desc.Fields = x.desc.Fields[:0]
		x.desc.CallbackInfo = CallbackInfo{}
		x.replicas = nil
		x.desc.ArrayInfo = ArrayInfo{}
	}
	x.defined = true

	args := x.e.resolveArguments(call, signatureFor(name))
	if v, ok := intArg(args, "resetValue"); ok {
		reset := uint64(v)
		x.desc.ResetValue = &reset
	}
	if s, ok := stringArg(args, "name"); ok {
		x.desc.Name = s
	}
}

// processReplication handles DefineMany: the parent register is analyzed from
// the setup lambda, and count-1 replica links are synthesized at successive
// stride offsets.
func (x *expansion) processReplication(call *sitter.Node, depth int) {
	x.processDefinition(call, "DefineMany")

	args := x.e.resolveArguments(call, signatures["DefineMany"])
	count, countOK := intArg(args, "count")
	step, stepOK := intArg(args, "stepInBytes")
	if !countOK || !stepOK {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingUnsupported, x.ref.Name, call,
			"replication count or stride is not a compile-time constant")
		return
	}
	x.desc.ArrayInfo = ArrayInfo{IsArray: true, Length: count, StepBytes: step}

	if setup, ok := argByName(args, "setup"); ok && setup.Expr != nil {
		x.descendLambda(setup.Expr, depth)
	}

	for i := int64(1); i < count; i++ {
		x.replicas = append(x.replicas, &ReplicatedRegisterLink{
			Name:    fmt.Sprintf("%s_%d", x.desc.Name, i),
			Address: x.ref.Address + i*step,
		})
	}
}

// processBranch handles If/Then/Else. The condition call contributes nothing;
// Then and Else carry action lambdas whose bodies define alternative layouts.
func (x *expansion) processBranch(call *sitter.Node, name string, depth int) {
	if name == "If" {
		return
	}
	args := x.e.resolveArguments(call, signatures[name])
	action, ok := argByName(args, "action")
	if !ok || action.Expr == nil {
		return
	}
	x.descendLambda(action.Expr, depth)
}

// descendLambda walks a lambda-valued action argument and expands every
// builder chain rooted at the lambda's register parameter. The descent is
// depth-limited so self-referential definitions terminate.
func (x *expansion) descendLambda(expr *sitter.Node, depth int) {
	lambda := unwrapValue(expr)
	if lambda == nil || lambda.Type() != "lambda_expression" {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingUnsupported, x.ref.Name, expr,
			"branch action is not a lambda; its register layout cannot be analyzed")
		return
	}
	if depth >= x.e.depthLimit {
		x.e.elevate(StatusIncomplete)
		x.e.addFinding(FindingDepthExhausted, x.ref.Name, lambda,
			fmt.Sprintf("branch nesting exceeds the depth limit of %d", x.e.depthLimit))
		return
	}
	body := syntax.LambdaBody(lambda)
	if body == nil {
		return
	}
	param := lambdaParamName(lambda, x.e.model)
	x.walkLambdaBody(body, param, depth+1)
}

// walkLambdaBody finds chains rooted at the lambda parameter and expands
// them at the given depth. Nested lambdas are handled when their enclosing
// branch call is processed, so the walk skips into them only through calls.
func (x *expansion) walkLambdaBody(n *sitter.Node, param string, depth int) {
	if n.Type() == "invocation_expression" {
		if root := chainRoot(n); root != nil && root.Type() == "identifier" &&
			x.e.model.Text(root) == param {
			x.processChainFrom(n, depth)
			return
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.walkLambdaBody(n.NamedChild(i), param, depth)
	}
}

// processChainFrom expands the innermost call of a chain whose outermost
// invocation is call, then every call stacked above it.
func (x *expansion) processChainFrom(outermost *sitter.Node, depth int) {
	var calls []*sitter.Node
	cur := outermost
	for cur != nil && cur.Type() == "invocation_expression" {
		calls = append(calls, cur)
		fn := cur.ChildByFieldName("function")
		if fn == nil || fn.Type() != "member_access_expression" {
			break
		}
		cur = fn.ChildByFieldName("expression")
	}
	for i := len(calls) - 1; i >= 0; i-- {
		x.processCall(calls[i], depth)
	}
}

// chainRoot returns the leftmost receiver of a fluent chain.
func chainRoot(call *sitter.Node) *sitter.Node {
	cur := call
	for cur != nil {
		switch cur.Type() {
		case "invocation_expression":
			cur = cur.ChildByFieldName("function")
		case "member_access_expression":
			cur = cur.ChildByFieldName("expression")
		case "parenthesized_expression":
			cur = firstNamed(cur)
		default:
			return cur
		}
	}
	return nil
}

// lambdaParamName returns the name of a lambda's first parameter.
func lambdaParamName(lambda *sitter.Node, m *syntax.Model) string {
	if params := syntax.ChildOfType(lambda, "parameter_list"); params != nil {
		for _, p := range syntax.NamedChildren(params) {
			if p.Type() != "parameter" {
				continue
			}
			if name := p.ChildByFieldName("name"); name != nil {
				return m.Text(name)
			}
			if name := syntax.ChildOfType(p, "identifier"); name != nil {
				return m.Text(name)
			}
		}
	}
	// A single untyped parameter is wrapped in an implicit_parameter node.
	if p := syntax.ChildOfType(lambda, "implicit_parameter"); p != nil {
		if id := syntax.ChildOfType(p, "identifier"); id != nil {
			return m.Text(id)
		}
		return m.Text(p)
	}
	if id := syntax.ChildOfType(lambda, "identifier"); id != nil {
		return m.Text(id)
	}
	return ""
}

// processInjector folds one register-level callback attachment into the
// aggregate callback info.
func (x *expansion) processInjector(name string) {
	switch name {
	case "WithReadCallback":
		x.desc.CallbackInfo.HasReadCb = true
	case "WithWriteCallback":
		x.desc.CallbackInfo.HasWriteCb = true
	case "WithChangeCallback":
		x.desc.CallbackInfo.HasChangeCb = true
	}
}
