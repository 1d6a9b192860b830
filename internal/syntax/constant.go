package syntax

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ConstKind discriminates folded constant values.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstString
	ConstBool
)

// Constant is a folded compile-time value.
type Constant struct {
	Kind ConstKind
	Int  int64
	Str  string
	Bool bool
}

// IntConstant wraps an integer in a Constant.
func IntConstant(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// StringConstant wraps a string in a Constant.
func StringConstant(s string) Constant { return Constant{Kind: ConstString, Str: s} }

// BoolConstant wraps a bool in a Constant.
func BoolConstant(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }

// maxFoldDepth bounds recursion through const references and nested
// expressions so that pathological inputs cannot loop the folder.
const maxFoldDepth = 32

// ConstantValue evaluates an expression at compile time where possible.
// Integer literals, arithmetic, shifts, bitwise ops, casts, const fields,
// enum members, string literals and simple interpolated strings fold; anything
// else reports !ok.
func (m *Model) ConstantValue(expr *sitter.Node) (Constant, bool) {
	return m.foldConstant(expr, 0)
}

func (m *Model) foldConstant(expr *sitter.Node, depth int) (Constant, bool) {
	if expr == nil || depth > maxFoldDepth {
		return Constant{}, false
	}

	switch expr.Type() {
	case "integer_literal":
		v, err := parseIntegerLiteral(m.Text(expr))
		if err != nil {
			return Constant{}, false
		}
		return IntConstant(v), true

	case "boolean_literal":
		return BoolConstant(m.Text(expr) == "true"), true

	case "string_literal":
		return StringConstant(unquoteString(m.Text(expr))), true

	case "verbatim_string_literal":
		text := m.Text(expr)
		text = strings.TrimPrefix(text, "@\"")
		text = strings.TrimSuffix(text, "\"")
		return StringConstant(strings.ReplaceAll(text, `""`, `"`)), true

	case "interpolated_string_expression":
		return m.foldInterpolatedString(expr, depth)

	case "parenthesized_expression", "checked_expression":
		return m.foldConstant(firstNamedChild(expr), depth+1)

	case "cast_expression":
		return m.foldConstant(expr.ChildByFieldName("value"), depth+1)

	case "prefix_unary_expression":
		inner := firstNamedChild(expr)
		c, ok := m.foldConstant(inner, depth+1)
		if !ok || c.Kind != ConstInt {
			return Constant{}, false
		}
		op := strings.TrimSuffix(m.Text(expr), m.Text(inner))
		switch strings.TrimSpace(op) {
		case "-":
			return IntConstant(-c.Int), true
		case "+":
			return c, true
		case "~":
			return IntConstant(^c.Int), true
		}
		return Constant{}, false

	case "binary_expression":
		return m.foldBinary(expr, depth)

	case "identifier", "member_access_expression":
		return m.foldReference(expr, depth)
	}

	return Constant{}, false
}

func (m *Model) foldBinary(expr *sitter.Node, depth int) (Constant, bool) {
	left, lok := m.foldConstant(expr.ChildByFieldName("left"), depth+1)
	right, rok := m.foldConstant(expr.ChildByFieldName("right"), depth+1)
	if !lok || !rok {
		return Constant{}, false
	}
	op := binaryOperator(m, expr)

	if left.Kind == ConstString && right.Kind == ConstString && op == "+" {
		return StringConstant(left.Str + right.Str), true
	}
	if left.Kind != ConstInt || right.Kind != ConstInt {
		return Constant{}, false
	}
	switch op {
	case "+":
		return IntConstant(left.Int + right.Int), true
	case "-":
		return IntConstant(left.Int - right.Int), true
	case "*":
		return IntConstant(left.Int * right.Int), true
	case "/":
		if right.Int == 0 {
			return Constant{}, false
		}
		return IntConstant(left.Int / right.Int), true
	case "%":
		if right.Int == 0 {
			return Constant{}, false
		}
		return IntConstant(left.Int % right.Int), true
	case "<<":
		return IntConstant(left.Int << uint64(right.Int)), true
	case ">>":
		return IntConstant(left.Int >> uint64(right.Int)), true
	case "&":
		return IntConstant(left.Int & right.Int), true
	case "|":
		return IntConstant(left.Int | right.Int), true
	case "^":
		return IntConstant(left.Int ^ right.Int), true
	}
	return Constant{}, false
}

func (m *Model) foldReference(expr *sitter.Node, depth int) (Constant, bool) {
	sym, ok := m.ResolveExpression(expr)
	if !ok {
		return Constant{}, false
	}
	switch sym.Kind {
	case KindEnumMember:
		if v, resolved := m.MemberValue(sym); resolved {
			return IntConstant(v), true
		}
	case KindField, KindLocal:
		if sym.IsConst && sym.Init != nil {
			return m.foldConstant(sym.Init, depth+1)
		}
	}
	return Constant{}, false
}

// foldInterpolatedString folds $"..." best effort: literal runs are kept,
// constant interpolations are rendered, non-constant interpolations keep
// their raw source text. Used for register name arguments like $"CH{i}_CTRL".
func (m *Model) foldInterpolatedString(expr *sitter.Node, depth int) (Constant, bool) {
	var sb strings.Builder
	for i := 0; i < int(expr.NamedChildCount()); i++ {
		c := expr.NamedChild(i)
		switch c.Type() {
		case "interpolation":
			inner := firstNamedChild(c)
			if folded, ok := m.foldConstant(inner, depth+1); ok {
				switch folded.Kind {
				case ConstInt:
					sb.WriteString(strconv.FormatInt(folded.Int, 10))
				case ConstString:
					sb.WriteString(folded.Str)
				case ConstBool:
					sb.WriteString(strconv.FormatBool(folded.Bool))
				}
			} else {
				sb.WriteString("{" + m.Text(inner) + "}")
			}
		case "interpolated_string_text", "string_content":
			sb.WriteString(m.Text(c))
		}
	}
	return StringConstant(sb.String()), true
}

// binaryOperator extracts the operator token between the two operands.
func binaryOperator(m *Model, expr *sitter.Node) string {
	left := expr.ChildByFieldName("left")
	right := expr.ChildByFieldName("right")
	if left == nil || right == nil {
		return ""
	}
	op := string(m.Source[left.EndByte():right.StartByte()])
	return strings.TrimSpace(op)
}

// parseIntegerLiteral handles C# integer literal syntax: decimal, 0x hex,
// 0b binary, digit separators, and U/L suffixes.
func parseIntegerLiteral(text string) (int64, error) {
	text = strings.ReplaceAll(text, "_", "")
	text = strings.TrimRight(text, "uUlL")
	if text == "" {
		return 0, strconv.ErrSyntax
	}
	switch {
	case strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X"):
		v, err := strconv.ParseUint(text[2:], 16, 64)
		return int64(v), err
	case strings.HasPrefix(text, "0b") || strings.HasPrefix(text, "0B"):
		v, err := strconv.ParseUint(text[2:], 2, 64)
		return int64(v), err
	default:
		return strconv.ParseInt(text, 10, 64)
	}
}

func unquoteString(text string) string {
	text = strings.TrimPrefix(text, `"`)
	text = strings.TrimSuffix(text, `"`)
	replacer := strings.NewReplacer(
		`\"`, `"`,
		`\\`, `\`,
		`\n`, "\n",
		`\t`, "\t",
		`\r`, "\r",
	)
	return replacer.Replace(text)
}
