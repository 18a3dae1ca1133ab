package parser

import (
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/QTest-hq/pyflowchart/internal/syntax"
)

// unparser renders expression nodes back into single-line Python text.
// Spacing around operators and string quoting are normalized, so the same
// expression written two ways produces the same label.
type unparser struct {
	src []byte
}

func (u *unparser) text(n *sitter.Node) syntax.Text {
	if n == nil {
		return syntax.Text{}
	}

	s, exact := u.unparse(n)
	if !exact {
		log.Debug().
			Str("kind", n.Type()).
			Int("line", position(n).Line).
			Msg("label falls back to raw source")
	}
	return syntax.Text{Source: s, Approximate: !exact}
}

func (u *unparser) unparse(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "identifier", "integer", "float", "true", "false", "none", "ellipsis",
		"keyword_identifier", "dotted_name":
		return collapse(n.Content(u.src)), true

	case "string":
		content := n.Content(u.src)
		if strings.Contains(content, "\n") {
			return u.raw(n)
		}
		return normalizeQuotes(content), true

	case "concatenated_string":
		return u.join(n, " ")

	case "call":
		fn, ok1 := u.unparse(n.ChildByFieldName("function"))
		args, ok2 := u.unparse(n.ChildByFieldName("arguments"))
		return fn + args, ok1 && ok2

	case "argument_list":
		args, ok := u.join(n, ", ")
		return "(" + args + ")", ok

	case "keyword_argument":
		name, ok1 := u.unparse(n.ChildByFieldName("name"))
		value, ok2 := u.unparse(n.ChildByFieldName("value"))
		return name + "=" + value, ok1 && ok2

	case "list_splat", "list_splat_pattern":
		return u.prefixed("*", n)

	case "dictionary_splat", "dictionary_splat_pattern":
		return u.prefixed("**", n)

	case "attribute":
		object, ok1 := u.unparse(n.ChildByFieldName("object"))
		attr, ok2 := u.unparse(n.ChildByFieldName("attribute"))
		return object + "." + attr, ok1 && ok2

	case "subscript":
		value, ok := u.unparse(n.ChildByFieldName("value"))
		var subs []string
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.FieldNameForChild(i) != "subscript" {
				continue
			}
			s, exact := u.unparse(n.Child(i))
			subs = append(subs, s)
			ok = ok && exact
		}
		return value + "[" + strings.Join(subs, ", ") + "]", ok

	case "binary_operator", "boolean_operator":
		left, ok1 := u.unparse(n.ChildByFieldName("left"))
		right, ok2 := u.unparse(n.ChildByFieldName("right"))
		op := n.ChildByFieldName("operator")
		if op == nil {
			return u.raw(n)
		}
		return left + " " + op.Type() + " " + right, ok1 && ok2

	case "comparison_operator":
		var parts []string
		ok := true
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			if child.IsNamed() {
				s, exact := u.unparse(child)
				parts = append(parts, s)
				ok = ok && exact
			} else {
				// "not in" and "is not" arrive as a single anonymous token
				parts = append(parts, collapse(child.Content(u.src)))
			}
		}
		return strings.Join(parts, " "), ok

	case "not_operator":
		arg, ok := u.unparse(n.ChildByFieldName("argument"))
		return "not " + arg, ok

	case "unary_operator":
		arg, ok := u.unparse(n.ChildByFieldName("argument"))
		op := n.ChildByFieldName("operator")
		if op == nil {
			return u.raw(n)
		}
		return op.Type() + arg, ok

	case "parenthesized_expression":
		inner := firstNamed(n)
		if inner == nil {
			return u.raw(n)
		}
		s, ok := u.unparse(inner)
		return "(" + s + ")", ok

	case "tuple", "tuple_pattern":
		items, ok := u.join(n, ", ")
		if countNamed(n) == 1 {
			items += ","
		}
		return "(" + items + ")", ok

	case "expression_list", "pattern_list":
		items, ok := u.join(n, ", ")
		if countNamed(n) == 1 {
			items += ","
		}
		return items, ok

	case "expression_statement":
		return u.join(n, ", ")

	case "list", "list_pattern":
		items, ok := u.join(n, ", ")
		return "[" + items + "]", ok

	case "set":
		items, ok := u.join(n, ", ")
		return "{" + items + "}", ok

	case "dictionary":
		items, ok := u.join(n, ", ")
		return "{" + items + "}", ok

	case "pair":
		key, ok1 := u.unparse(n.ChildByFieldName("key"))
		value, ok2 := u.unparse(n.ChildByFieldName("value"))
		return key + ": " + value, ok1 && ok2

	case "conditional_expression":
		if n.NamedChildCount() != 3 {
			return u.raw(n)
		}
		then, ok1 := u.unparse(n.NamedChild(0))
		cond, ok2 := u.unparse(n.NamedChild(1))
		els, ok3 := u.unparse(n.NamedChild(2))
		return then + " if " + cond + " else " + els, ok1 && ok2 && ok3

	case "await":
		return u.prefixed("await ", n)

	case "yield":
		s := "yield"
		if hasChild(n, "from") {
			s += " from"
		}
		value := firstNamed(n)
		if value == nil {
			return s, true
		}
		v, ok := u.unparse(value)
		return s + " " + v, ok

	case "assignment":
		left, ok := u.unparse(n.ChildByFieldName("left"))
		s := left
		if typ := n.ChildByFieldName("type"); typ != nil {
			t, exact := u.unparse(typ)
			s += ": " + t
			ok = ok && exact
		}
		if right := n.ChildByFieldName("right"); right != nil {
			r, exact := u.unparse(right)
			s += " = " + r
			ok = ok && exact
		}
		return s, ok

	case "augmented_assignment":
		left, ok1 := u.unparse(n.ChildByFieldName("left"))
		right, ok2 := u.unparse(n.ChildByFieldName("right"))
		op := n.ChildByFieldName("operator")
		if op == nil {
			return u.raw(n)
		}
		return left + " " + op.Type() + " " + right, ok1 && ok2

	case "named_expression":
		name, ok1 := u.unparse(n.ChildByFieldName("name"))
		value, ok2 := u.unparse(n.ChildByFieldName("value"))
		return name + " := " + value, ok1 && ok2

	case "type":
		if inner := firstNamed(n); inner != nil {
			return u.unparse(inner)
		}

	case "with_clause":
		return u.join(n, ", ")

	case "with_item":
		if value := n.ChildByFieldName("value"); value != nil {
			return u.unparse(value)
		}

	case "as_pattern":
		if n.NamedChildCount() == 2 {
			value, ok1 := u.unparse(n.NamedChild(0))
			alias, ok2 := u.unparse(n.NamedChild(1))
			return value + " as " + alias, ok1 && ok2
		}

	case "as_pattern_target":
		if inner := firstNamed(n); inner != nil {
			return u.unparse(inner)
		}

	case "return_statement":
		value := firstNamed(n)
		if value == nil {
			return "return", true
		}
		v, ok := u.unparse(value)
		return "return " + v, ok
	}

	return u.raw(n)
}

// raw returns the node's source with whitespace collapsed. It counts as
// exact only when the node fits on one source line.
func (u *unparser) raw(n *sitter.Node) (string, bool) {
	return collapse(n.Content(u.src)), n.StartPoint().Row == n.EndPoint().Row
}

func (u *unparser) join(n *sitter.Node, sep string) (string, bool) {
	var parts []string
	ok := true
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		s, exact := u.unparse(child)
		parts = append(parts, s)
		ok = ok && exact
	}
	return strings.Join(parts, sep), ok
}

func (u *unparser) prefixed(prefix string, n *sitter.Node) (string, bool) {
	inner := firstNamed(n)
	if inner == nil {
		return u.raw(n)
	}
	s, ok := u.unparse(inner)
	return prefix + s, ok
}

func countNamed(n *sitter.Node) int {
	count := 0
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() != "comment" {
			count++
		}
	}
	return count
}

// normalizeQuotes rewrites a simple double-quoted literal with single quotes.
// Literals containing quotes or escapes are left alone.
func normalizeQuotes(s string) string {
	i := 0
	for i < len(s) && strings.IndexByte("rRbBuUfF", s[i]) >= 0 {
		i++
	}
	prefix, body := s[:i], s[i:]

	if len(body) < 2 || strings.HasPrefix(body, `"""`) ||
		body[0] != '"' || body[len(body)-1] != '"' {
		return s
	}

	inner := body[1 : len(body)-1]
	if strings.ContainsAny(inner, `'"\`) {
		return s
	}
	return prefix + "'" + inner + "'"
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
