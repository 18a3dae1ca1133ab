package syntax

import "strings"

// Resolve walks a dot-separated field path ("Class.method.inner") through the
// module and returns the addressed definition. The first segment is looked up
// among top-level definitions, each following one among the definitions
// written directly in the previous match's body. An empty path returns a nil
// Def, meaning the whole module.
func Resolve(m *Module, path string) (Def, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	var (
		current Def
		body    = m.Body
	)
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, &SelectionError{Path: path, Segment: segment, Reason: "is empty"}
		}
		next := findDef(body, segment)
		if next == nil {
			return nil, &SelectionError{Path: path, Segment: segment}
		}
		current = next
		body = next.DefBody()
	}

	return current, nil
}

// Defs lists the definitions written directly in a body, in source order.
func Defs(body []Stmt) []Def {
	var defs []Def
	for _, stmt := range body {
		if d, ok := stmt.(Def); ok {
			defs = append(defs, d)
		}
	}
	return defs
}

// findDef returns the first definition named name, in source order.
func findDef(body []Stmt, name string) Def {
	for _, d := range Defs(body) {
		if d.DefName() == name {
			return d
		}
	}
	return nil
}
