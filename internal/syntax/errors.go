package syntax

import "fmt"

// SelectionError reports a field path that does not resolve to a definition.
type SelectionError struct {
	Path    string // full dotted path requested
	Segment string // first segment that failed to resolve
	Reason  string
}

func (e *SelectionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot select %q: segment %q %s", e.Path, e.Segment, e.Reason)
	}
	return fmt.Sprintf("cannot select %q: no definition named %q", e.Path, e.Segment)
}

// ScopeError reports a break or continue with no enclosing loop.
type ScopeError struct {
	Keyword string // "break" or "continue"
	Line    int
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("line %d: %s outside of loop", e.Line, e.Keyword)
}
