package planner

import "fmt"

// UnresolvedWindowError reports a select statement referencing a window name
// with no earlier definition.
type UnresolvedWindowError struct {
	Name   string
	Line   int
	Column int
}

func (e *UnresolvedWindowError) Error() string {
	return fmt.Sprintf("unresolved window `%s` at line %d, column %d", e.Name, e.Line, e.Column)
}

// RedefinitionError reports a second define for an already defined window
// name. Redefinition is rejected, never shadowed.
type RedefinitionError struct {
	Name   string
	Line   int
	Column int
}

func (e *RedefinitionError) Error() string {
	return fmt.Sprintf("window `%s` redefined at line %d, column %d", e.Name, e.Line, e.Column)
}

// FunctionError reports an unknown aggregate function or a call with the
// wrong number or kind of arguments.
type FunctionError struct {
	Name   string
	Reason string
	Line   int
	Column int
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("aggregate %s: %s at line %d, column %d", e.Name, e.Reason, e.Line, e.Column)
}

// DuplicateKeyError reports a select clause using the same output key twice.
type DuplicateKeyError struct {
	Key    string
	Line   int
	Column int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate output key %q at line %d, column %d", e.Key, e.Line, e.Column)
}

// OptionError reports an invalid or missing option in a window definition's
// with block.
type OptionError struct {
	Window string
	Key    string
	Reason string
	Line   int
	Column int
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("window `%s` option %q: %s at line %d, column %d",
		e.Window, e.Key, e.Reason, e.Line, e.Column)
}

// GuardError reports a where clause that failed to compile.
type GuardError struct {
	Expression string
	Err        error
	Line       int
	Column     int
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("invalid where clause %q at line %d, column %d: %v",
		e.Expression, e.Line, e.Column, e.Err)
}

func (e *GuardError) Unwrap() error {
	return e.Err
}
