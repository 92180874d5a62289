package wql

import (
	"bytes"
	"strconv"
	"strings"
)

// Node is the base interface of all AST nodes.
type Node interface {
	// Format renders the node back to canonical source form.
	Format(buf *bytes.Buffer)
}

// Statement is a top-level statement: a window definition or a select.
type Statement interface {
	Node
	statement()
}

// Expr is an option or argument expression.
type Expr interface {
	Node
	expr()
}

// NumberLiteral is a numeric literal. Int is valid when IsInt is true.
type NumberLiteral struct {
	Value float64
	Int   int64
	IsInt bool
}

func (n *NumberLiteral) expr() {}

func (n *NumberLiteral) Format(buf *bytes.Buffer) {
	if n.IsInt {
		buf.WriteString(strconv.FormatInt(n.Int, 10))
		return
	}
	buf.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
}

// StringLiteral is a quoted string literal.
type StringLiteral struct {
	Value string
}

func (s *StringLiteral) expr() {}

func (s *StringLiteral) Format(buf *bytes.Buffer) {
	buf.WriteString(strconv.Quote(s.Value))
}

// FieldRef references a field of the current event, e.g. event.value or
// event.payload.metrics[0].
type FieldRef struct {
	Raw string // full reference as written, including the event root
}

func (f *FieldRef) expr() {}

func (f *FieldRef) Format(buf *bytes.Buffer) {
	buf.WriteString(f.Raw)
}

// CallExpr is a namespaced function call such as aggr::stats::count() or
// datetime::with_seconds(15). Module paths are canonicalized to '::'
// separators at parse time.
type CallExpr struct {
	Module []string
	Func   string
	Args   []Expr
	Line   int
	Column int
}

func (c *CallExpr) expr() {}

// Path returns the canonical dotted-colon path of the call, e.g.
// "aggr::stats::count".
func (c *CallExpr) Path() string {
	if len(c.Module) == 0 {
		return c.Func
	}
	return strings.Join(c.Module, "::") + "::" + c.Func
}

func (c *CallExpr) Format(buf *bytes.Buffer) {
	buf.WriteString(c.Path())
	buf.WriteByte('(')
	for i, arg := range c.Args {
		if i > 0 {
			buf.WriteString(", ")
		}
		arg.Format(buf)
	}
	buf.WriteByte(')')
}

// WindowOption is one `key = value` entry of a with block.
type WindowOption struct {
	Key   string
	Value Expr
}

// DefineWindowStatement is `define tumbling window `name` with ... end;`.
type DefineWindowStatement struct {
	Name    string
	Kind    string // only "tumbling" in this surface
	Options []WindowOption
	Line    int
	Column  int
}

func (d *DefineWindowStatement) statement() {}

func (d *DefineWindowStatement) Format(buf *bytes.Buffer) {
	buf.WriteString("define ")
	buf.WriteString(d.Kind)
	buf.WriteString(" window `")
	buf.WriteString(d.Name)
	buf.WriteString("`\nwith\n")
	for i, opt := range d.Options {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("    ")
		buf.WriteString(opt.Key)
		buf.WriteString(" = ")
		opt.Value.Format(buf)
	}
	buf.WriteString("\nend;")
}

// SelectField is one `"key": aggregate` pair of a select clause.
type SelectField struct {
	Key    string
	Agg    *CallExpr
	Line   int
	Column int
}

// SelectStatement is `select { ... } from stream[`w`] [where cond] into out;`.
type SelectStatement struct {
	Fields  []SelectField
	Source  string   // input stream name
	Windows []string // referenced window names, in written order
	Where   string   // raw guard expression text, empty when absent
	Into    string   // output stream name
	Line    int
	Column  int
}

func (s *SelectStatement) statement() {}

func (s *SelectStatement) Format(buf *bytes.Buffer) {
	buf.WriteString("select {\n")
	for i, f := range s.Fields {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("    ")
		buf.WriteString(strconv.Quote(f.Key))
		buf.WriteString(": ")
		f.Agg.Format(buf)
	}
	buf.WriteString("\n} from ")
	buf.WriteString(s.Source)
	buf.WriteByte('[')
	for i, w := range s.Windows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteByte('`')
		buf.WriteString(w)
		buf.WriteByte('`')
	}
	buf.WriteByte(']')
	if s.Where != "" {
		buf.WriteString(" where ")
		buf.WriteString(s.Where)
	}
	buf.WriteString(" into ")
	buf.WriteString(s.Into)
	buf.WriteByte(';')
}
