// Package planner binds parsed statements to executable plans: it resolves
// window references, validates aggregate calls, evaluates window options and
// compiles optional event guards.
package planner

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/windrill/windrill/aggregator"
	"github.com/windrill/windrill/wql"
)

// WindowDefinition is a named, immutable tumbling window description. It
// lives for the lifetime of the compiled query that defined it.
type WindowDefinition struct {
	Name     string
	Kind     string
	Interval time.Duration
}

// Plan is one bound select statement: an accumulator layout over one or more
// source windows, fed from one input stream and emitting into one output
// stream.
type Plan struct {
	Source  string
	Into    string
	Windows []*WindowDefinition
	Fields  []aggregator.FieldSpec
	// Guard filters events before window assignment; nil when the select
	// has no where clause. The compiled program sees {"event": data}.
	Guard     *vm.Program
	GuardText string
}

// aggregate function namespace accepted in select clauses. Both the fully
// namespaced form and the bare function name are allowed.
const statsNamespace = "aggr::stats"

// duration constructors accepted for the interval option.
var durationUnits = map[string]time.Duration{
	"with_nanos":   time.Nanosecond,
	"with_millis":  time.Millisecond,
	"with_seconds": time.Second,
	"with_minutes": time.Minute,
	"with_hours":   time.Hour,
}

// Binder accumulates window definitions across Bind calls, so queries may
// reference windows defined by an earlier source.
type Binder struct {
	defs map[string]*WindowDefinition
}

// NewBinder creates a binder with no definitions.
func NewBinder() *Binder {
	return &Binder{defs: make(map[string]*WindowDefinition)}
}

// Bind binds a statement sequence in order. A failing statement is fatal to
// that statement only: the plans of all successfully bound statements are
// returned together with the joined failures.
func (b *Binder) Bind(stmts []wql.Statement) ([]*Plan, error) {
	var plans []*Plan
	var errs []error

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *wql.DefineWindowStatement:
			def, err := bindDefine(s, b.defs)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			b.defs[def.Name] = def
		case *wql.SelectStatement:
			plan, err := bindSelect(s, b.defs)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			plans = append(plans, plan)
		default:
			errs = append(errs, fmt.Errorf("unsupported statement type %T", stmt))
		}
	}

	return plans, errors.Join(errs...)
}

// Build binds a statement sequence with a fresh binder.
func Build(stmts []wql.Statement) ([]*Plan, error) {
	return NewBinder().Bind(stmts)
}

func bindDefine(s *wql.DefineWindowStatement, defs map[string]*WindowDefinition) (*WindowDefinition, error) {
	if _, exists := defs[s.Name]; exists {
		return nil, &RedefinitionError{Name: s.Name, Line: s.Line, Column: s.Column}
	}

	def := &WindowDefinition{Name: s.Name, Kind: s.Kind}
	for _, opt := range s.Options {
		switch opt.Key {
		case "interval":
			interval, err := evalInterval(opt.Value)
			if err != nil {
				return nil, &OptionError{Window: s.Name, Key: opt.Key, Reason: err.Error(), Line: s.Line, Column: s.Column}
			}
			def.Interval = interval
		default:
			return nil, &OptionError{Window: s.Name, Key: opt.Key, Reason: "unknown option", Line: s.Line, Column: s.Column}
		}
	}
	if def.Interval <= 0 {
		return nil, &OptionError{Window: s.Name, Key: "interval", Reason: "missing or non-positive", Line: s.Line, Column: s.Column}
	}
	return def, nil
}

// evalInterval evaluates an interval option value: a bare integer is
// nanoseconds, a datetime::with_* call scales its single numeric argument.
func evalInterval(e wql.Expr) (time.Duration, error) {
	switch v := e.(type) {
	case *wql.NumberLiteral:
		if !v.IsInt {
			return 0, fmt.Errorf("bare interval must be an integer nanosecond count")
		}
		return time.Duration(v.Int), nil
	case *wql.CallExpr:
		if len(v.Module) != 1 || v.Module[0] != "datetime" {
			return 0, fmt.Errorf("unknown duration constructor %s", v.Path())
		}
		unit, ok := durationUnits[v.Func]
		if !ok {
			return 0, fmt.Errorf("unknown duration constructor %s", v.Path())
		}
		if len(v.Args) != 1 {
			return 0, fmt.Errorf("%s takes exactly one argument", v.Path())
		}
		n, ok := v.Args[0].(*wql.NumberLiteral)
		if !ok {
			return 0, fmt.Errorf("%s argument must be numeric", v.Path())
		}
		return time.Duration(n.Value * float64(unit)), nil
	default:
		return 0, fmt.Errorf("interval must be a number or duration constructor")
	}
}

func bindSelect(s *wql.SelectStatement, defs map[string]*WindowDefinition) (*Plan, error) {
	plan := &Plan{Source: s.Source, Into: s.Into}

	for _, name := range s.Windows {
		def, ok := defs[name]
		if !ok {
			return nil, &UnresolvedWindowError{Name: name, Line: s.Line, Column: s.Column}
		}
		plan.Windows = append(plan.Windows, def)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if seen[f.Key] {
			return nil, &DuplicateKeyError{Key: f.Key, Line: f.Line, Column: f.Column}
		}
		seen[f.Key] = true

		spec, err := bindAggregate(f)
		if err != nil {
			return nil, err
		}
		plan.Fields = append(plan.Fields, spec)
	}

	// Proves every field path parses and every type constructs.
	if _, err := aggregator.NewSet(plan.Fields); err != nil {
		return nil, &FunctionError{Name: "select clause", Reason: err.Error(), Line: s.Line, Column: s.Column}
	}

	if s.Where != "" {
		program, err := expr.Compile(s.Where,
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, &GuardError{Expression: s.Where, Err: err, Line: s.Line, Column: s.Column}
		}
		plan.Guard = program
		plan.GuardText = s.Where
	}

	return plan, nil
}

func bindAggregate(f wql.SelectField) (aggregator.FieldSpec, error) {
	var spec aggregator.FieldSpec

	path := f.Agg.Path()
	fn := f.Agg.Func
	if len(f.Agg.Module) > 0 && path != statsNamespace+"::"+fn {
		return spec, &FunctionError{Name: path, Reason: "unknown module", Line: f.Line, Column: f.Column}
	}
	aggType := aggregator.AggregateType(fn)
	if !aggregator.IsBuiltin(aggType) {
		return spec, &FunctionError{Name: path, Reason: "unknown aggregate function", Line: f.Line, Column: f.Column}
	}

	spec.Key = f.Key
	spec.Type = aggType

	if !aggregator.RequiresField(aggType) {
		if len(f.Agg.Args) != 0 {
			return spec, &FunctionError{Name: path, Reason: "takes no arguments", Line: f.Line, Column: f.Column}
		}
		return spec, nil
	}

	if len(f.Agg.Args) != 1 {
		return spec, &FunctionError{Name: path, Reason: "takes exactly one field argument", Line: f.Line, Column: f.Column}
	}
	ref, ok := f.Agg.Args[0].(*wql.FieldRef)
	if !ok {
		return spec, &FunctionError{Name: path, Reason: "argument must be an event field reference", Line: f.Line, Column: f.Column}
	}
	fieldPath, err := eventFieldPath(ref.Raw)
	if err != nil {
		return spec, &FunctionError{Name: path, Reason: err.Error(), Line: f.Line, Column: f.Column}
	}
	spec.FieldPath = fieldPath
	return spec, nil
}

// eventFieldPath strips the mandatory `event.` root from a field reference.
func eventFieldPath(raw string) (string, error) {
	if !strings.HasPrefix(raw, "event.") && !strings.HasPrefix(raw, "event[") {
		return "", fmt.Errorf("field reference %q must be rooted at event", raw)
	}
	path := strings.TrimPrefix(raw, "event")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "", fmt.Errorf("field reference %q names no field", raw)
	}
	return path, nil
}
