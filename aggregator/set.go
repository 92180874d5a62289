package aggregator

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/windrill/windrill/utils/fieldpath"
)

// FieldSpec binds one output key to an aggregate function over a field path.
type FieldSpec struct {
	Key       string
	Type      AggregateType
	FieldPath string // empty when the aggregate takes no argument
}

// Set is the compiled accumulator layout of one select clause: the ordered
// field specs with precompiled paths and one prototype aggregator per field.
// A Set is immutable after construction and shared by all window instances
// of the plan that built it.
type Set struct {
	specs  []FieldSpec
	parts  [][]fieldpath.FieldPart
	protos []AggregatorFunction
}

// NewSet compiles the field specs into a reusable accumulator layout.
func NewSet(specs []FieldSpec) (*Set, error) {
	s := &Set{
		specs:  make([]FieldSpec, len(specs)),
		parts:  make([][]fieldpath.FieldPart, len(specs)),
		protos: make([]AggregatorFunction, len(specs)),
	}
	copy(s.specs, specs)
	for i, spec := range specs {
		proto, err := Create(spec.Type)
		if err != nil {
			return nil, err
		}
		s.protos[i] = proto
		if RequiresField(spec.Type) {
			parts, err := fieldpath.Parse(spec.FieldPath)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", spec.Key, err)
			}
			s.parts[i] = parts
		} else if spec.FieldPath != "" {
			return nil, fmt.Errorf("aggregate %s takes no field argument", spec.Type)
		}
	}
	return s, nil
}

// Specs returns the ordered field specs of the set.
func (s *Set) Specs() []FieldSpec {
	return s.specs
}

// Instance is one window instance's accumulator group. All accumulators
// share a single pass over the instance's events: one Add per field per
// event, one Finalize when the bucket closes.
type Instance struct {
	set  *Set
	accs []AggregatorFunction
}

// NewInstance creates fresh accumulators for one window instance.
func (s *Set) NewInstance() *Instance {
	accs := make([]AggregatorFunction, len(s.protos))
	for i, proto := range s.protos {
		accs[i] = proto.New()
	}
	return &Instance{set: s, accs: accs}
}

// CoercionErrorFunc is notified when an event's field cannot be read as a
// numeric value for an aggregate that requires one.
type CoercionErrorFunc func(key, path string, err error)

// Update feeds one event into every accumulator. A field that is missing or
// not coercible to a number skips that one aggregate only; the event still
// feeds the others. onErr may be nil.
func (in *Instance) Update(data map[string]interface{}, onErr CoercionErrorFunc) {
	for i, spec := range in.set.specs {
		if !RequiresField(spec.Type) {
			in.accs[i].Add(0)
			continue
		}
		raw, ok := fieldpath.GetParts(data, in.set.parts[i])
		if !ok {
			if onErr != nil {
				onErr(spec.Key, spec.FieldPath, fmt.Errorf("field %q not found", spec.FieldPath))
			}
			continue
		}
		v, err := cast.ToFloat64E(raw)
		if err != nil {
			if onErr != nil {
				onErr(spec.Key, spec.FieldPath, err)
			}
			continue
		}
		in.accs[i].Add(v)
	}
}

// Finalize produces the result record, one entry per field spec.
func (in *Instance) Finalize() map[string]interface{} {
	result := make(map[string]interface{}, len(in.set.specs))
	for i, spec := range in.set.specs {
		result[spec.Key] = in.accs[i].Result()
	}
	return result
}
