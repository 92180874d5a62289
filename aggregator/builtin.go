package aggregator

import (
	"fmt"
	"math"
	"sync"
)

type AggregateType string

const (
	Count  AggregateType = "count"
	Min    AggregateType = "min"
	Max    AggregateType = "max"
	Mean   AggregateType = "mean"
	StdDev AggregateType = "stdev"
	Var    AggregateType = "var"
)

// AggregatorFunction is an incremental accumulator: Add is O(1) per value,
// Result is O(1) at window close. Result returns nil when the accumulator
// has not seen enough values to produce a meaningful answer (no data is not
// the same as zero spread).
type AggregatorFunction interface {
	New() AggregatorFunction
	Add(value float64)
	Result() interface{}
}

// CountAggregator counts updates regardless of value. An empty window
// counts as 0, never nil.
type CountAggregator struct {
	count int64
}

func (c *CountAggregator) New() AggregatorFunction {
	return &CountAggregator{}
}

func (c *CountAggregator) Add(_ float64) {
	c.count++
}

func (c *CountAggregator) Result() interface{} {
	return c.count
}

type MinAggregator struct {
	value float64
	seen  bool
}

func (m *MinAggregator) New() AggregatorFunction {
	return &MinAggregator{}
}

func (m *MinAggregator) Add(v float64) {
	if !m.seen || v < m.value {
		m.value = v
		m.seen = true
	}
}

func (m *MinAggregator) Result() interface{} {
	if !m.seen {
		return nil
	}
	return m.value
}

type MaxAggregator struct {
	value float64
	seen  bool
}

func (m *MaxAggregator) New() AggregatorFunction {
	return &MaxAggregator{}
}

func (m *MaxAggregator) Add(v float64) {
	if !m.seen || v > m.value {
		m.value = v
		m.seen = true
	}
}

func (m *MaxAggregator) Result() interface{} {
	if !m.seen {
		return nil
	}
	return m.value
}

type MeanAggregator struct {
	sum   float64
	count int64
}

func (a *MeanAggregator) New() AggregatorFunction {
	return &MeanAggregator{}
}

func (a *MeanAggregator) Add(v float64) {
	a.sum += v
	a.count++
}

func (a *MeanAggregator) Result() interface{} {
	if a.count == 0 {
		return nil
	}
	return a.sum / float64(a.count)
}

// welford carries the state of Welford's online algorithm: running count,
// running mean and the sum of squared deviations (M2). Numerically stable
// under streaming updates; the raw values are never retained.
type welford struct {
	n    int64
	mean float64
	m2   float64
}

func (w *welford) add(v float64) {
	w.n++
	delta := v - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (v - w.mean)
}

// variance returns the sample variance M2/(n-1); ok is false when n < 2.
func (w *welford) variance() (float64, bool) {
	if w.n < 2 {
		return 0, false
	}
	return w.m2 / float64(w.n-1), true
}

type VarAggregator struct {
	state welford
}

func (s *VarAggregator) New() AggregatorFunction {
	return &VarAggregator{}
}

func (s *VarAggregator) Add(v float64) {
	s.state.add(v)
}

func (s *VarAggregator) Result() interface{} {
	v, ok := s.state.variance()
	if !ok {
		return nil
	}
	return v
}

type StdDevAggregator struct {
	state welford
}

func (s *StdDevAggregator) New() AggregatorFunction {
	return &StdDevAggregator{}
}

func (s *StdDevAggregator) Add(v float64) {
	s.state.add(v)
}

func (s *StdDevAggregator) Result() interface{} {
	v, ok := s.state.variance()
	if !ok {
		return nil
	}
	return math.Sqrt(v)
}

var (
	aggregatorRegistry = make(map[string]func() AggregatorFunction)
	registryMutex      sync.RWMutex
)

// Register adds a custom aggregator constructor to the global registry.
// Registered names take precedence over builtins.
func Register(name string, constructor func() AggregatorFunction) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	aggregatorRegistry[name] = constructor
}

// Create returns a fresh aggregator of the given type.
func Create(aggType AggregateType) (AggregatorFunction, error) {
	registryMutex.RLock()
	constructor, exists := aggregatorRegistry[string(aggType)]
	registryMutex.RUnlock()
	if exists {
		return constructor(), nil
	}

	switch aggType {
	case Count:
		return &CountAggregator{}, nil
	case Min:
		return &MinAggregator{}, nil
	case Max:
		return &MaxAggregator{}, nil
	case Mean:
		return &MeanAggregator{}, nil
	case StdDev:
		return &StdDevAggregator{}, nil
	case Var:
		return &VarAggregator{}, nil
	default:
		return nil, fmt.Errorf("unsupported aggregator type: %s", aggType)
	}
}

// IsBuiltin reports whether the type names a builtin or registered aggregator.
func IsBuiltin(aggType AggregateType) bool {
	registryMutex.RLock()
	_, exists := aggregatorRegistry[string(aggType)]
	registryMutex.RUnlock()
	if exists {
		return true
	}
	switch aggType {
	case Count, Min, Max, Mean, StdDev, Var:
		return true
	}
	return false
}

// RequiresField reports whether the aggregate takes a field-path argument.
// count is the only builtin that takes none.
func RequiresField(aggType AggregateType) bool {
	return aggType != Count
}
