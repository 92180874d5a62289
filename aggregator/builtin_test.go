package aggregator

import (
	"math"
	"testing"

	"github.com/montanaflynn/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(agg AggregatorFunction, values ...float64) {
	for _, v := range values {
		agg.Add(v)
	}
}

func TestCountAggregator(t *testing.T) {
	agg := (&CountAggregator{}).New()
	assert.Equal(t, int64(0), agg.Result())

	feed(agg, 10, 20, 30)
	assert.Equal(t, int64(3), agg.Result())
}

func TestMinMaxAggregator(t *testing.T) {
	min := (&MinAggregator{}).New()
	max := (&MaxAggregator{}).New()
	assert.Nil(t, min.Result())
	assert.Nil(t, max.Result())

	for _, v := range []float64{5, -3, 12, 0} {
		min.Add(v)
		max.Add(v)
	}
	assert.Equal(t, -3.0, min.Result())
	assert.Equal(t, 12.0, max.Result())
}

func TestMeanAggregator(t *testing.T) {
	agg := (&MeanAggregator{}).New()
	assert.Nil(t, agg.Result())

	feed(agg, 10, 20)
	assert.Equal(t, 15.0, agg.Result())
}

func TestVarianceRequiresTwoSamples(t *testing.T) {
	v := (&VarAggregator{}).New()
	sd := (&StdDevAggregator{}).New()
	assert.Nil(t, v.Result())
	assert.Nil(t, sd.Result())

	v.Add(42)
	sd.Add(42)
	assert.Nil(t, v.Result(), "one sample has no spread information")
	assert.Nil(t, sd.Result())
}

// Welford's online results must agree with a batch computation over the
// same samples.
func TestWelfordMatchesBatchStats(t *testing.T) {
	samples := []float64{4.2, 19.0, 7.5, 7.5, 0.003, 128.6, 33.3, 42.0, 5.9, 61.7}

	v := (&VarAggregator{}).New()
	sd := (&StdDevAggregator{}).New()
	mean := (&MeanAggregator{}).New()
	feed(v, samples...)
	feed(sd, samples...)
	feed(mean, samples...)

	wantVar, err := stats.SampleVariance(samples)
	require.NoError(t, err)
	wantSd, err := stats.StandardDeviationSample(samples)
	require.NoError(t, err)
	wantMean, err := stats.Mean(samples)
	require.NoError(t, err)

	assert.InDelta(t, wantVar, v.Result().(float64), 1e-9)
	assert.InDelta(t, wantSd, sd.Result().(float64), 1e-9)
	assert.InDelta(t, wantMean, mean.Result().(float64), 1e-9)
}

func TestVarianceProperties(t *testing.T) {
	v := (&VarAggregator{}).New()
	sd := (&StdDevAggregator{}).New()
	for _, x := range []float64{-7, 3, 3, 9, 100, -0.5} {
		v.Add(x)
		sd.Add(x)
	}
	varRes := v.Result().(float64)
	sdRes := sd.Result().(float64)
	assert.GreaterOrEqual(t, varRes, 0.0)
	assert.InDelta(t, math.Sqrt(varRes), sdRes, 1e-12)
}

func TestVarianceConstantSeries(t *testing.T) {
	v := (&VarAggregator{}).New()
	feed(v, 5, 5, 5, 5)
	assert.InDelta(t, 0.0, v.Result().(float64), 1e-12)
}

func TestCreate(t *testing.T) {
	for _, typ := range []AggregateType{Count, Min, Max, Mean, StdDev, Var} {
		agg, err := Create(typ)
		require.NoError(t, err)
		require.NotNil(t, agg)
	}

	_, err := Create("median")
	assert.Error(t, err)
}

func TestRegisterCustomAggregator(t *testing.T) {
	Register("always_one", func() AggregatorFunction {
		return &CountAggregator{count: 1}
	})
	agg, err := Create("always_one")
	require.NoError(t, err)
	assert.Equal(t, int64(1), agg.Result())
	assert.True(t, IsBuiltin("always_one"))
}

func TestRequiresField(t *testing.T) {
	assert.False(t, RequiresField(Count))
	for _, typ := range []AggregateType{Min, Max, Mean, StdDev, Var} {
		assert.True(t, RequiresField(typ))
	}
}
