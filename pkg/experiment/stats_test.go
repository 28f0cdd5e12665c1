package experiment

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 3.0, median([]float64{5, 1, 3}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

func TestPopVariance(t *testing.T) {
	// np.std semantics: divide by n, not n-1.
	assert.InDelta(t, 2.0, popVariance([]float64{1, 2, 3, 4, 5}), 1e-9)
	assert.Equal(t, 0.0, popVariance([]float64{7, 7, 7}))
	assert.Equal(t, 0.0, popVariance(nil))
}

func TestConfidenceInterval(t *testing.T) {
	lo, hi := confidenceInterval([]float64{5}, 0.05)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 0.0, hi)

	values := []float64{9, 10, 11, 10, 9, 11, 10, 10}
	lo, hi = confidenceInterval(values, 0.05)
	assert.Less(t, lo, 10.0)
	assert.Greater(t, hi, 10.0)
	assert.Less(t, hi-lo, 2.0)
}

func TestTTest(t *testing.T) {
	a := []float64{10, 10.5, 9.5, 10.2, 9.8}
	b := []float64{20, 20.5, 19.5, 20.2, 19.8}

	tStat, p := tTest(a, b)
	assert.Negative(t, tStat)
	assert.Less(t, p, 0.001)

	tStat, p = tTest(a, a)
	assert.InDelta(t, 0.0, tStat, 1e-9)
	assert.InDelta(t, 1.0, p, 1e-9)
}

func TestTTestZeroSpread(t *testing.T) {
	tStat, p := tTest([]float64{5, 5, 5}, []float64{7, 7, 7})
	assert.True(t, math.IsInf(tStat, -1))
	assert.Equal(t, 0.0, p)

	tStat, p = tTest([]float64{5, 5}, []float64{5, 5})
	assert.Equal(t, 0.0, tStat)
	assert.Equal(t, 1.0, p)
}

func TestCohensD(t *testing.T) {
	a := []float64{10, 11, 9, 10, 10}
	b := []float64{12, 13, 11, 12, 12}
	assert.InDelta(t, -2.0/math.Sqrt(0.4), cohensD(a, b), 1e-9)

	assert.Equal(t, 0.0, cohensD([]float64{5, 5}, []float64{5, 5}))
}

func TestOneWayANOVA(t *testing.T) {
	separated := [][]float64{
		{1, 1.1, 0.9, 1.0, 1.05},
		{5, 5.1, 4.9, 5.0, 5.05},
		{9, 9.1, 8.9, 9.0, 9.05},
	}
	res, ok := oneWayANOVA(separated, 0.05)
	require.True(t, ok)
	assert.True(t, res.IsSignificant)
	assert.Less(t, res.PValue, 0.001)

	identical := [][]float64{{3, 3}, {3, 3}, {3, 3}}
	res, ok = oneWayANOVA(identical, 0.05)
	require.True(t, ok)
	assert.False(t, res.IsSignificant)
	assert.Equal(t, 1.0, res.PValue)

	_, ok = oneWayANOVA([][]float64{{1}, {2}, {3}}, 0.05)
	assert.False(t, ok, "no within-group degrees of freedom")
}
