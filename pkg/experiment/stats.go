package experiment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/draftsmith/genpipe/pkg/models"
)

// popVariance is the biased (population) variance. Descriptive stats and
// Cohen's d use it; the t-test uses the unbiased sample variance.
func popVariance(values []float64) float64 {
	n := float64(len(values))
	if n == 0 {
		return 0
	}
	m := stat.Mean(values, nil)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return ss / n
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// confidenceInterval returns the 1-alpha interval around the mean using the
// Student's t distribution on the standard error. Fewer than two samples
// yield (0, 0).
func confidenceInterval(values []float64, alpha float64) (float64, float64) {
	n := len(values)
	if n < 2 {
		return 0, 0
	}
	mean := stat.Mean(values, nil)
	sem := math.Sqrt(stat.Variance(values, nil) / float64(n))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	h := sem * t.Quantile(1-alpha/2)
	return mean - h, mean + h
}

func describeVariant(values []float64, alpha float64) models.VariantStats {
	s := models.VariantStats{
		Count:  len(values),
		Mean:   stat.Mean(values, nil),
		StdDev: math.Sqrt(popVariance(values)),
		Median: median(values),
		Min:    values[0],
		Max:    values[0],
	}
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.CILower, s.CIUpper = confidenceInterval(values, alpha)
	return s
}

// tTest runs an independent two-sample t-test assuming equal variances
// (pooled). Both samples must have at least two values.
func tTest(a, b []float64) (tStat, pValue float64) {
	na, nb := float64(len(a)), float64(len(b))
	meanA, meanB := stat.Mean(a, nil), stat.Mean(b, nil)
	varA, varB := stat.Variance(a, nil), stat.Variance(b, nil)

	df := na + nb - 2
	pooled := ((na-1)*varA + (nb-1)*varB) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		if meanA == meanB {
			return 0, 1
		}
		return math.Inf(sign(meanA - meanB)), 0
	}

	tStat = (meanA - meanB) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	pValue = 2 * dist.CDF(-math.Abs(tStat))
	return tStat, pValue
}

func sign(x float64) int {
	if x < 0 {
		return -1
	}
	return 1
}

// cohensD is the standardized effect size with a pooled population
// standard deviation. Zero spread yields zero.
func cohensD(a, b []float64) float64 {
	na, nb := float64(len(a)), float64(len(b))
	pooled := math.Sqrt(((na-1)*popVariance(a) + (nb-1)*popVariance(b)) / (na + nb - 2))
	if pooled == 0 {
		return 0
	}
	return (stat.Mean(a, nil) - stat.Mean(b, nil)) / pooled
}

// oneWayANOVA tests whether the group means differ across three or more
// groups. Returns false when degrees of freedom run out.
func oneWayANOVA(groups [][]float64, alpha float64) (models.ANOVAResult, bool) {
	k := len(groups)
	total := 0
	var grandSum float64
	for _, g := range groups {
		total += len(g)
		for _, v := range g {
			grandSum += v
		}
	}
	dfBetween := float64(k - 1)
	dfWithin := float64(total - k)
	if dfBetween <= 0 || dfWithin <= 0 {
		return models.ANOVAResult{}, false
	}

	grandMean := grandSum / float64(total)
	var ssBetween, ssWithin float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		d := m - grandMean
		ssBetween += float64(len(g)) * d * d
		for _, v := range g {
			ssWithin += (v - m) * (v - m)
		}
	}

	var f, p float64
	switch {
	case ssWithin == 0 && ssBetween == 0:
		f, p = 0, 1
	case ssWithin == 0:
		f, p = math.Inf(1), 0
	default:
		f = (ssBetween / dfBetween) / (ssWithin / dfWithin)
		dist := distuv.F{D1: dfBetween, D2: dfWithin}
		p = 1 - dist.CDF(f)
	}

	return models.ANOVAResult{
		FStatistic:    f,
		PValue:        p,
		IsSignificant: p < alpha,
	}, true
}
