package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"summcorr/internal/errors"
)

// exactKendallLimit is the largest sample size for which Kendall's p-value is
// taken from the exact permutation distribution.
const exactKendallLimit = 33

// Kendall computes Kendall's tau-b and its two-sided p-value.
//
// A statistic that is undefined (fewer than two points, or all values of
// either input tied) is returned as NaN for both tau and p with a nil error.
// Non-finite input is a NON_FINITE error.
func Kendall(x, y []float64) (float64, float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, 0, err
	}
	n := len(x)
	if n < 2 {
		return math.NaN(), math.NaN(), nil
	}

	tot := n * (n - 1) / 2
	var con, dis, xtie, ytie int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			if dx == 0 {
				xtie++
			}
			if dy == 0 {
				ytie++
			}
			switch {
			case dx == 0 || dy == 0:
			case dx == dy:
				con++
			default:
				dis++
			}
		}
	}
	if xtie == tot || ytie == tot {
		return math.NaN(), math.NaN(), nil
	}

	conMinusDis := float64(con - dis)
	tau := conMinusDis / math.Sqrt(float64(tot-xtie)*float64(tot-ytie))
	tau = math.Max(-1, math.Min(1, tau))

	if xtie == 0 && ytie == 0 && (n <= exactKendallLimit || minInt(dis, tot-dis) <= 1) {
		return tau, kendallExactP(n, tot-dis), nil
	}

	x0, x1 := tieStats(x)
	y0, y1 := tieStats(y)
	m := float64(n) * float64(n-1)
	variance := (m*float64(2*n+5)-x1-y1)/18 +
		2*float64(xtie)*float64(ytie)/m +
		x0*y0/(9*m*float64(n-2))
	z := conMinusDis / math.Sqrt(variance)
	p := 2 * distuv.UnitNormal.Survival(math.Abs(z))
	return tau, math.Min(1, p), nil
}

// kendallExactP returns the two-sided p-value of observing c concordant pairs
// among n untied observations under independence.
func kendallExactP(n, c int) float64 {
	tot := n * (n - 1) / 2
	c = minInt(c, tot-c)

	var prob float64
	switch {
	case n <= 2:
		prob = 1
	case c == 0:
		prob = 2 / factorial(n)
	case c == 1:
		prob = 2 / factorial(n-1)
	case 4*c == n*(n-1):
		prob = 1
	default:
		// counts[k] holds the number of permutations with k inversions,
		// truncated at c.
		counts := make([]float64, c+1)
		counts[0], counts[1] = 1, 1
		for j := 3; j <= n; j++ {
			for k := 1; k <= c; k++ {
				counts[k] += counts[k-1]
			}
			if j <= c {
				for k := c; k >= j; k-- {
					counts[k] -= counts[k-j]
				}
			}
		}
		sum := 0.0
		for _, v := range counts {
			sum += v
		}
		prob = 2 * sum / factorial(n)
	}
	return math.Max(0, math.Min(1, prob))
}

// Pearson computes Pearson's r and its two-sided p-value.
// Constant input yields NaN for both values.
func Pearson(x, y []float64) (float64, float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, 0, err
	}
	n := len(x)
	if n < 2 {
		return 0, 0, errors.InsufficientData("pearson correlation needs at least 2 points")
	}
	if isConstant(x) || isConstant(y) {
		return math.NaN(), math.NaN(), nil
	}

	r := stat.Correlation(x, y, nil)
	r = math.Max(-1, math.Min(1, r))
	if n == 2 {
		return r, 1, nil
	}

	// r is Beta(n/2-1, n/2-1) distributed on [-1, 1] under the null.
	ab := float64(n)/2 - 1
	dist := distuv.Beta{Alpha: ab, Beta: ab}
	p := 2 * dist.Survival((math.Abs(r)+1)/2)
	return r, math.Max(0, math.Min(1, p)), nil
}

// Spearman computes Spearman's rho (Pearson's r over average ranks) and its
// two-sided p-value from the t distribution with n-2 degrees of freedom.
func Spearman(x, y []float64) (float64, float64, error) {
	if err := checkPaired(x, y); err != nil {
		return 0, 0, err
	}
	n := len(x)
	if n < 2 {
		return 0, 0, errors.InsufficientData("spearman correlation needs at least 2 points")
	}
	xr, yr := Ranks(x), Ranks(y)
	if isConstant(xr) || isConstant(yr) {
		return math.NaN(), math.NaN(), nil
	}

	rho := stat.Correlation(xr, yr, nil)
	rho = math.Max(-1, math.Min(1, rho))

	dof := float64(n - 2)
	if dof == 0 {
		return rho, math.NaN(), nil
	}
	if math.Abs(rho) == 1 {
		return rho, 0, nil
	}
	t := rho * math.Sqrt(dof/((rho+1)*(1-rho)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}
	return rho, 2 * dist.Survival(math.Abs(t)), nil
}

// Ranks converts values to 1-based ranks, averaging ranks over ties
func Ranks(data []float64) []float64 {
	n := len(data)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return data[idx[a]] < data[idx[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && data[idx[j]] == data[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// Percentile returns the p-th percentile (0-100) of data using linear
// interpolation between the two nearest order statistics.
func Percentile(data []float64, p float64) (float64, error) {
	if len(data) == 0 {
		return 0, errors.InsufficientData("percentile of empty data")
	}
	if math.IsNaN(p) || p < 0 || p > 100 {
		return 0, errors.Newf(errors.CodeInvalidInput, "percentile %g out of range [0, 100]", p)
	}
	if err := checkFinite(data); err != nil {
		return 0, err
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	h := float64(len(sorted)-1) * p / 100
	lo := math.Floor(h)
	i := int(lo)
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1], nil
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i]), nil
}

func checkPaired(x, y []float64) error {
	if len(x) != len(y) {
		return errors.Newf(errors.CodeInvalidInput, "paired inputs differ in length: %d vs %d", len(x), len(y))
	}
	if err := checkFinite(x); err != nil {
		return err
	}
	return checkFinite(y)
}

func checkFinite(data []float64) error {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NonFinite(fmt.Sprintf("non-finite value %v at index %d", v, i))
		}
	}
	return nil
}

// tieStats returns sum t(t-1)(t-2) and sum t(t-1)(2t+5) over tie groups of size t
func tieStats(data []float64) (float64, float64) {
	counts := make(map[float64]int, len(data))
	for _, v := range data {
		counts[v]++
	}
	var s0, s1 float64
	for _, c := range counts {
		if c < 2 {
			continue
		}
		t := float64(c)
		s0 += t * (t - 1) * (t - 2)
		s1 += t * (t - 1) * (2*t + 5)
	}
	return s0, s1
}

func isConstant(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func factorial(n int) float64 {
	return math.Gamma(float64(n + 1))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
