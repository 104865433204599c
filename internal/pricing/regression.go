package pricing

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateSeries is returned when the x values carry no variance, so no
// slope can be fitted.
var ErrDegenerateSeries = errors.New("regression needs at least two distinct x values")

// LinearFit is an ordinary least-squares line y = Slope*x + Intercept.
type LinearFit struct {
	Slope     float64
	Intercept float64
	RSquared  float64 // clamped to [0, 1]
}

// At evaluates the fitted line at x.
func (f LinearFit) At(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// FitLinear fits xs/ys by ordinary least squares. xs and ys must have the
// same length.
//
// When ys is constant R² is undefined; the fitted line is then the constant
// itself and counts as perfect (1).
func FitLinear(xs, ys []float64) (LinearFit, error) {
	if len(xs) != len(ys) {
		return LinearFit{}, errors.New("regression needs equally sized x and y")
	}
	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return LinearFit{}, ErrDegenerateSeries
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	fit := LinearFit{Slope: slope, Intercept: intercept}

	if constant(ys) {
		fit.RSquared = 1
		return fit, nil
	}

	meanY := stat.Mean(ys, nil)
	var ssRes, ssTot float64
	for i := range xs {
		ssRes += math.Pow(ys[i]-fit.At(xs[i]), 2)
		ssTot += math.Pow(ys[i]-meanY, 2)
	}

	if ssTot > 0 {
		fit.RSquared = math.Max(0, math.Min(1, 1-ssRes/ssTot))
	}
	return fit, nil
}

// constant compares exactly: a mean computed in floating point can sit an
// ulp away from identical values.
func constant(ys []float64) bool {
	for _, y := range ys[1:] {
		if y != ys[0] {
			return false
		}
	}
	return true
}
