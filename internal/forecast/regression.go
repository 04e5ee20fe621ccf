package forecast

import (
	"math"

	"github.com/finopsmind/costengine/internal/model"
)

// Fit returns the ordinary least squares line through (i, ys[i]).
// A degenerate series (fewer than two points) has slope 0.
func Fit(ys []float64) model.RegressionModel {
	n := float64(len(ys))
	if n == 0 {
		return model.RegressionModel{}
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	var slope float64
	if denom := n*sumXX - sumX*sumX; denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	return model.RegressionModel{
		Slope:     slope,
		Intercept: (sumY - slope*sumX) / n,
	}
}

// StdDev is the population standard deviation of the residuals of m over ys.
func StdDev(m model.RegressionModel, ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	var sum float64
	for i, y := range ys {
		r := y - m.At(float64(i))
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(ys)))
}

// Interval is the half-width of the 95% band around a forecast point for a
// fit over n samples. It does not widen with distance from the sample.
func Interval(stdDev float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return 1.96 * stdDev * math.Sqrt(1+1/float64(n))
}

func mean(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	var sum float64
	for _, y := range ys {
		sum += y
	}
	return sum / float64(len(ys))
}
