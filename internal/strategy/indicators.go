package strategy

import "math"

// Indicator helpers operate on closing-price slices and return a new slice of
// the same length. Positions without enough history hold NaN.

// SMA is the simple moving average over window values. Each window is summed
// afresh so constant input yields an exactly constant average.
func SMA(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window < 1 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		var sum float64
		for _, x := range xs[i-window+1 : i+1] {
			sum += x
		}
		out[i] = sum / float64(window)
	}
	return out
}

// RollingStd is the sample standard deviation (n-1) over window values.
func RollingStd(xs []float64, window int) []float64 {
	out := nanSlice(len(xs))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(xs); i++ {
		w := xs[i-window+1 : i+1]
		var m float64
		for _, x := range w {
			m += x
		}
		m /= float64(window)
		var ss float64
		for _, x := range w {
			ss += (x - m) * (x - m)
		}
		out[i] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// EMA is the recursive exponential moving average seeded with the first
// value, with smoothing factor 2/(span+1).
func EMA(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2 / (float64(span) + 1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RSI is the relative strength index using simple rolling means of gains and
// losses over period bar-to-bar changes. It is 100 when the window has gains
// and no losses, and NaN when it has neither.
func RSI(xs []float64, period int) []float64 {
	n := len(xs)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := xs[i] - xs[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}
	avgGain := SMA(gains, period)
	avgLoss := SMA(losses, period)

	out := nanSlice(n)
	for i := range out {
		g, l := avgGain[i], avgLoss[i]
		switch {
		case math.IsNaN(g) || math.IsNaN(l):
		case l == 0 && g == 0:
		case l == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+g/l)
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
