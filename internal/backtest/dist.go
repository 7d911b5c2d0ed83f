package backtest

import "math"

// Numeric approximations for the significance test. These are deliberately
// inexact, reproducible approximations; tests pin tolerances, not bit-exact
// values.

// normalCDF approximates the standard normal CDF using the Abramowitz and
// Stegun formula 26.2.17 (polynomial approximation, |error| < 7.5e-8).
func normalCDF(x float64) float64 {
	if x < 0 {
		return 1 - normalCDF(-x)
	}

	const (
		p  = 0.2316419
		b1 = 0.319381530
		b2 = -0.356563782
		b3 = 1.781477937
		b4 = -1.821255978
		b5 = 1.330274429
	)

	t := 1 / (1 + p*x)
	pdf := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	poly := t * (b1 + t*(b2+t*(b3+t*(b4+t*b5))))
	return 1 - pdf*poly
}

// logGamma approximates ln(Gamma(x)) for x > 0 via the Stirling series.
func logGamma(x float64) float64 {
	// Shift small arguments up for series accuracy: Gamma(x) = Gamma(x+n) / (x...(x+n-1))
	shift := 0.0
	for x < 8 {
		shift += math.Log(x)
		x++
	}

	inv := 1 / x
	inv2 := inv * inv
	series := inv / 12 * (1 - inv2/30*(1-inv2*2/7))
	return (x-0.5)*math.Log(x) - x + 0.5*math.Log(2*math.Pi) + series - shift
}

// incompleteBeta computes the regularized incomplete beta function I_x(a,b)
// using the continued-fraction expansion (modified Lentz's method).
func incompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnFront := logGamma(a+b) - logGamma(a) - logGamma(b) +
		a*math.Log(x) + b*math.Log(1-x)
	front := math.Exp(lnFront)

	// Use the symmetry relation to keep the continued fraction convergent.
	if x > (a+1)/(a+b+2) {
		return 1 - incompleteBeta(b, a, 1-x)
	}

	const (
		maxIter = 200
		eps     = 3e-14
		tiny    = 1e-30
	)

	c := 1.0
	d := 1 - (a+b)*x/(a+1)
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	result := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)

		// Even step
		num := fm * (b - fm) * x / ((a + 2*fm - 1) * (a + 2*fm))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		result *= d * c

		// Odd step
		num = -(a + fm) * (a + b + fm) * x / ((a + 2*fm) * (a + 2*fm + 1))
		d = 1 + num*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + num/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		delta := d * c
		result *= delta

		if math.Abs(delta-1) < eps {
			break
		}
	}

	return front * result / a
}

// tTestPValue returns the two-sided p-value for a t-statistic with the given
// degrees of freedom: the normal approximation for df >= 30, otherwise the
// exact Student-t tail via the incomplete beta function.
func tTestPValue(t float64, df int) float64 {
	if df < 1 || math.IsNaN(t) {
		return math.NaN()
	}

	abs := math.Abs(t)
	if df >= 30 {
		return 2 * (1 - normalCDF(abs))
	}

	fdf := float64(df)
	x := fdf / (fdf + abs*abs)
	return incompleteBeta(fdf/2, 0.5, x)
}
