package stats

import "math"

// Numerical routines for test p-values: gamma and incomplete gamma for the
// chi-squared CDF, incomplete beta for the Student t CDF.

// gammaFn calculates the gamma function using the Lanczos approximation.
func gammaFn(z float64) float64 {
	if z < 0.5 {
		return math.Pi / (math.Sin(math.Pi*z) * gammaFn(1-z))
	}

	z--
	c := []float64{
		0.99999999999980993,
		676.5203681218851,
		-1259.1392167224028,
		771.32342877765313,
		-176.61502916214059,
		12.507343278686905,
		-0.13857109526572012,
		9.9843695780195716e-6,
		1.5056327351493116e-7,
	}

	x := c[0]
	for i := 1; i < len(c); i++ {
		x += c[i] / (z + float64(i))
	}
	t := z + 7.5
	return math.Sqrt(2*math.Pi) * math.Pow(t, z+0.5) * math.Exp(-t) * x
}

// chiSquaredCDF is the CDF of the chi-squared distribution with k degrees
// of freedom.
func chiSquaredCDF(x float64, k int) float64 {
	if x <= 0 {
		return 0
	}
	return lowerIncompleteGamma(float64(k)/2, x/2) / gammaFn(float64(k)/2)
}

func lowerIncompleteGamma(a, x float64) float64 {
	if x < 0 || a <= 0 {
		return 0
	}
	if x < a+1 {
		return gammaIncSeries(a, x)
	}
	return gammaFn(a) - gammaIncCF(a, x)
}

func gammaIncSeries(a, x float64) float64 {
	if x == 0 {
		return 0
	}
	const maxIter = 200
	const eps = 1e-10

	ap := a
	sum := 1.0 / a
	del := sum
	for n := 1; n < maxIter; n++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*eps {
			break
		}
	}
	return sum * math.Exp(-x+a*math.Log(x)-math.Log(gammaFn(a)))
}

func gammaIncCF(a, x float64) float64 {
	const maxIter = 200
	const eps = 1e-10
	const fpmin = 1e-30

	b := x + 1 - a
	c := 1.0 / fpmin
	d := 1.0 / b
	h := d
	for i := 1; i < maxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = b + an/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return math.Exp(-x+a*math.Log(x)-math.Log(gammaFn(a))) * h
}

// fDistCDF is the CDF of the F distribution with d1 and d2 degrees of
// freedom.
func fDistCDF(x float64, d1, d2 int) float64 {
	if x <= 0 {
		return 0
	}
	v1, v2 := float64(d1), float64(d2)
	return regIncBeta(v1/2, v2/2, v1*x/(v1*x+v2))
}

// normalCDF is the standard normal CDF.
func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// studentTPValue is the two-sided p-value for a t statistic with df degrees
// of freedom, via the regularized incomplete beta function.
func studentTPValue(t float64, df int) float64 {
	if df <= 0 {
		return math.NaN()
	}
	v := float64(df)
	x := v / (v + t*t)
	return regIncBeta(v/2, 0.5, x)
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated with the Lentz continued fraction.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lbeta := math.Log(gammaFn(a)) + math.Log(gammaFn(b)) - math.Log(gammaFn(a+b))
	front := math.Exp(a*math.Log(x)+b*math.Log(1-x)-lbeta) / a

	if x > (a+1)/(a+b+2) {
		return 1 - regIncBeta(b, a, 1-x)
	}

	const maxIter = 200
	const eps = 1e-12
	const fpmin = 1e-30

	c := 1.0
	d := 1 - (a+b)*x/(a+1)
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		num := fm * (b - fm) * x / ((a + 2*fm - 1) * (a + 2*fm))
		d = 1 + num*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + num/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c

		num = -(a + fm) * (a + b + fm) * x / ((a + 2*fm) * (a + 2*fm + 1))
		d = 1 + num*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + num/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return front * h
}
