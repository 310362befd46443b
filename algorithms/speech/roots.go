package speech

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var errNoConvergence = errors.New("eigenvalue decomposition did not converge")

// PolynomialRoots returns the complex roots of c[0]·z^n + c[1]·z^(n-1) + ... + c[n]
// as the eigenvalues of its companion matrix
func PolynomialRoots(c []float64) ([]complex128, error) {
	// strip leading zeros
	for len(c) > 0 && c[0] == 0 {
		c = c[1:]
	}
	n := len(c) - 1
	if n < 1 {
		return nil, nil
	}

	companion := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		companion.Set(0, j, -c[j+1]/c[0])
	}
	for i := 1; i < n; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return nil, fmt.Errorf("polynomial of degree %d: %w", n, errNoConvergence)
	}
	return eig.Values(nil), nil
}

// LPCPoles returns the poles of 1/A(z) for predictor coefficients a1..ap,
// i.e. the roots of z^p - a1·z^(p-1) - ... - ap
func LPCPoles(coeffs []float64) ([]complex128, error) {
	poly := make([]float64, len(coeffs)+1)
	poly[0] = 1
	for i, a := range coeffs {
		poly[i+1] = -a
	}
	return PolynomialRoots(poly)
}
