package vector

import (
	"gonum.org/v1/gonum/blas/gonum"
)

var blasEngine = gonum.Implementation{}

// squaredL2 returns ||a-b||^2. Ordering by squared distance is the same as
// ordering by L2 distance. Callers guarantee equal lengths.
func squaredL2(a, b []float32, workspace []float32) float32 {
	n := len(a)
	if n == 0 {
		return 0
	}
	diff := workspace[:n]
	copy(diff, a)
	blasEngine.Saxpy(n, -1, b, 1, diff, 1)
	return blasEngine.Sdot(n, diff, 1, diff, 1)
}
