package goloadflow

import (
	"fmt"
	"math"
	"strings"

	"github.com/edp1096/sparse"
	"gonum.org/v1/gonum/mat"
)

// DefaultPivotTolerance is the magnitude at or below which a pivot is
// treated as zero.
const DefaultPivotTolerance = 1e-12

// LinearSolver solves the dense system a·x = b.
type LinearSolver interface {
	Solve(a *mat.Dense, b []float64) ([]float64, error)
}

// NewLinearSolver returns the solver registered under name:
// "gauss" (default, no pivoting), "lu" (partial pivoting) or "sparse".
func NewLinearSolver(name string) (LinearSolver, error) {
	switch strings.ToLower(name) {
	case "", "gauss":
		return GaussSolver{PivotTolerance: DefaultPivotTolerance}, nil
	case "lu":
		return LUSolver{}, nil
	case "sparse":
		return SparseSolver{}, nil
	}
	return nil, configErrorf("unknown linear solver %q", name)
}

// GaussSolver is Gaussian elimination without row exchanges followed by
// back-substitution. A pivot whose magnitude does not exceed
// PivotTolerance fails the solve.
type GaussSolver struct {
	PivotTolerance float64
}

func (g GaussSolver) Solve(a *mat.Dense, b []float64) ([]float64, error) {
	n, c := a.Dims()
	if n != c || len(b) != n {
		return nil, fmt.Errorf("gauss: dimension mismatch %dx%d with rhs %d", n, c, len(b))
	}
	tol := g.PivotTolerance
	if tol <= 0 {
		tol = DefaultPivotTolerance
	}

	m := mat.DenseCopyOf(a)
	rhs := make([]float64, n)
	copy(rhs, b)

	for k := 0; k < n; k++ {
		pivot := m.At(k, k)
		if !(math.Abs(pivot) > tol) {
			return nil, &SingularMatrixError{Step: k + 1, Pivot: pivot}
		}
		for i := k + 1; i < n; i++ {
			f := m.At(i, k) / pivot
			if f == 0 {
				continue
			}
			for j := k; j < n; j++ {
				m.Set(i, j, m.At(i, j)-f*m.At(k, j))
			}
			rhs[i] -= f * rhs[k]
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := rhs[i]
		for j := i + 1; j < n; j++ {
			sum -= m.At(i, j) * x[j]
		}
		x[i] = sum / m.At(i, i)
	}
	return x, nil
}

// LUSolver uses gonum's partially pivoted LU factorization.
type LUSolver struct{}

func (LUSolver) Solve(a *mat.Dense, b []float64) ([]float64, error) {
	n, c := a.Dims()
	if n != c || len(b) != n {
		return nil, fmt.Errorf("lu: dimension mismatch %dx%d with rhs %d", n, c, len(b))
	}
	var lu mat.LU
	lu.Factorize(a)
	if lu.Det() == 0 {
		return nil, &SingularMatrixError{Step: n}
	}

	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, mat.NewVecDense(n, append([]float64(nil), b...))); err != nil {
		return nil, &SingularMatrixError{Step: n, Pivot: 1 / lu.Cond()}
	}
	return x.RawVector().Data, nil
}

// SparseSolver factors the system with Markowitz ordering via the sparse
// package. The Jacobian is tiny, so this exists to cross-check the dense
// solvers and for callers that prefer its pivoting strategy.
type SparseSolver struct{}

func (SparseSolver) Solve(a *mat.Dense, b []float64) ([]float64, error) {
	n, c := a.Dims()
	if n != c || len(b) != n {
		return nil, fmt.Errorf("sparse: dimension mismatch %dx%d with rhs %d", n, c, len(b))
	}

	config := &sparse.Configuration{
		Real:                    true,
		Complex:                 false,
		SeparatedComplexVectors: false,
		Expandable:              true,
		Translate:               false,
		ModifiedNodal:           false,
		TiesMultiplier:          5,
		PrinterWidth:            80,
		Annotate:                0,
	}
	m, err := sparse.Create(int64(n), config)
	if err != nil {
		return nil, fmt.Errorf("sparse: create: %w", err)
	}
	defer m.Destroy()

	m.Clear()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// 1-based indexing, every position allocated so ordering sees the full pattern
			m.GetElement(int64(i+1), int64(j+1)).Real += a.At(i, j)
		}
	}

	if err := m.Factor(); err != nil {
		return nil, &SingularMatrixError{Step: int(m.SingularRow)}
	}

	rhs := make([]float64, n+1)
	copy(rhs[1:], b)
	sol, err := m.Solve(rhs)
	if err != nil {
		return nil, fmt.Errorf("sparse: solve: %w", err)
	}

	x := make([]float64, n)
	for i := range x {
		x[i] = sol[i+1]
		if !finite(x[i]) {
			return nil, &SingularMatrixError{Step: i + 1}
		}
	}
	return x, nil
}
