package goloadflow

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Fixed bus positions the Jacobian rows and columns are written against.
const (
	slackBus = 0
	pvBus    = 1
	pqBus    = 2
)

// jacobian assembles ∂(P_pv, P_pq, Q_pq)/∂(θ_pv, θ_pq, |V|_pq) from the
// closed-form polar expressions. p and q are the injections already
// computed at the current voltages.
func jacobian(vm, va, p, q []float64, y *Admittance) *mat.Dense {
	g := func(i, k int) float64 { return y.At(i, k).Re }
	b := func(i, k int) float64 { return y.At(i, k).Im }

	dPdTheta := func(i, k int) float64 {
		if i == k {
			return -q[i] - b(i, i)*vm[i]*vm[i]
		}
		t := va[i] - va[k]
		return vm[i] * vm[k] * (g(i, k)*math.Sin(t) - b(i, k)*math.Cos(t))
	}
	dPdV := func(i, k int) float64 {
		if i == k {
			return p[i]/vm[i] + g(i, i)*vm[i]
		}
		t := va[i] - va[k]
		return vm[i] * (g(i, k)*math.Cos(t) + b(i, k)*math.Sin(t))
	}
	dQdTheta := func(i, k int) float64 {
		if i == k {
			return p[i] - g(i, i)*vm[i]*vm[i]
		}
		t := va[i] - va[k]
		return -vm[i] * vm[k] * (g(i, k)*math.Cos(t) + b(i, k)*math.Sin(t))
	}
	dQdV := func(i, k int) float64 {
		if i == k {
			return q[i]/vm[i] - b(i, i)*vm[i]
		}
		t := va[i] - va[k]
		return vm[i] * (g(i, k)*math.Sin(t) - b(i, k)*math.Cos(t))
	}

	return mat.NewDense(3, 3, []float64{
		dPdTheta(pvBus, pvBus), dPdTheta(pvBus, pqBus), dPdV(pvBus, pqBus),
		dPdTheta(pqBus, pvBus), dPdTheta(pqBus, pqBus), dPdV(pqBus, pqBus),
		dQdTheta(pqBus, pvBus), dQdTheta(pqBus, pqBus), dQdV(pqBus, pqBus),
	})
}

// numericJacobian differentiates the calculated injections (P_pv, P_pq,
// Q_pq) with central differences around the state x = (θ_pv, θ_pq, |V|_pq).
func numericJacobian(s *state, x []float64) *mat.Dense {
	dst := mat.NewDense(3, 3, nil)
	fd.Jacobian(dst, s.calculated, x, &fd.JacobianSettings{
		Formula: fd.Central,
	})
	return dst
}
