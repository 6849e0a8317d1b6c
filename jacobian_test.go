package goloadflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	n := referenceNetwork()
	y, err := BuildAdmittance(n.Buses, n.Branches)
	require.NoError(t, err)

	points := [][]float64{
		{0, 0, 1},
		{0.018, -0.064, 0.958},
		{-0.2, 0.3, 1.1},
	}
	for _, x := range points {
		st := newState(y, n.BaseMVA, referencePoint())
		st.set(x)
		p, q := Injections(st.voltages(), st.y)

		analytic := jacobian(st.vm, st.va, p, q, st.y)
		numeric := numericJacobian(st, st.unknowns())
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, numeric.At(i, j), analytic.At(i, j), 1e-6, "x=%v entry (%d,%d)", x, i, j)
			}
		}
	}
}

func TestJacobianFlatStart(t *testing.T) {
	n := referenceNetwork()
	y, err := BuildAdmittance(n.Buses, n.Branches)
	require.NoError(t, err)
	st := newState(y, n.BaseMVA, referencePoint())
	p, q := Injections(st.voltages(), st.y)
	j := jacobian(st.vm, st.va, p, q, st.y)

	// at zero angles dP_i/dθ_i = Σ_k≠i |V_i||V_k|B_ik and dP_i/dθ_k = -|V_i||V_k|B_ik
	b21 := y.At(pvBus, slackBus).Im
	b23 := y.At(pvBus, pqBus).Im
	assert.InDelta(t, 1.05*b21+b23, j.At(0, 0), 1e-9)
	assert.InDelta(t, -b23, j.At(0, 1), 1e-9)
}
