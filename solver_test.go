package goloadflow

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referencePoint() OperatingPoint {
	return OperatingPoint{
		SlackVoltage:    1.05,
		PVVoltage:       1.0,
		PVRealPower:     50,
		PQRealPower:     -80,
		PQReactivePower: -30,
	}
}

func quietSolver() *Solver {
	s := NewSolver(referenceNetwork(), referencePoint())
	s.Settings.Quiet = true
	return s
}

func TestSolveReferenceCase(t *testing.T) {
	res, err := quietSolver().Solve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, NewtonRaphson, res.Method)
	assert.Equal(t, 3, res.Iterations)
	assert.Less(t, res.Mismatch, DefaultTolerance)

	require.Len(t, res.Buses, 3)
	assert.InDelta(t, 1.05, res.Buses[0].Magnitude, 1e-12)
	assert.InDelta(t, 1.0, res.Buses[1].Magnitude, 1e-12)
	assert.InDelta(t, 0.957761, res.Buses[2].Magnitude, 1e-5)
	assert.Less(t, res.Buses[2].Magnitude, 1.0)

	assert.InDelta(t, 0, res.Buses[0].Angle, 1e-12)
	assert.InDelta(t, 1.0302, res.Buses[1].Angle, 1e-3)
	assert.InDelta(t, -3.6445, res.Buses[2].Angle, 1e-3)

	assert.InDelta(t, 34.351, res.SlackRealPower, 1e-2)
	assert.InDelta(t, 117.534, res.SlackReactivePower, 1e-2)
	assert.InDelta(t, -74.481, res.PVReactivePower, 1e-2)

	// scheduled injections are met at the solution
	assert.InDelta(t, 50, res.Buses[1].P, 1e-3)
	assert.InDelta(t, -80, res.Buses[2].P, 1e-3)
	assert.InDelta(t, -30, res.Buses[2].Q, 1e-3)

	assert.Equal(t, "3", res.Weakest().ID)
}

func TestSolvePowerBalance(t *testing.T) {
	res, err := quietSolver().Solve(context.Background())
	require.NoError(t, err)

	lossP, lossQ := res.TotalLoss()
	assert.InDelta(t, 4.351, lossP, 1e-2)
	assert.Greater(t, lossQ, 0.0)
	// 1e-4 p.u. on a 100 MVA base
	assert.InDelta(t, 0, res.Balance(), 1e-2)
	assert.InDelta(t, lossP, res.SlackRealPower+50-80, 1e-2)
}

func TestSolveDivergesAtIterationCap(t *testing.T) {
	for _, load := range []float64{-10000, -1000} {
		s := quietSolver()
		s.Point.PQRealPower = load
		res, err := s.Solve(context.Background())
		assert.Nil(t, res)

		var conv *ConvergenceError
		require.True(t, errors.As(err, &conv), "load %v: got %v", load, err)
		assert.Equal(t, DefaultMaxIterations, conv.Iterations)
		assert.Equal(t, NewtonRaphson, conv.Method)
	}
}

func TestSolveRespectsMaxIterations(t *testing.T) {
	s := quietSolver()
	s.Settings.MaxIterations = 2
	_, err := s.Solve(context.Background())

	var conv *ConvergenceError
	require.ErrorAs(t, err, &conv)
	assert.Equal(t, 2, conv.Iterations)
}

func TestConvergenceErrorReportsFinalMismatch(t *testing.T) {
	s := quietSolver()
	s.Settings.MaxIterations = 2
	_, err := s.Solve(context.Background())
	var conv *ConvergenceError
	require.ErrorAs(t, err, &conv)

	// replay two Newton updates by hand
	y, err := BuildAdmittance(s.Network.Buses, s.Network.Branches)
	require.NoError(t, err)
	st := newState(y, s.Network.BaseMVA, s.Point)
	mis := make([]float64, 3)
	for k := 0; k < 2; k++ {
		p, q := Injections(st.voltages(), y)
		st.mismatch(mis, p, q)
		dx, err := GaussSolver{}.Solve(jacobian(st.vm, st.va, p, q, y), mis)
		require.NoError(t, err)
		st.apply(dx)
	}
	st.mismatchAt(mis, st.unknowns())
	worst := 0.0
	for _, m := range mis {
		worst = math.Max(worst, math.Abs(m))
	}

	assert.InDelta(t, worst, conv.Mismatch, 1e-15)
	assert.GreaterOrEqual(t, conv.Mismatch, DefaultTolerance)
}

func TestSolveSingularJacobian(t *testing.T) {
	// only 1-2 kept, so the PQ bus is isolated and its rows vanish
	s := quietSolver()
	s.Network.Branches = s.Network.Branches[:1]
	res, err := s.Solve(context.Background())
	assert.Nil(t, res)

	var singular *SingularMatrixError
	require.True(t, errors.As(err, &singular), "got %v", err)
	assert.Equal(t, 2, singular.Step)
	assert.Contains(t, err.Error(), "iteration 1")
}

func TestSolveLinearSolversAgree(t *testing.T) {
	base, err := quietSolver().Solve(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"lu", "sparse"} {
		s := quietSolver()
		s.Settings.LinearSolver = name
		res, err := s.Solve(context.Background())
		require.NoError(t, err, name)
		assert.Equal(t, base.Iterations, res.Iterations, name)
		for i := range base.Buses {
			assert.InDelta(t, base.Buses[i].Magnitude, res.Buses[i].Magnitude, 1e-9, name)
			assert.InDelta(t, base.Buses[i].Angle, res.Buses[i].Angle, 1e-7, name)
		}
	}
}

func TestSolveNumericJacobian(t *testing.T) {
	s := quietSolver()
	s.Settings.NumericJacobian = true
	res, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.957761, res.Buses[2].Magnitude, 1e-5)
	assert.LessOrEqual(t, res.Iterations, 5)
}

func TestSolveOptimizerMethods(t *testing.T) {
	for _, method := range []string{LevenbergMarquardt, BFGS} {
		t.Run(method, func(t *testing.T) {
			s := quietSolver()
			s.Settings.Method = method
			s.Settings.MaxIterations = 500
			res, err := s.Solve(context.Background())
			require.NoError(t, err)
			assert.Equal(t, method, res.Method)
			assert.Greater(t, res.Iterations, 0)
			assert.Less(t, res.Iterations, s.Settings.MaxIterations)
			assert.Less(t, res.Mismatch, DefaultTolerance)
			assert.InDelta(t, 0.957761, res.Buses[2].Magnitude, 1e-4)
		})
	}
}

func TestSolveConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Solver)
	}{
		{"unknown bus", func(s *Solver) { s.Network.Branches[0].To = "7" }},
		{"zero impedance", func(s *Solver) { s.Network.Branches[1].R, s.Network.Branches[1].X = 0, 0 }},
		{"wrong bus order", func(s *Solver) { s.Network.Buses[0].Type, s.Network.Buses[1].Type = PV, Slack }},
		{"two buses", func(s *Solver) { s.Network.Buses = s.Network.Buses[:2] }},
		{"negative voltage", func(s *Solver) { s.Point.PVVoltage = -1 }},
		{"nan load", func(s *Solver) { s.Point.PQRealPower = math.NaN() }},
		{"unknown method", func(s *Solver) { s.Settings.Method = "gauss-seidel" }},
		{"unknown linear solver", func(s *Solver) { s.Settings.LinearSolver = "qr" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := quietSolver()
			tt.mutate(s)
			res, err := s.Solve(context.Background())
			assert.Nil(t, res)
			var cfgErr *ConfigurationError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietSolver().Solve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolverCloneIsIndependent(t *testing.T) {
	s := quietSolver()
	c := s.Clone()
	c.Network.Branches[0].R = 1
	c.Point.PQRealPower = 0

	assert.Equal(t, 0.02, s.Network.Branches[0].R)
	assert.Equal(t, -80.0, s.Point.PQRealPower)
}

func TestSolveDoesNotMutateInputs(t *testing.T) {
	s := quietSolver()
	before := s.Clone()
	_, err := s.Solve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, s)
}
