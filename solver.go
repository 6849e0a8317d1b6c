package goloadflow

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Solve methods.
const (
	NewtonRaphson      = "nr"
	LevenbergMarquardt = "lm"
	BFGS               = "bfgs"
)

const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 50
)

// Settings tune a solve. Zero values fall back to the defaults.
type Settings struct {
	Tolerance       float64 // max |mismatch| in p.u.
	MaxIterations   int
	Method          string // nr, lm or bfgs
	LinearSolver    string // gauss, lu or sparse
	NumericJacobian bool
	Quiet           bool
}

func DefaultSettings() Settings {
	return Settings{
		Tolerance:     DefaultTolerance,
		MaxIterations: DefaultMaxIterations,
		Method:        NewtonRaphson,
		LinearSolver:  "gauss",
	}
}

// OperatingPoint holds the scheduled quantities. Voltages are in p.u.,
// powers in MW and MVAr; loads are negative.
type OperatingPoint struct {
	SlackVoltage    float64 `json:"slack_voltage"`
	PVVoltage       float64 `json:"pv_voltage"`
	PVRealPower     float64 `json:"pv_real_power"`
	PQRealPower     float64 `json:"pq_real_power"`
	PQReactivePower float64 `json:"pq_reactive_power"`
}

func (op OperatingPoint) validate() error {
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"slack voltage", op.SlackVoltage},
		{"pv voltage", op.PVVoltage},
		{"pv real power", op.PVRealPower},
		{"pq real power", op.PQRealPower},
		{"pq reactive power", op.PQReactivePower},
	} {
		if !finite(v.value) {
			return configErrorf("%s is not a finite number", v.name)
		}
	}
	if op.SlackVoltage <= 0 || op.PVVoltage <= 0 {
		return configErrorf("voltage magnitudes must be positive (slack %v, pv %v)", op.SlackVoltage, op.PVVoltage)
	}
	return nil
}

type Solver struct {
	Network  Network
	Point    OperatingPoint
	Settings Settings
}

func NewSolver(network Network, op OperatingPoint) *Solver {
	return &Solver{Network: network, Point: op, Settings: DefaultSettings()}
}

// Clone returns a solver sharing no slices with s, safe to solve concurrently.
func (s *Solver) Clone() *Solver {
	newS := *s
	newS.Network.Buses = make([]Bus, len(s.Network.Buses))
	copy(newS.Network.Buses, s.Network.Buses)

	newS.Network.Branches = make([]Branch, len(s.Network.Branches))
	copy(newS.Network.Branches, s.Network.Branches)

	return &newS
}

// Solve runs the configured method to convergence. Nothing is returned on
// failure besides the error: *ConfigurationError before iterating,
// *SingularMatrixError from a linear solve, *ConvergenceError at the cap.
func (s *Solver) Solve(ctx context.Context) (*Result, error) {
	if err := s.Network.Validate(); err != nil {
		return nil, err
	}
	if err := s.Point.validate(); err != nil {
		return nil, err
	}
	y, err := BuildAdmittance(s.Network.Buses, s.Network.Branches)
	if err != nil {
		return nil, err
	}

	cfg := s.Settings
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	ls, err := NewLinearSolver(cfg.LinearSolver)
	if err != nil {
		return nil, err
	}

	st := newState(y, s.Network.BaseMVA, s.Point)

	var (
		iterations int
		worst      float64
		method     = strings.ToLower(cfg.Method)
	)
	switch method {
	case "", NewtonRaphson:
		method = NewtonRaphson
		iterations, worst, err = s.newtonRaphson(ctx, st, ls, cfg)
	case LevenbergMarquardt:
		iterations, worst, err = s.levenbergMarquardt(ctx, st, cfg)
	case BFGS:
		iterations, worst, err = s.bfgs(ctx, st, cfg)
	default:
		return nil, configErrorf("unknown solve method %q", cfg.Method)
	}
	if err != nil {
		return nil, err
	}

	res := derive(st, s.Network)
	res.Iterations = iterations
	res.Mismatch = worst
	res.Method = method
	return res, nil
}

func (s *Solver) newtonRaphson(ctx context.Context, st *state, ls LinearSolver, cfg Settings) (int, float64, error) {
	if !cfg.Quiet {
		log.Println("Newton-Raphson Solve Mode")
	}
	mis := make([]float64, 3)
	iter := 0
	for {
		if err := ctx.Err(); err != nil {
			return iter, 0, fmt.Errorf("solve cancelled after %d iterations: %w", iter, err)
		}

		p, q := Injections(st.voltages(), st.y)
		st.mismatch(mis, p, q)
		worst := floats.Norm(mis, math.Inf(1))
		if !cfg.Quiet {
			log.Printf("iter: %d max mismatch: %.6e", iter, worst)
		}
		if worst < cfg.Tolerance {
			return iter, worst, nil
		}

		var j *mat.Dense
		if cfg.NumericJacobian {
			j = numericJacobian(st, st.unknowns())
		} else {
			j = jacobian(st.vm, st.va, p, q, st.y)
		}
		dx, err := ls.Solve(j, mis)
		if err != nil {
			return iter, worst, fmt.Errorf("iteration %d: %w", iter+1, err)
		}
		st.apply(dx)

		iter++
		if iter >= cfg.MaxIterations {
			p, q = Injections(st.voltages(), st.y)
			st.mismatch(mis, p, q)
			worst = floats.Norm(mis, math.Inf(1))
			return iter, worst, &ConvergenceError{Iterations: iter, Mismatch: worst, Method: NewtonRaphson}
		}
	}
}

// levenbergMarquardt minimizes the squared mismatch with the lm package.
// The iteration count reported is the number of mismatch evaluations.
func (s *Solver) levenbergMarquardt(ctx context.Context, st *state, cfg Settings) (iterations int, worst float64, err error) {
	if !cfg.Quiet {
		log.Println("LM Solve Mode")
	}
	fnc := func(dst, x []float64) {
		iterations++
		st.mismatchAt(dst, x)
	}

	jac := lm.NumJac{Func: fnc}

	problem := lm.LMProblem{
		Dim:        3,
		Size:       3,
		Func:       fnc,
		Jac:        jac.Jac,
		InitParams: st.unknowns(),
		Tau:        1e-3,
		Eps1:       1e-15,
		Eps2:       1e-15,
	}

	// singular normal equations panic inside lm
	defer func() {
		if r := recover(); r != nil {
			log.Printf("LM solve panicked: %v", r)
			err = &SingularMatrixError{Pivot: math.NaN()}
		}
	}()

	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("solve cancelled: %w", err)
	}
	res, lmErr := lm.LM(problem, &lm.Settings{Iterations: cfg.MaxIterations, ObjectiveTol: cfg.Tolerance * cfg.Tolerance * 1e-4})
	if lmErr != nil {
		log.Printf("LM solve failed: %v", lmErr)
		return s.finish(st, iterations, cfg, LevenbergMarquardt)
	}
	if len(res.X) == 3 {
		st.set(res.X)
	}
	return s.finish(st, iterations, cfg, LevenbergMarquardt)
}

// bfgs minimizes ½‖mismatch‖² with gonum's BFGS using the analytic
// gradient -Jᵀ·mismatch.
func (s *Solver) bfgs(ctx context.Context, st *state, cfg Settings) (int, float64, error) {
	if !cfg.Quiet {
		log.Println("BFGS Solve Mode")
	}
	mis := make([]float64, 3)
	objective := func(x []float64) float64 {
		st.mismatchAt(mis, x)
		return 0.5 * floats.Dot(mis, mis)
	}
	grad := func(grad, x []float64) {
		trial := st.at(x)
		p, q := Injections(trial.voltages(), trial.y)
		r := make([]float64, 3)
		trial.mismatch(r, p, q)
		j := jacobian(trial.vm, trial.va, p, q, trial.y)
		g := mat.NewVecDense(3, grad)
		g.MulVec(j.T(), mat.NewVecDense(3, r))
		g.ScaleVec(-1, g)
	}

	problem := optimize.Problem{
		Func: objective,
		Grad: grad,
	}
	settings := &optimize.Settings{
		GradientThreshold: 1e-18,
		MajorIterations:   cfg.MaxIterations,
	}

	if err := ctx.Err(); err != nil {
		return 0, 0, fmt.Errorf("solve cancelled: %w", err)
	}
	res, err := optimize.Minimize(problem, st.unknowns(), settings, &optimize.BFGS{})
	if err != nil {
		log.Printf("BFGS solve error: %v", err)
	}
	iterations := cfg.MaxIterations
	if res != nil {
		st.set(res.X)
		iterations = res.MajorIterations
	}
	return s.finish(st, iterations, cfg, BFGS)
}

// finish applies the common convergence test to the state left by an
// optimizer-based method.
func (s *Solver) finish(st *state, iterations int, cfg Settings, method string) (int, float64, error) {
	mis := make([]float64, 3)
	p, q := Injections(st.voltages(), st.y)
	st.mismatch(mis, p, q)
	worst := floats.Norm(mis, math.Inf(1))
	if !(worst < cfg.Tolerance) {
		return iterations, worst, &ConvergenceError{Iterations: iterations, Mismatch: worst, Method: method}
	}
	return iterations, worst, nil
}
