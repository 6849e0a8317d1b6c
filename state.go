package goloadflow

// state is the mutable voltage vector of one solve. It is owned by a
// single Solve call and never shared.
type state struct {
	y     *Admittance
	vm    []float64 // |V| p.u.
	va    []float64 // angle, radians
	sched [3]float64
}

func newState(y *Admittance, baseMVA float64, op OperatingPoint) *state {
	return &state{
		y:  y,
		vm: []float64{op.SlackVoltage, op.PVVoltage, 1.0},
		va: []float64{0, 0, 0},
		sched: [3]float64{
			op.PVRealPower / baseMVA,
			op.PQRealPower / baseMVA,
			op.PQReactivePower / baseMVA,
		},
	}
}

func (s *state) voltages() []Complex {
	v := make([]Complex, len(s.vm))
	for i := range s.vm {
		v[i] = FromPolar(s.vm[i], s.va[i])
	}
	return v
}

// unknowns returns (θ_pv, θ_pq, |V|_pq).
func (s *state) unknowns() []float64 {
	return []float64{s.va[pvBus], s.va[pqBus], s.vm[pqBus]}
}

func (s *state) set(x []float64) {
	s.va[pvBus] = x[0]
	s.va[pqBus] = x[1]
	s.vm[pqBus] = x[2]
}

func (s *state) apply(dx []float64) {
	s.va[pvBus] += dx[0]
	s.va[pqBus] += dx[1]
	s.vm[pqBus] += dx[2]
}

// at returns a copy of s with the unknowns replaced by x.
func (s *state) at(x []float64) *state {
	c := &state{
		y:     s.y,
		vm:    append([]float64(nil), s.vm...),
		va:    append([]float64(nil), s.va...),
		sched: s.sched,
	}
	c.set(x)
	return c
}

// mismatch fills dst with scheduled minus calculated (P_pv, P_pq, Q_pq).
func (s *state) mismatch(dst, p, q []float64) {
	dst[0] = s.sched[0] - p[pvBus]
	dst[1] = s.sched[1] - p[pqBus]
	dst[2] = s.sched[2] - q[pqBus]
}

// mismatchAt evaluates the mismatch at x without touching s.
func (s *state) mismatchAt(dst, x []float64) {
	t := s.at(x)
	p, q := Injections(t.voltages(), t.y)
	t.mismatch(dst, p, q)
}

// calculated evaluates (P_pv, P_pq, Q_pq) at x without touching s.
func (s *state) calculated(dst, x []float64) {
	t := s.at(x)
	p, q := Injections(t.voltages(), t.y)
	dst[0] = p[pvBus]
	dst[1] = p[pqBus]
	dst[2] = q[pqBus]
}
