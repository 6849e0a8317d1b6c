package goloadflow

import "math"

// BusResult is the solved voltage and net injection of one bus.
type BusResult struct {
	ID        string  `json:"id"`
	Type      BusType `json:"type"`
	Magnitude float64 `json:"voltage_magnitude"` // p.u.
	Angle     float64 `json:"voltage_angle"`     // degrees
	P         float64 `json:"p_mw"`
	Q         float64 `json:"q_mvar"`
}

// BranchFlow is the power entering a branch at each end and the loss on it.
type BranchFlow struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	PForward float64 `json:"p_forward_mw"`
	QForward float64 `json:"q_forward_mvar"`
	PReverse float64 `json:"p_reverse_mw"`
	QReverse float64 `json:"q_reverse_mvar"`
	LossP    float64 `json:"loss_p_mw"`
	LossQ    float64 `json:"loss_q_mvar"`
}

// Result is the converged solution. Powers are in MW and MVAr.
type Result struct {
	Buses              []BusResult  `json:"buses"`
	SlackRealPower     float64      `json:"slack_real_power"`
	SlackReactivePower float64      `json:"slack_reactive_power"`
	PVReactivePower    float64      `json:"pv_reactive_power"`
	Branches           []BranchFlow `json:"branches"`
	Iterations         int          `json:"iterations"`
	Method             string       `json:"method"`
	Mismatch           float64      `json:"max_mismatch"` // p.u.
}

// TotalLoss sums the branch losses.
func (r *Result) TotalLoss() (p, q float64) {
	for _, b := range r.Branches {
		p += b.LossP
		q += b.LossQ
	}
	return p, q
}

// Balance returns the sum of bus real power injections minus the total
// real power loss, in MW. It is zero for a consistent solution.
func (r *Result) Balance() float64 {
	sum := 0.0
	for _, b := range r.Buses {
		sum += b.P
	}
	lossP, _ := r.TotalLoss()
	return sum - lossP
}

// Weakest returns the bus with the lowest voltage magnitude.
func (r *Result) Weakest() BusResult {
	var weakest BusResult
	low := math.Inf(1)
	for _, b := range r.Buses {
		if b.Magnitude < low {
			low = b.Magnitude
			weakest = b
		}
	}
	return weakest
}

// derive computes the reported quantities from converged phasors.
func derive(st *state, network Network) *Result {
	base := network.BaseMVA
	v := st.voltages()
	p, q := Injections(v, st.y)

	res := &Result{
		Buses:              make([]BusResult, len(network.Buses)),
		SlackRealPower:     p[slackBus] * base,
		SlackReactivePower: q[slackBus] * base,
		PVReactivePower:    q[pvBus] * base,
		Branches:           make([]BranchFlow, len(network.Branches)),
	}

	for i, b := range network.Buses {
		res.Buses[i] = BusResult{
			ID:        b.ID,
			Type:      b.Type,
			Magnitude: v[i].Abs(),
			Angle:     v[i].Arg() * 180 / math.Pi,
			P:         p[i] * base,
			Q:         q[i] * base,
		}
	}

	for k, br := range network.Branches {
		y, i, j := st.y.Series(k)
		current := v[i].Sub(v[j]).Mul(y)
		sij := v[i].Mul(current.Conj())
		sji := v[j].Mul(current.Neg().Conj())
		res.Branches[k] = BranchFlow{
			From:     br.From,
			To:       br.To,
			PForward: sij.Re * base,
			QForward: sij.Im * base,
			PReverse: sji.Re * base,
			QReverse: sji.Im * base,
			LossP:    (sij.Re + sji.Re) * base,
			LossQ:    (sij.Im + sji.Im) * base,
		}
	}
	return res
}
