package goloadflow

// Injections computes the net complex power injected at every bus,
// S_i = V_i·conj(Σ_j Y_ij·V_j), and returns its real and imaginary parts
// in per-unit.
func Injections(v []Complex, y *Admittance) (p, q []float64) {
	n := y.Size()
	if len(v) != n {
		panic("injections: voltage vector length mismatch")
	}
	p = make([]float64, n)
	q = make([]float64, n)
	for i := 0; i < n; i++ {
		var current Complex
		for j := 0; j < n; j++ {
			current = current.Add(y.At(i, j).Mul(v[j]))
		}
		s := v[i].Mul(current.Conj())
		p[i] = s.Re
		q[i] = s.Im
	}
	return p, q
}
