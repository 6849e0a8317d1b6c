package goloadflow

import (
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/mat"
)

type BusType int

const (
	Slack BusType = iota
	PV
	PQ
)

func (t BusType) String() string {
	switch t {
	case Slack:
		return "slack"
	case PV:
		return "pv"
	case PQ:
		return "pq"
	}
	return fmt.Sprintf("BusType(%d)", int(t))
}

func (t BusType) MarshalText() ([]byte, error) {
	switch t {
	case Slack, PV, PQ:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown bus type %d", int(t))
}

func (t *BusType) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "slack", "swing", "ref":
		*t = Slack
	case "pv", "gen":
		*t = PV
	case "pq", "load":
		*t = PQ
	default:
		return fmt.Errorf("unknown bus type %q", string(text))
	}
	return nil
}

// Bus is a network node. Its role decides which quantities are known.
type Bus struct {
	ID   string  `json:"id"`
	Type BusType `json:"type"`
}

// Branch is a series R+jX element between two buses, in per-unit.
type Branch struct {
	From string  `json:"from"`
	To   string  `json:"to"`
	R    float64 `json:"r"`
	X    float64 `json:"x"`
}

// Network is the static topology of a solve.
type Network struct {
	Buses    []Bus
	Branches []Branch
	BaseMVA  float64
}

// Validate checks the fixed Slack/PV/PQ shape the solver is written for.
func (n *Network) Validate() error {
	if n.BaseMVA <= 0 || math.IsNaN(n.BaseMVA) || math.IsInf(n.BaseMVA, 0) {
		return configErrorf("base MVA must be positive, got %v", n.BaseMVA)
	}
	want := [...]BusType{Slack, PV, PQ}
	if len(n.Buses) != len(want) {
		return configErrorf("solver assumes exactly 3 buses (slack, pv, pq), got %d", len(n.Buses))
	}
	for i, b := range n.Buses {
		if b.Type != want[i] {
			return configErrorf("solver assumes bus %d is %s, bus %q is %s", i, want[i], b.ID, b.Type)
		}
	}
	return nil
}

// Admittance is the bus admittance matrix together with the bus index it
// was built against.
type Admittance struct {
	y      *mat.CDense
	index  map[string]int
	series []Complex
	ends   [][2]int
}

// BuildAdmittance stamps the series admittance of every branch into an
// N×N matrix. Buses are indexed in the order given.
func BuildAdmittance(buses []Bus, branches []Branch) (*Admittance, error) {
	if len(buses) == 0 {
		return nil, configErrorf("no buses")
	}
	index := make(map[string]int, len(buses))
	for i, b := range buses {
		if _, dup := index[b.ID]; dup {
			return nil, configErrorf("duplicate bus id %q", b.ID)
		}
		index[b.ID] = i
	}

	n := len(buses)
	a := &Admittance{
		y:      mat.NewCDense(n, n, nil),
		index:  index,
		series: make([]Complex, len(branches)),
		ends:   make([][2]int, len(branches)),
	}

	for k, br := range branches {
		i, ok := index[br.From]
		if !ok {
			return nil, configErrorf("branch %d references unknown bus %q", k, br.From)
		}
		j, ok := index[br.To]
		if !ok {
			return nil, configErrorf("branch %d references unknown bus %q", k, br.To)
		}
		if i == j {
			return nil, configErrorf("branch %d connects bus %q to itself", k, br.From)
		}
		if !finite(br.R) || !finite(br.X) {
			return nil, configErrorf("branch %d (%s-%s) has non-finite impedance", k, br.From, br.To)
		}
		y, err := Complex{br.R, br.X}.Inv()
		if err != nil {
			return nil, configErrorf("branch %d (%s-%s) has zero impedance", k, br.From, br.To)
		}

		a.series[k] = y
		a.ends[k] = [2]int{i, j}
		yc := y.Complex128()
		a.y.Set(i, i, a.y.At(i, i)+yc)
		a.y.Set(j, j, a.y.At(j, j)+yc)
		a.y.Set(i, j, a.y.At(i, j)-yc)
		a.y.Set(j, i, a.y.At(j, i)-yc)
	}
	return a, nil
}

// Size returns the number of buses.
func (a *Admittance) Size() int {
	r, _ := a.y.Dims()
	return r
}

func (a *Admittance) At(i, j int) Complex {
	return FromComplex128(a.y.At(i, j))
}

// Index returns the matrix position of a bus.
func (a *Admittance) Index(id string) (int, bool) {
	i, ok := a.index[id]
	return i, ok
}

// Series returns the series admittance of branch k and its end indices.
func (a *Admittance) Series(k int) (Complex, int, int) {
	return a.series[k], a.ends[k][0], a.ends[k][1]
}

// IsSymmetric reports whether Y[i][j] equals Y[j][i] within tol.
func (a *Admittance) IsSymmetric(tol float64) bool {
	n := a.Size()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if cmplx.Abs(a.y.At(i, j)-a.y.At(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
