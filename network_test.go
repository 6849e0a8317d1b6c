package goloadflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func referenceNetwork() Network {
	return Network{
		Buses: []Bus{
			{ID: "1", Type: Slack},
			{ID: "2", Type: PV},
			{ID: "3", Type: PQ},
		},
		Branches: []Branch{
			{From: "1", To: "2", R: 0.02, X: 0.06},
			{From: "1", To: "3", R: 0.08, X: 0.24},
			{From: "2", To: "3", R: 0.06, X: 0.18},
		},
		BaseMVA: 100,
	}
}

func TestBuildAdmittanceStamps(t *testing.T) {
	n := referenceNetwork()
	y, err := BuildAdmittance(n.Buses, n.Branches)
	require.NoError(t, err)
	require.Equal(t, 3, y.Size())

	// 1/(0.02+j0.06) = (0.02-j0.06)/0.004 = 5 - j15
	y12 := y.At(0, 1)
	assert.InDelta(t, -5.0, y12.Re, 1e-9)
	assert.InDelta(t, 15.0, y12.Im, 1e-9)

	// 1/(0.08+j0.24) = 1.25 - j3.75
	y11 := y.At(0, 0)
	assert.InDelta(t, 6.25, y11.Re, 1e-9)
	assert.InDelta(t, -18.75, y11.Im, 1e-9)

	series, i, j := y.Series(2)
	assert.Equal(t, 1, i)
	assert.Equal(t, 2, j)
	assert.InDelta(t, 0.06/(0.06*0.06+0.18*0.18), series.Re, 1e-9)

	idx, ok := y.Index("3")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestBuildAdmittanceSymmetricForRandomBranches(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		nb := 2 + rng.Intn(6)
		buses := make([]Bus, nb)
		for i := range buses {
			buses[i] = Bus{ID: fmt.Sprintf("b%d", i), Type: PQ}
		}
		var branches []Branch
		for k := 0; k < 1+rng.Intn(10); k++ {
			i := rng.Intn(nb)
			j := (i + 1 + rng.Intn(nb-1)) % nb
			branches = append(branches, Branch{
				From: buses[i].ID,
				To:   buses[j].ID,
				R:    rng.Float64() * 0.1,
				X:    0.01 + rng.Float64()*0.5,
			})
		}

		y, err := BuildAdmittance(buses, branches)
		require.NoError(t, err)
		assert.True(t, y.IsSymmetric(0), "trial %d", trial)

		// without shunts every row sums to zero
		for i := 0; i < nb; i++ {
			var sum Complex
			for j := 0; j < nb; j++ {
				sum = sum.Add(y.At(i, j))
			}
			assert.InDelta(t, 0, sum.Abs(), 1e-9)
		}
	}
}

func TestBuildAdmittanceParallelBranchesAccumulate(t *testing.T) {
	buses := []Bus{{ID: "a"}, {ID: "b"}}
	branches := []Branch{
		{From: "a", To: "b", R: 0, X: 0.2},
		{From: "b", To: "a", R: 0, X: 0.2},
	}
	y, err := BuildAdmittance(buses, branches)
	require.NoError(t, err)
	assert.InDelta(t, -10.0, y.At(0, 0).Im, 1e-12)
	assert.InDelta(t, 10.0, y.At(0, 1).Im, 1e-12)
}

func TestBuildAdmittanceTinyImpedance(t *testing.T) {
	buses := []Bus{{ID: "1"}, {ID: "2"}}
	y, err := BuildAdmittance(buses, []Branch{{From: "1", To: "2", R: 1e-170}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, y.At(0, 0).Re/1e170, 1e-12)
	assert.InDelta(t, -1.0, y.At(0, 1).Re/1e170, 1e-12)
}

func TestBuildAdmittanceRejects(t *testing.T) {
	buses := referenceNetwork().Buses
	tests := []struct {
		name     string
		buses    []Bus
		branches []Branch
	}{
		{"unknown to bus", buses, []Branch{{From: "1", To: "9", R: 0.1, X: 0.1}}},
		{"unknown from bus", buses, []Branch{{From: "x", To: "1", R: 0.1, X: 0.1}}},
		{"zero impedance", buses, []Branch{{From: "1", To: "2"}}},
		{"self loop", buses, []Branch{{From: "2", To: "2", R: 0.1, X: 0.1}}},
		{"duplicate bus", append([]Bus{{ID: "1"}}, buses...), nil},
		{"no buses", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, err := BuildAdmittance(tt.buses, tt.branches)
			assert.Nil(t, y)
			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestNetworkValidateTopology(t *testing.T) {
	n := referenceNetwork()
	require.NoError(t, n.Validate())

	swapped := referenceNetwork()
	swapped.Buses[1].Type, swapped.Buses[2].Type = PQ, PV
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, swapped.Validate(), &cfgErr)
	assert.Contains(t, cfgErr.Error(), "solver assumes")

	four := referenceNetwork()
	four.Buses = append(four.Buses, Bus{ID: "4", Type: PQ})
	assert.ErrorAs(t, four.Validate(), &cfgErr)

	noBase := referenceNetwork()
	noBase.BaseMVA = 0
	assert.ErrorAs(t, noBase.Validate(), &cfgErr)
}

func TestBusTypeJSON(t *testing.T) {
	var b Bus
	require.NoError(t, json.Unmarshal([]byte(`{"id":"g","type":"PV"}`), &b))
	assert.Equal(t, PV, b.Type)

	out, err := json.Marshal(Bus{ID: "s", Type: Slack})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"s","type":"slack"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"id":"g","type":"motor"}`), &b))
}
