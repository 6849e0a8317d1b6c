package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	var got models.WebhookResponse
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, true)
	err := c.Send(context.Background(), models.WebhookItem{
		RequestID:      "abc",
		Success:        true,
		TotalLossP:     4.35,
		WeakestBus:     "3",
		WeakestVoltage: math.NaN(),
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", got.ID)
	assert.True(t, got.Success)
	assert.Equal(t, 4.35, got.TotalLossP)
	assert.Equal(t, 0.0, got.WeakestVoltage)
	assert.NotEmpty(t, got.Time)
}

func TestClientSendHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, true).Send(context.Background(), models.WebhookItem{RequestID: "x"})
	assert.ErrorContains(t, err, "502")
}

func TestSummarize(t *testing.T) {
	res := &goloadflow.Result{
		Buses: []goloadflow.BusResult{
			{ID: "1", Magnitude: 1.05},
			{ID: "3", Magnitude: 0.95},
		},
		Branches: []goloadflow.BranchFlow{
			{LossP: 1, LossQ: 3},
			{LossP: 2, LossQ: 6},
		},
		SlackRealPower: 34,
		Iterations:     3,
	}
	item := Summarize(models.WorkResult{RequestID: "r", Iteration: 2, Result: res, Success: true})
	assert.Equal(t, "3", item.WeakestBus)
	assert.Equal(t, 0.95, item.WeakestVoltage)
	assert.Equal(t, 3.0, item.TotalLossP)
	assert.Equal(t, 9.0, item.TotalLossQ)
	assert.Equal(t, 2, item.Iteration)
	assert.Equal(t, 34.0, item.SlackRealPower)

	failed := Summarize(models.WorkResult{RequestID: "f", Err: errors.New("boom")})
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.Error)
	assert.Empty(t, failed.Buses)
}
