package processing

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() goloadflow.Settings {
	s := goloadflow.DefaultSettings()
	s.Quiet = true
	return s
}

func TestProcessReferenceCase(t *testing.T) {
	req := models.DefaultRequest()
	req.ID = "ref"

	res, err := NewProcessor().Process(context.Background(), req, quiet())
	require.NoError(t, err)
	assert.InDelta(t, 0.957761, res.Buses[2].Magnitude, 1e-5)
}

func TestProcessQuietLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	_, err := NewProcessor().Process(context.Background(), models.DefaultRequest(), quiet())
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	verbose := quiet()
	verbose.Quiet = false
	_, err = NewProcessor().Process(context.Background(), models.DefaultRequest(), verbose)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Processing time")
}

func TestProcessWrapsSolverErrors(t *testing.T) {
	req := models.DefaultRequest()
	req.ID = "heavy"
	req.OperatingPoint.PQRealPower = -10000

	_, err := NewProcessor().Process(context.Background(), req, quiet())
	var conv *goloadflow.ConvergenceError
	require.True(t, errors.As(err, &conv))
	assert.Equal(t, 50, conv.Iterations)
	assert.Contains(t, err.Error(), "case heavy")
}

func TestProcessRejectsEmptyCase(t *testing.T) {
	_, err := NewProcessor().Process(context.Background(), models.SolveRequest{}, quiet())
	var cfgErr *goloadflow.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestProcessorSweep(t *testing.T) {
	points := NewProcessor().Sweep(context.Background(), models.DefaultRequest(), quiet(), []float64{-40, -80}, 2)
	require.Len(t, points, 2)
	for _, p := range points {
		require.NoError(t, p.Err)
	}
	assert.Greater(t, points[0].Result.Buses[2].Magnitude, points[1].Result.Buses[2].Magnitude)
}

func TestProcessorFunc(t *testing.T) {
	fn := NewProcessor().ProcessorFunc()
	res, err := fn(context.Background(), models.DefaultRequest(), quiet())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Iterations)
}
