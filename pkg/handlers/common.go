package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

// ProcessorFunc solves one case
type ProcessorFunc func(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings) (*goloadflow.Result, error)

// SweepFunc solves one case at several PQ loads
type SweepFunc func(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings, loadsMW []float64, workers int) []goloadflow.SweepPoint

// Error kinds reported to clients.
const (
	KindConfiguration = "configuration"
	KindConvergence   = "convergence"
	KindSingular      = "singular_matrix"
	KindCancelled     = "cancelled"
	KindInternal      = "internal"
)

// classify maps a solve error to an HTTP status and its JSON payload.
func classify(err error) (int, *models.ErrorPayload) {
	payload := &models.ErrorPayload{Message: err.Error()}

	var (
		cfgErr   *goloadflow.ConfigurationError
		convErr  *goloadflow.ConvergenceError
		singular *goloadflow.SingularMatrixError
	)
	switch {
	case errors.As(err, &cfgErr):
		payload.Kind = KindConfiguration
		return http.StatusUnprocessableEntity, payload
	case errors.As(err, &convErr):
		payload.Kind = KindConvergence
		payload.Iterations = convErr.Iterations
		payload.Mismatch = sanitize(convErr.Mismatch)
		return http.StatusUnprocessableEntity, payload
	case errors.As(err, &singular):
		payload.Kind = KindSingular
		payload.Step = singular.Step
		return http.StatusUnprocessableEntity, payload
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		payload.Kind = KindCancelled
		return http.StatusServiceUnavailable, payload
	}
	payload.Kind = KindInternal
	return http.StatusInternalServerError, payload
}

// settingsFor applies the method and linear query overrides to base.
func settingsFor(r *http.Request, base goloadflow.Settings) goloadflow.Settings {
	q := r.URL.Query()
	if m := q.Get("method"); m != "" {
		base.Method = m
	}
	if l := q.Get("linear"); l != "" {
		base.LinearSolver = l
	}
	return base
}

// setupCORS sets up CORS headers
func setupCORS(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// preflight handles OPTIONS and rejects anything but POST. It reports
// whether the request should be processed further.
func preflight(w http.ResponseWriter, r *http.Request) bool {
	setupCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
