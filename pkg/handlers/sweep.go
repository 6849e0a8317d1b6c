package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/internal/utils"
	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

const maxSweepPoints = 1000

// SweepHandler solves one case across a list of PQ loads
type SweepHandler struct {
	config *config.Config
	sweep  SweepFunc
}

// NewSweepHandler creates a new sweep handler
func NewSweepHandler(cfg *config.Config, sweep SweepFunc) *SweepHandler {
	return &SweepHandler{config: cfg, sweep: sweep}
}

// ServeHTTP implements the http.Handler interface
func (h *SweepHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	var req models.SweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(req.LoadsMW) == 0 {
		writeError(w, "No loads provided for sweep", http.StatusBadRequest)
		return
	}
	if len(req.LoadsMW) > maxSweepPoints {
		writeError(w, "Too many sweep points", http.StatusBadRequest)
		return
	}
	if req.Case.ID == "" {
		req.Case.ID = utils.GenerateID()
	}
	workers := req.Workers
	if workers <= 0 {
		workers = h.config.Workers
	}

	settings := settingsFor(r, h.config.Settings())
	settings.Quiet = true
	points := h.sweep(r.Context(), req.Case, settings, req.LoadsMW, workers)

	resp := models.SweepResponse{
		RequestID: req.Case.ID,
		Points:    make([]models.SweepPointPayload, len(points)),
	}
	for i, p := range points {
		resp.Points[i] = pointPayload(p)
	}
	if last, ok := goloadflow.LastConverged(points); ok {
		load := last.LoadMW
		resp.LastConverged = &load
	}

	writeJSON(w, http.StatusOK, resp)
}

func pointPayload(p goloadflow.SweepPoint) models.SweepPointPayload {
	out := models.SweepPointPayload{LoadMW: p.LoadMW}
	if p.Err != nil {
		_, out.Error = classify(p.Err)
		return out
	}
	lossP, _ := p.Result.TotalLoss()
	out.Converged = true
	out.Voltage = p.Result.Buses[len(p.Result.Buses)-1].Magnitude
	out.SlackP = p.Result.SlackRealPower
	out.LossP = lossP
	return out
}
