package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/internal/utils"
	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

// SolveHandler solves a single case synchronously. Converged results are
// cached by case and settings.
type SolveHandler struct {
	config    *config.Config
	processor ProcessorFunc
	cache     *lru.Cache[string, *goloadflow.Result]
}

// NewSolveHandler creates a new solve handler. A cacheSize of zero or less
// disables caching.
func NewSolveHandler(cfg *config.Config, processor ProcessorFunc, cacheSize int) (*SolveHandler, error) {
	h := &SolveHandler{config: cfg, processor: processor}
	if cacheSize > 0 {
		cache, err := lru.New[string, *goloadflow.Result](cacheSize)
		if err != nil {
			return nil, err
		}
		h.cache = cache
	}
	return h, nil
}

// ServeHTTP implements the http.Handler interface
func (h *SolveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	var req models.SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		req.ID = utils.GenerateID()
	}
	settings := settingsFor(r, h.config.Settings())

	startTime := time.Now()
	key := cacheKey(req, settings)
	if h.cache != nil {
		if res, ok := h.cache.Get(key); ok {
			writeJSON(w, http.StatusOK, models.SolveResponse{
				RequestID: req.ID,
				Success:   true,
				Cached:    true,
				Result:    res,
				ElapsedMS: elapsedMS(startTime),
			})
			return
		}
	}

	res, err := h.processor(r.Context(), req, settings)
	if err != nil {
		status, payload := classify(err)
		writeJSON(w, status, models.SolveResponse{
			RequestID: req.ID,
			Error:     payload,
			ElapsedMS: elapsedMS(startTime),
		})
		return
	}

	if h.cache != nil {
		h.cache.Add(key, res)
	}
	if !h.config.Quiet {
		log.Printf("HTTP solve - ID: %s, iterations: %d, %.2f ms", req.ID, res.Iterations, elapsedMS(startTime))
	}
	writeJSON(w, http.StatusOK, models.SolveResponse{
		RequestID: req.ID,
		Success:   true,
		Result:    res,
		ElapsedMS: elapsedMS(startTime),
	})
}

// CacheLen returns the number of cached results.
func (h *SolveHandler) CacheLen() int {
	if h.cache == nil {
		return 0
	}
	return h.cache.Len()
}

// cacheKey hashes everything that affects the result; the request ID is excluded.
func cacheKey(req models.SolveRequest, settings goloadflow.Settings) string {
	req.ID = ""
	settings.Quiet = false
	data, _ := json.Marshal(struct {
		Case     models.SolveRequest
		Settings goloadflow.Settings
	}{req, settings})
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
