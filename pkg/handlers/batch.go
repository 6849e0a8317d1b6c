package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/internal/utils"
	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/models"
	"github.com/kacperjurak/goloadflow/pkg/webhook"
	"github.com/kacperjurak/goloadflow/pkg/worker"
)

// BatchHandler accepts a batch of cases and solves them on the worker pool.
// Each result is reported through the pool's webhook queue.
type BatchHandler struct {
	config     *config.Config
	workerPool *worker.Pool
	// TimingFile receives one CSV row per batch when set.
	TimingFile string
	running    sync.WaitGroup
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(cfg *config.Config, pool *worker.Pool) *BatchHandler {
	return &BatchHandler{
		config:     cfg,
		workerPool: pool,
	}
}

// ServeHTTP implements the http.Handler interface
func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r) {
		return
	}

	var batch models.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Cases) == 0 {
		writeError(w, "No cases provided in batch", http.StatusBadRequest)
		return
	}
	if batch.BatchID == "" {
		batch.BatchID = utils.GenerateID()
	}

	log.Printf("🔄 Batch processing started - ID: %s, Cases: %d", batch.BatchID, len(batch.Cases))

	h.running.Add(1)
	go func() {
		defer h.running.Done()
		h.processBatchAsync(batch, settingsFor(r, h.config.Settings()))
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":  true,
		"batch_id": batch.BatchID,
		"cases":    len(batch.Cases),
		"message":  "Batch processing started with worker pool",
	})
}

// processBatchAsync submits every case and waits for all of them
func (h *BatchHandler) processBatchAsync(batch models.BatchRequest, settings goloadflow.Settings) {
	batchStartTime := time.Now()
	timings := make([]models.CaseTiming, len(batch.Cases))
	reply := make(chan models.WorkResult, len(batch.Cases))

	submitted := 0
	for i, item := range batch.Cases {
		req := item.Case
		if req.ID == "" {
			req.ID = fmt.Sprintf("%s_case_%03d", batch.BatchID, item.Iteration)
		}
		err := h.workerPool.SubmitJob(models.WorkItem{
			ID:        i,
			RequestID: req.ID,
			BatchID:   batch.BatchID,
			Iteration: item.Iteration,
			Case:      req,
			Settings:  settings,
			StartTime: time.Now(),
			Reply:     reply,
		})
		if err != nil {
			log.Printf("⚠️  Batch %s stopped after %d of %d cases: %v", batch.BatchID, submitted, len(batch.Cases), err)
			return
		}
		submitted++
	}

	for collected := 0; collected < submitted; collected++ {
		select {
		case result := <-reply:
			h.processResult(result, timings)
		case <-h.workerPool.Done():
			log.Printf("⚠️  Batch %s abandoned with %d of %d results: worker pool shut down", batch.BatchID, collected, submitted)
			return
		}
	}

	totalBatchTime := time.Since(batchStartTime)
	if h.TimingFile != "" {
		h.saveTimingResults(batch.BatchID, totalBatchTime, timings)
	}

	log.Printf("🎉 Batch processing completed - ID: %s, Total time: %v", batch.BatchID, totalBatchTime)
}

// Wait blocks until every accepted batch has finished or been abandoned.
func (h *BatchHandler) Wait() {
	h.running.Wait()
}

// processResult records timing and queues the webhook for one result
func (h *BatchHandler) processResult(result models.WorkResult, timings []models.CaseTiming) {
	timing := models.CaseTiming{
		Iteration:      result.Iteration,
		ProcessingTime: result.ProcessingTime,
		Success:        result.Success,
	}
	if result.Result != nil {
		timing.Iterations = result.Result.Iterations
		timing.Mismatch = result.Result.Mismatch
		timing.Method = result.Result.Method
	}
	timings[result.ID] = timing

	h.workerPool.QueueWebhook(webhook.Summarize(result))

	if !h.config.Quiet {
		log.Printf("✅ Processed case %d of batch %s (success: %v)", result.Iteration, result.BatchID, result.Success)
	}
}

// saveTimingResults appends batch statistics to the timing CSV
func (h *BatchHandler) saveTimingResults(batchID string, totalTime time.Duration, timings []models.CaseTiming) {
	var writeHeader bool
	if _, err := os.Stat(h.TimingFile); os.IsNotExist(err) {
		writeHeader = true
	}

	file, err := os.OpenFile(h.TimingFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("Error opening timing file: %v", err)
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if writeHeader {
		header := []string{
			"Timestamp",
			"BatchID",
			"TotalCases",
			"Workers",
			"TotalBatchTime_ms",
			"AvgCaseTime_ms",
			"MinCaseTime_ms",
			"MaxCaseTime_ms",
			"SuccessRate",
			"AvgIterations",
			"CasesPerSecond",
		}
		if err := writer.Write(header); err != nil {
			log.Printf("Error writing timing header: %v", err)
			return
		}
	}

	var totalCaseTime time.Duration
	var minTime, maxTime time.Duration = time.Hour, 0
	var successful, totalIterations int

	for _, timing := range timings {
		totalCaseTime += timing.ProcessingTime
		if timing.ProcessingTime < minTime {
			minTime = timing.ProcessingTime
		}
		if timing.ProcessingTime > maxTime {
			maxTime = timing.ProcessingTime
		}
		if timing.Success {
			successful++
			totalIterations += timing.Iterations
		}
	}

	numCases := len(timings)
	avgCaseTime := totalCaseTime / time.Duration(numCases)
	successRate := float64(successful) / float64(numCases) * 100
	avgIterations := 0.0
	if successful > 0 {
		avgIterations = float64(totalIterations) / float64(successful)
	}

	record := []string{
		time.Now().Format(time.RFC3339),
		batchID,
		fmt.Sprintf("%d", numCases),
		fmt.Sprintf("%d", h.workerPool.Workers()),
		fmt.Sprintf("%.3f", float64(totalTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.3f", float64(avgCaseTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.3f", float64(minTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.3f", float64(maxTime.Nanoseconds())/1e6),
		fmt.Sprintf("%.1f", successRate),
		fmt.Sprintf("%.2f", avgIterations),
		fmt.Sprintf("%.2f", float64(numCases)/totalTime.Seconds()),
	}

	if err := writer.Write(record); err != nil {
		log.Printf("Error writing timing record: %v", err)
		return
	}

	log.Printf("📊 Timing saved: %d cases, %d workers, %.2f ms total, %.1f%% success",
		numCases, h.workerPool.Workers(), float64(totalTime.Nanoseconds())/1e6, successRate)
}
