package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kacperjurak/goloadflow/internal/processing"
	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/handlers"
	"github.com/kacperjurak/goloadflow/pkg/profiling"
	"github.com/kacperjurak/goloadflow/pkg/webhook"
	"github.com/kacperjurak/goloadflow/pkg/worker"
)

// Server represents the HTTP server with all dependencies
type Server struct {
	config       *config.Config
	serverConfig *config.ServerConfig
	processor    *processing.Processor
	workerPool   *worker.Pool
	solveHandler *handlers.SolveHandler
	batchHandler *handlers.BatchHandler
	httpServer   *http.Server
	profiler     *profiling.Profiler
	middleware   *profiling.Middleware
}

// Options holds configuration for creating a new server
type Options struct {
	Config       *config.Config
	ServerConfig *config.ServerConfig
	// TimingFile, when set, receives batch timing rows.
	TimingFile string
}

// New creates a new server instance
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.ServerConfig == nil {
		opts.ServerConfig = config.DefaultServerConfig()
	}

	processor := processing.NewProcessor()

	poolOpts := worker.Options{
		Workers:   opts.ServerConfig.WorkerCount,
		Processor: processor.ProcessorFunc(),
		Quiet:     opts.Config.Quiet,
	}
	if opts.ServerConfig.WebhookURL != "" {
		poolOpts.Sender = webhook.NewClient(opts.ServerConfig.WebhookURL, opts.Config.Quiet)
	}

	solveHandler, err := handlers.NewSolveHandler(opts.Config, processor.ProcessorFunc(), opts.ServerConfig.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create solve handler: %w", err)
	}

	s := &Server{
		config:       opts.Config,
		serverConfig: opts.ServerConfig,
		processor:    processor,
		workerPool:   worker.New(poolOpts),
		solveHandler: solveHandler,
		profiler:     profiling.New(opts.ServerConfig),
		middleware:   profiling.NewMiddleware(opts.ServerConfig.EnableProfiling),
	}

	s.setupRoutes(opts.TimingFile)
	return s, nil
}

// setupRoutes configures HTTP routes and handlers
func (s *Server) setupRoutes(timingFile string) {
	mux := http.NewServeMux()

	s.batchHandler = handlers.NewBatchHandler(s.config, s.workerPool)
	s.batchHandler.TimingFile = timingFile
	sweepHandler := handlers.NewSweepHandler(s.config, s.processor.Sweep)

	mux.Handle("/loadflow", s.middleware.ProfiledHandler("loadflow-single", s.solveHandler))
	mux.Handle("/loadflow/batch", s.middleware.ProfiledHandler("loadflow-batch", s.batchHandler))
	mux.Handle("/loadflow/sweep", s.middleware.ProfiledHandler("loadflow-sweep", sweepHandler))
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/debug/gc", s.gcHandler)
	mux.HandleFunc("/debug/memory", s.memoryHandler)
	mux.HandleFunc("/debug/routes", s.routesHandler)

	s.httpServer = &http.Server{
		Addr:         ":" + s.serverConfig.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// healthHandler provides a simple health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().Format(time.RFC3339),
		"workers":        s.workerPool.Workers(),
		"cached_results": s.solveHandler.CacheLen(),
	})
}

// gcHandler triggers garbage collection and returns stats
func (s *Server) gcHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, profiling.ForceGC())
}

// memoryHandler logs and returns current memory statistics
func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	profiling.LogGCStats()
	writeJSON(w, profiling.GetGCStats())
}

// routesHandler returns per-route request statistics
func (s *Server) routesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.middleware.Stats())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

// Start starts the HTTP server and blocks until it stops. A clean
// Shutdown returns nil.
func (s *Server) Start() error {
	if err := s.profiler.Start(); err != nil {
		log.Printf("❌ Failed to start profiler: %v", err)
	}

	log.Println("🚀 Starting HTTP server on port", s.serverConfig.Port)
	log.Println("📡 Endpoints available:")
	log.Printf("  - Single: http://localhost:%s/loadflow", s.serverConfig.Port)
	log.Printf("  - Batch:  http://localhost:%s/loadflow/batch", s.serverConfig.Port)
	log.Printf("  - Sweep:  http://localhost:%s/loadflow/sweep", s.serverConfig.Port)
	log.Printf("  - Health: http://localhost:%s/health", s.serverConfig.Port)
	log.Printf("  - GC:     http://localhost:%s/debug/gc", s.serverConfig.Port)
	log.Printf("  - Memory: http://localhost:%s/debug/memory", s.serverConfig.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then stops the worker pool, waits for open batches to wind
// down and stops the profiler.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("🛑 Shutting down server...")

	httpErr := s.httpServer.Shutdown(ctx)
	if httpErr != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", httpErr)
	}

	s.workerPool.Shutdown()
	s.batchHandler.Wait()

	if err := s.profiler.Stop(); err != nil {
		log.Printf("⚠️ Profiler shutdown error: %v", err)
	}

	log.Println("✅ Server shutdown complete")
	return httpErr
}
