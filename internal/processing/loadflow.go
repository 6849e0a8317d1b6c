package processing

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

// Processor runs load-flow cases
type Processor struct{}

// NewProcessor creates a new load-flow processor
func NewProcessor() *Processor {
	return &Processor{}
}

// Process validates and solves one case with the given settings
func (p *Processor) Process(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings) (*goloadflow.Result, error) {
	if len(req.Buses) == 0 {
		return nil, &goloadflow.ConfigurationError{Reason: "no buses provided"}
	}
	if len(req.Branches) == 0 {
		return nil, &goloadflow.ConfigurationError{Reason: "no branches provided"}
	}

	solver := goloadflow.NewSolver(req.Network(), req.Point())
	solver.Settings = settings

	if !settings.Quiet {
		log.Printf("⚡ Solving case %s: %d buses, %d branches, method %s", req.ID, len(req.Buses), len(req.Branches), methodName(settings))
	}

	startTime := time.Now()
	res, err := solver.Solve(ctx)
	duration := time.Since(startTime)

	if err != nil {
		log.Printf("Load flow FAILED - case %s: %v (%v)", req.ID, err, duration)
		return nil, fmt.Errorf("case %s: %w", req.ID, err)
	}

	if !settings.Quiet {
		lossP, _ := res.TotalLoss()
		log.Printf("Load flow completed - case %s: %d iterations, mismatch %.3e, losses %.3f MW", req.ID, res.Iterations, res.Mismatch, lossP)
		log.Printf("Processing time: %v", duration)
	}
	return res, nil
}

// Sweep solves req at each PQ load, at most workers at a time
func (p *Processor) Sweep(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings, loadsMW []float64, workers int) []goloadflow.SweepPoint {
	solver := goloadflow.NewSolver(req.Network(), req.Point())
	solver.Settings = settings

	startTime := time.Now()
	points := goloadflow.Sweep(ctx, solver, loadsMW, workers)
	log.Printf("📈 Sweep of %d loads for case %s took %v", len(loadsMW), req.ID, time.Since(startTime))
	return points
}

// ProcessorFunc creates a function compatible with the worker pool
func (p *Processor) ProcessorFunc() func(ctx context.Context, req models.SolveRequest, settings goloadflow.Settings) (*goloadflow.Result, error) {
	return p.Process
}

func methodName(s goloadflow.Settings) string {
	if s.Method == "" {
		return goloadflow.NewtonRaphson
	}
	return s.Method
}
