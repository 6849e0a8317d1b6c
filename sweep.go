package goloadflow

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// SweepPoint is the outcome of one solve in a load sweep.
type SweepPoint struct {
	LoadMW float64
	Result *Result
	Err    error
}

// Sweep re-solves base with the PQ real power set to each of loadsMW.
// Points are solved on independent clones, at most workers at a time, and
// a failed point does not stop the others. Points come back in input order.
func Sweep(ctx context.Context, base *Solver, loadsMW []float64, workers int) []SweepPoint {
	if workers <= 0 {
		workers = 1
	}
	points := make([]SweepPoint, len(loadsMW))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, load := range loadsMW {
		i, load := i, load
		g.Go(func() error {
			s := base.Clone()
			s.Point.PQRealPower = load
			s.Settings.Quiet = true
			res, err := s.Solve(ctx)
			points[i] = SweepPoint{LoadMW: load, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if !base.Settings.Quiet {
		log.Printf("Sweep finished: %d points, %d workers", len(points), workers)
	}
	return points
}

// LastConverged returns the converged point with the largest absolute load,
// an estimate of the transfer limit. ok is false when nothing converged.
func LastConverged(points []SweepPoint) (SweepPoint, bool) {
	var (
		best SweepPoint
		ok   bool
	)
	for _, p := range points {
		if p.Err != nil {
			continue
		}
		if !ok || abs(p.LoadMW) > abs(best.LoadMW) {
			best = p
			ok = true
		}
	}
	return best, ok
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
