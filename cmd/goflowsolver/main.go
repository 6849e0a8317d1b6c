package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/internal/processing"
	"github.com/kacperjurak/goloadflow/pkg/config"
	"github.com/kacperjurak/goloadflow/pkg/models"
	"github.com/kacperjurak/goloadflow/pkg/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if err := config.LoadEnv(cfg, nil); err != nil {
		return err
	}
	if cfg.Quiet {
		log.SetOutput(io.Discard)
	}

	if cfg.HTTPServer {
		return serve(ctx, cfg)
	}

	req := models.DefaultRequest()
	if cfg.File != "" {
		if req, err = readCase(cfg.File); err != nil {
			return err
		}
	}

	processor := processing.NewProcessor()
	settings := cfg.Settings()

	if len(cfg.Loads) > 0 {
		settings.Quiet = true
		points := processor.Sweep(ctx, req, settings, []float64(cfg.Loads), cfg.Workers)
		printSweep(stdout, points)
		return nil
	}

	res, err := processor.Process(ctx, req, settings)
	if err != nil {
		var conv *goloadflow.ConvergenceError
		if errors.As(err, &conv) {
			fmt.Fprintf(stdout, "No convergence after %d iterations, max mismatch %.3e p.u.\n", conv.Iterations, conv.Mismatch)
		}
		return err
	}
	printResult(stdout, req, res)
	return nil
}

func parseFlags(args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	fs := flag.NewFlagSet("goflowsolver", flag.ContinueOnError)

	fs.StringVar(&cfg.File, "f", "", "Case file (JSON); the built-in 3-bus case when empty")
	fs.StringVar(&cfg.Method, "method", cfg.Method, "Solve method: nr, lm or bfgs")
	fs.StringVar(&cfg.LinearSolver, "linear", cfg.LinearSolver, "Linear solver: gauss, lu or sparse")
	fs.Float64Var(&cfg.Tolerance, "tol", cfg.Tolerance, "Mismatch tolerance (p.u.)")
	fs.IntVar(&cfg.MaxIterations, "maxiter", cfg.MaxIterations, "Iteration cap")
	fs.BoolVar(&cfg.NumericJacobian, "numjac", false, "Finite-difference Jacobian")
	fs.Var(&cfg.Loads, "load", "PQ real power in MW for a sweep (repeatable)")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent solves in a sweep")
	fs.BoolVar(&cfg.HTTPServer, "http", false, "Start HTTP server instead")
	fs.BoolVar(&cfg.Quiet, "q", false, "Quiet mode")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	scfg := config.DefaultServerConfig()
	if err := config.LoadEnv(nil, scfg); err != nil {
		return err
	}
	srv, err := server.New(server.Options{Config: cfg, ServerConfig: scfg})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("🛑 Received shutdown signal...")
	return shutdown(srv)
}

func shutdown(srv *server.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
