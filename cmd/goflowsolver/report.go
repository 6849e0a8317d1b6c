package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/kacperjurak/goloadflow"
	"github.com/kacperjurak/goloadflow/pkg/models"
)

func readCase(path string) (models.SolveRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.SolveRequest{}, err
	}
	defer f.Close()

	var req models.SolveRequest
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return models.SolveRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if req.ID == "" {
		req.ID = path
	}
	return req, nil
}

func printResult(out io.Writer, req models.SolveRequest, res *goloadflow.Result) {
	fmt.Fprintf(out, "Converged in %d iterations (%s), max mismatch %.3e p.u.\n\n", res.Iterations, res.Method, res.Mismatch)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Bus\tType\t|V| p.u.\tAngle deg\tP MW\tQ MVAr\t")
	for _, b := range res.Buses {
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.3f\t%.3f\t\n", b.ID, b.Type, b.Magnitude, b.Angle, b.P, b.Q)
	}
	tw.Flush()

	fmt.Fprintf(out, "\nSlack: P = %.3f MW, Q = %.3f MVAr\n", res.SlackRealPower, res.SlackReactivePower)
	fmt.Fprintf(out, "PV:    Q = %.3f MVAr\n\n", res.PVReactivePower)

	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "From\tTo\tP MW\tQ MVAr\tLoss MW\tLoss MVAr\t")
	for _, br := range res.Branches {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.4f\t%.4f\t\n", br.From, br.To, br.PForward, br.QForward, br.LossP, br.LossQ)
	}
	tw.Flush()

	lossP, lossQ := res.TotalLoss()
	fmt.Fprintf(out, "\nTotal losses: %.4f MW, %.4f MVAr (base %.0f MVA)\n", lossP, lossQ, req.BaseMVA)
}

func printSweep(out io.Writer, points []goloadflow.SweepPoint) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Load MW\t|V| PQ\tSlack MW\tLoss MW\tIter\t")
	for _, p := range points {
		if p.Err != nil {
			fmt.Fprintf(tw, "%.2f\t-\t-\t-\t%s\t\n", p.LoadMW, failure(p.Err))
			continue
		}
		lossP, _ := p.Result.TotalLoss()
		fmt.Fprintf(tw, "%.2f\t%.4f\t%.3f\t%.4f\t%d\t\n",
			p.LoadMW, p.Result.Weakest().Magnitude, p.Result.SlackRealPower, lossP, p.Result.Iterations)
	}
	tw.Flush()

	if last, ok := goloadflow.LastConverged(points); ok {
		fmt.Fprintf(out, "\nHeaviest converged load: %.2f MW\n", last.LoadMW)
	} else {
		fmt.Fprintln(out, "\nNo point converged")
	}
}

func failure(err error) string {
	var (
		conv     *goloadflow.ConvergenceError
		singular *goloadflow.SingularMatrixError
		cfgErr   *goloadflow.ConfigurationError
	)
	switch {
	case errors.As(err, &conv):
		return "diverged"
	case errors.As(err, &singular):
		return "singular"
	case errors.As(err, &cfgErr):
		return "invalid"
	}
	return "failed"
}
