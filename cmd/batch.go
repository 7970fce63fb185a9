package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vetref/electrolyte-cli/internal/dosing"
	"github.com/vetref/electrolyte-cli/internal/export"
	"github.com/vetref/electrolyte-cli/internal/input"
)

var (
	batchFile string
	batchOut  string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate every row of a CSV or XLSX file",
	Long: "Each row names an electrolyte, the patient (species, weight_kg, physiological_state, comorbidities, " +
		"evolution) and the calculator's lab values as columns. Rows that fail validation are reported in the " +
		"output, not fatal.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		in, err := export.ReadFile(batchFile)
		if err != nil {
			return eris.Wrap(err, "batch: read input")
		}

		loader, closeFn, err := newLoader(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		engine := dosing.New(loader, engineOptions(cfg))
		rows, err := processBatch(ctx, in.Records(), cfg.Batch.MaxConcurrent, engine.Evaluate)
		if err != nil {
			return err
		}

		out := resultTable(rows)
		if batchOut == "" {
			return export.WriteCSV(cmd.OutOrStdout(), out)
		}
		if err := export.WriteFile(batchOut, out); err != nil {
			return eris.Wrap(err, "batch: write output")
		}
		zap.L().Info("batch: results written", zap.String("path", batchOut))
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "input .csv or .xlsx")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output .csv or .xlsx (default: CSV on stdout)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// evaluateFunc is the callback signature for evaluating one request.
type evaluateFunc func(ctx context.Context, req dosing.Request) (*dosing.Result, error)

// batchRow is the outcome of one input row; exactly one of Result and Err
// is set.
type batchRow struct {
	Line   int
	Result *dosing.Result
	Err    error
}

// processBatch evaluates records concurrently. Individual failures are
// recorded on their row; only a cancelled context aborts the batch.
func processBatch(ctx context.Context, records []map[string]string, concurrency int, evaluate evaluateFunc) ([]batchRow, error) {
	rows := make([]batchRow, len(records))
	if len(records) == 0 {
		zap.L().Info("batch: no rows")
		return rows, nil
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(records)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, rec := range records {
		// line 1 is the header
		rows[i].Line = i + 2
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := evaluate(gctx, batchRequest(rec))
			if err != nil {
				failed.Add(1)
				rows[i].Err = err
				zap.L().Warn("batch: row failed", zap.Int("line", rows[i].Line), zap.Error(err))
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			rows[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return rows, nil
}

// column returns the first non-empty value among names.
func column(rec map[string]string, names ...string) string {
	for _, n := range names {
		if v := rec[n]; v != "" {
			return v
		}
	}
	return ""
}

// batchRequest maps one record to a request. Comorbidities may be separated
// by commas or semicolons; every column that is not a patient field is
// passed through as a lab value.
func batchRequest(rec map[string]string) dosing.Request {
	req := dosing.Request{
		Electrolyte: column(rec, "electrolyte", "eletrolito"),
		Patient: dosing.PatientFields{
			Species:   column(rec, "species", "especie"),
			WeightKg:  input.Number(column(rec, "weight_kg", "weight", "peso")),
			State:     column(rec, "physiological_state", "state", "estado"),
			Evolution: column(rec, "evolution", "evolucao"),
		},
		Values: dosing.Values{},
	}
	if c := column(rec, "comorbidities", "comorbidades"); c != "" {
		req.Patient.Comorbidities = []string{strings.ReplaceAll(c, ";", ",")}
	}
	for k, v := range rec {
		req.Values[k] = input.Number(v)
	}
	return req
}

var resultHeader = []string{"line", "id", "electrolyte", "species", "weight_kg", "status", "severity", "summary", "warnings", "error"}

func resultTable(rows []batchRow) export.Table {
	t := export.Table{Header: resultHeader, Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		line := strconv.Itoa(r.Line)
		if r.Err != nil {
			t.Rows = append(t.Rows, []string{line, "", "", "", "", "", "", "", "", rowError(r.Err)})
			continue
		}
		res := r.Result
		status, severity := "", ""
		if c := res.Classification; c != nil {
			status, severity = string(c.Status), string(c.Severity)
		}
		t.Rows = append(t.Rows, []string{
			line,
			res.ID,
			string(res.Electrolyte),
			string(res.Patient.Species()),
			strconv.FormatFloat(res.Patient.WeightKg(), 'f', -1, 64),
			status,
			severity,
			res.Summary,
			strings.Join(res.Warnings, "; "),
			"",
		})
	}
	return t
}

// rowError lists field errors compactly and falls back to the message.
func rowError(err error) string {
	var fe input.FieldErrors
	if errors.As(err, &fe) {
		parts := make([]string, 0, len(fe))
		for _, f := range fe {
			parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Reason))
		}
		return strings.Join(parts, "; ")
	}
	return err.Error()
}
