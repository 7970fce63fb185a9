package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vetref/electrolyte-cli/internal/dosing"
	"github.com/vetref/electrolyte-cli/internal/input"
)

func dosingNumber(s string) input.Number {
	return input.Number(strings.TrimSpace(s))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

// printResult renders a result for a terminal.
func printResult(w io.Writer, res *dosing.Result) {
	p := res.Patient
	fmt.Fprintf(w, "%s: %s, %g kg, %s, %s\n", res.Electrolyte, p.Species(), p.WeightKg(), p.State(), p.Evolution())
	if c := res.Classification; c != nil {
		if c.Abnormal() {
			fmt.Fprintf(w, "Status:    %s %s (%s)\n", c.Severity, c.Condition, c.Status)
		} else {
			fmt.Fprintf(w, "Status:    %s\n", c.Status)
		}
	}
	fmt.Fprintf(w, "Plan:      %s\n", res.Summary)
	if m := res.Modifiers; m != nil && (m.RateReductionPercent > 0 || m.VolumeReductionPercent > 0) {
		fmt.Fprintf(w, "Modifiers: rate -%g%%, volume -%g%% (%s)\n",
			m.RateReductionPercent, m.VolumeReductionPercent, strings.Join(m.Applied, ", "))
	}
	if m := res.Modifiers; m != nil {
		if len(m.FluidsToAvoid) > 0 {
			fmt.Fprintf(w, "Avoid:     %s\n", strings.Join(m.FluidsToAvoid, ", "))
		}
		if len(m.FluidsToPrefer) > 0 {
			fmt.Fprintf(w, "Prefer:    %s\n", strings.Join(m.FluidsToPrefer, ", "))
		}
		printList(w, "Advisories", m.Advisories)
	}
	printList(w, "Warnings", res.Warnings)
	printList(w, "References", res.Refs)
	if res.RulesetVersion != "" {
		fmt.Fprintf(w, "Ruleset:   %s\n", res.RulesetVersion)
	}
}
