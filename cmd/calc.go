package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vetref/electrolyte-cli/internal/dosing"
)

var calcJSON bool

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Run one electrolyte calculator",
}

// patientFlags are the patient description flags shared by every
// calculator. Numbers are kept as text so "12,5" is accepted.
type patientFlags struct {
	species       string
	weight        string
	state         string
	evolution     string
	comorbidities []string
}

func (p *patientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.species, "species", "", "dog or cat (cão, gato)")
	cmd.Flags().StringVar(&p.weight, "weight", "", "body weight in kg")
	cmd.Flags().StringVar(&p.state, "state", "", "physiological state: adult, puppy, senior, pregnant, lactating")
	cmd.Flags().StringVar(&p.evolution, "evolution", "", "acute or chronic")
	cmd.Flags().StringSliceVar(&p.comorbidities, "comorbidities", nil,
		"cardiopathy, hepatopathy, nephropathy, septic, endocrinopathy")
}

func (p *patientFlags) fields() dosing.PatientFields {
	return dosing.PatientFields{
		Species:       p.species,
		WeightKg:      dosingNumber(p.weight),
		State:         p.state,
		Evolution:     p.evolution,
		Comorbidities: p.comorbidities,
	}
}

func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

func newCalcCmd(el dosing.Electrolyte) *cobra.Command {
	var p patientFlags
	raw := make(map[string]*string)

	cmd := &cobra.Command{
		Use:     string(el),
		Aliases: el.Aliases(),
		Short:   fmt.Sprintf("Compute the %s plan", el),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate("calc"); err != nil {
				return err
			}
			ctx := cmd.Context()

			loader, closeFn, err := newLoader(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			values := make(dosing.Values, len(raw))
			for name, v := range raw {
				values[name] = dosingNumber(*v)
			}
			res, err := dosing.New(loader, engineOptions(cfg)).Evaluate(ctx, dosing.Request{
				Electrolyte: string(el),
				Patient:     p.fields(),
				Values:      values,
			})
			if err != nil {
				return err
			}
			if calcJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	p.register(cmd)
	for _, f := range el.Fields() {
		help := f.Help
		if f.Unit != "" {
			help += " (" + f.Unit + ")"
		}
		if f.Required() {
			help += ", required"
		}
		raw[f.Name] = cmd.Flags().String(flagName(f.Name), "", help)
	}
	return cmd
}

func init() {
	calcCmd.PersistentFlags().BoolVar(&calcJSON, "json", false, "print the full result as JSON")
	for _, el := range dosing.All {
		calcCmd.AddCommand(newCalcCmd(el))
	}
	rootCmd.AddCommand(calcCmd)
}
