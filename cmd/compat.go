package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/compat"
)

var (
	compatAdditive  string
	compatFluid     string
	compatConflicts bool
	compatJSON      bool
)

var compatCmd = &cobra.Command{
	Use:   "compat",
	Short: "Check whether an additive may be mixed into a base fluid",
	Long: "With --additive and --fluid prints the verdict for the pair. With only --additive lists the " +
		"base fluids it is compatible with. With neither lists the catalog.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog(cmd.Context())
		if err != nil {
			return err
		}
		return runCompat(cmd.OutOrStdout(), catalog)
	},
}

// loadCatalog resolves the compatibility catalog against the ruleset's
// fluids, falling back to the built-in registry when no ruleset loads.
func loadCatalog(ctx context.Context) (*compat.Catalog, error) {
	loader, closeFn, err := newLoader(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	rs, err := loader.Load(ctx)
	if err != nil {
		zap.L().Warn("compat: using built-in fluids", zap.Error(err))
		return compat.Default()
	}
	return compat.Load(rs.FluidRegistry())
}

func runCompat(w io.Writer, catalog *compat.Catalog) error {
	switch {
	case compatConflicts:
		conflicts := catalog.Conflicts()
		if compatJSON {
			return printJSON(w, conflicts)
		}
		if len(conflicts) == 0 {
			fmt.Fprintln(w, "no conflicting pairs")
		}
		for _, c := range conflicts {
			fmt.Fprintf(w, "%s + %s listed as both compatible and incompatible\n", c.Additive, c.Fluid)
		}
		return nil

	case compatAdditive == "":
		if compatJSON {
			return printJSON(w, catalog.Additives())
		}
		for _, a := range catalog.Additives() {
			fmt.Fprintf(w, "%-20s %s\n", a.ID, a.Name)
		}
		return nil

	case compatFluid == "":
		a, ok := catalog.Additive(compatAdditive)
		if !ok {
			return eris.Errorf("compat: unknown additive %q", compatAdditive)
		}
		fluids := catalog.FluidsFor(compatAdditive)
		if compatJSON {
			return printJSON(w, map[string]any{"additive": a, "compatible_fluids": fluids})
		}
		fmt.Fprintf(w, "%s: compatible with %s\n", a.Name, strings.Join(fluids, ", "))
		printList(w, "Warnings", a.Warnings)
		return nil
	}

	res := catalog.Check(compatAdditive, compatFluid)
	if res == nil {
		return eris.Errorf("compat: unknown additive %q or fluid %q", compatAdditive, compatFluid)
	}
	if compatJSON {
		return printJSON(w, map[string]any{"verdict": res.Verdict(), "result": res})
	}
	fmt.Fprintf(w, "%s + %s: %s\n", res.Additive, res.Fluid, res.Verdict())
	printList(w, "Warnings", res.Warnings)
	return nil
}

func init() {
	compatCmd.Flags().StringVar(&compatAdditive, "additive", "", "additive id, name or alias (e.g. kcl)")
	compatCmd.Flags().StringVar(&compatFluid, "fluid", "", "base fluid name or alias (e.g. LRS)")
	compatCmd.Flags().BoolVar(&compatConflicts, "conflicts", false, "list pairs the catalog lists in both sets")
	compatCmd.Flags().BoolVar(&compatJSON, "json", false, "print JSON")
	rootCmd.AddCommand(compatCmd)
}
