package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/store"
)

var (
	rulesJSON     bool
	rulesLabel    string
	versionsLimit int
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect, validate and import consensus rulesets",
}

var rulesShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Load the configured ruleset and summarize it",
	Args:  cobra.NoArgs,
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

		rs, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		if rulesJSON {
			return printJSON(cmd.OutOrStdout(), rs)
		}
		printRuleset(cmd.OutOrStdout(), cfg.Rules.Source, rs)
		return nil
	},
}

func printRuleset(w io.Writer, source string, rs *consensus.Ruleset) {
	fmt.Fprintf(w, "Version:       %s\n", rs.Version)
	fmt.Fprintf(w, "Source:        %s\n", source)
	fmt.Fprintf(w, "Checksum:      %s\n", rs.Checksum())
	fmt.Fprintf(w, "States:        %s\n", strings.Join(slices.Sorted(maps.Keys(rs.Modifiers.States)), ", "))
	fmt.Fprintf(w, "Comorbidities: %s\n", strings.Join(slices.Sorted(maps.Keys(rs.Modifiers.Comorbidities)), ", "))
	fmt.Fprintf(w, "Fluids:        %d\n", len(rs.FluidRegistry().Names()))
	fmt.Fprintf(w, "References:    %d\n", len(rs.Refs))
}

var rulesRefsCmd = &cobra.Command{
	Use:   "refs [key...]",
	Short: "Print formatted citations; all of them without keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		loader, closeFn, err := newLoader(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		rs, err := loader.Load(ctx)
		if err != nil {
			return err
		}
		keys := args
		if len(keys) == 0 {
			keys = slices.Sorted(maps.Keys(rs.Refs))
		}
		for _, ref := range rs.GetRefs(keys...) {
			fmt.Fprintln(cmd.OutOrStdout(), ref)
		}
		return nil
	},
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a JSON or YAML ruleset document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, rs, err := readRuleset(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid ruleset %s (%s)\n", args[0], rs.Version, rs.Checksum()[:12])
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Validate a ruleset document and store it as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rules"); err != nil {
			return err
		}
		ctx := cmd.Context()

		doc, rs, err := readRuleset(args[0])
		if err != nil {
			return err
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		version := rs.Version
		if rulesLabel != "" {
			version = rulesLabel
		}
		rec, err := st.SaveRuleset(ctx, store.RulesetRecord{
			Version:  version,
			Source:   filepath.Base(args[0]),
			Document: doc,
		})
		if err != nil {
			return eris.Wrap(err, "rules: import")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s\n", rec.Version, rec.ID)
		return nil
	},
}

var rulesVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List stored ruleset versions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rules"); err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListRulesets(ctx, versionsLimit)
		if err != nil {
			return eris.Wrap(err, "rules: list versions")
		}
		if rulesJSON {
			return printJSON(cmd.OutOrStdout(), recs)
		}
		printVersions(cmd.OutOrStdout(), recs)
		return nil
	},
}

func printVersions(w io.Writer, recs []store.RulesetRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tID\tCHECKSUM\tSOURCE\tIMPORTED")
	for _, r := range recs {
		sum := r.Checksum
		if len(sum) > 12 {
			sum = sum[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Version, r.ID, sum, r.Source, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = tw.Flush()
}

// readRuleset reads and parses a document, returning its raw bytes too.
func readRuleset(path string) ([]byte, *consensus.Ruleset, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "rules: read %s", path)
	}
	rs, err := consensus.Parse(doc)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "rules: %s", path)
	}
	return doc, rs, nil
}

func init() {
	rulesCmd.PersistentFlags().BoolVar(&rulesJSON, "json", false, "print JSON")
	rulesImportCmd.Flags().StringVar(&rulesLabel, "label", "", "version label (default: the document's versao)")
	rulesVersionsCmd.Flags().IntVar(&versionsLimit, "limit", 20, "max versions to list")
	rulesCmd.AddCommand(rulesShowCmd, rulesRefsCmd, rulesValidateCmd, rulesImportCmd, rulesVersionsCmd)
	rootCmd.AddCommand(rulesCmd)
}
