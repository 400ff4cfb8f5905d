package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ribosim/internal/carrier"
	"ribosim/internal/catalog"
	"ribosim/internal/logging"
	"ribosim/internal/simulate"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var (
		protein  string
		mistakes int
		verbose  bool
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play a full session without a headset",
		Long: "Runs transcription and translation for a protein in-process, " +
			"acknowledging every animation immediately. Use --mistakes to rehearse failed commits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(protein)
			if name == "" {
				name = cfg.Catalog.DefaultProtein
			}
			selection, err := catalog.NewSelection(cat, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := simulate.Options{
				Mistakes: mistakes,
				Carrier: carrier.Options{
					Capacity:     cfg.Carrier.Capacity,
					EnterTimeout: cfg.Carrier.EnterTimeout(),
					ExitTimeout:  cfg.Carrier.ExitTimeout(),
					Overlap:      cfg.Carrier.OverlapEntries,
				},
				Logger: logging.NewNop(),
			}
			if verbose && !jsonOut {
				opts.Observe = func(step simulate.Step) {
					fmt.Fprintf(out, "%8s  %-10s %s\n", step.At, step.Kind, step.Detail)
				}
			}

			result, err := simulate.Run(cmd.Context(), selection, opts)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, result)
			}

			chain := make([]string, len(result.Chain))
			for i, aa := range result.Chain {
				chain[i] = string(aa)
			}
			current := selection.Current()
			fmt.Fprintf(out, "Protein:   %s\n", current.Name)
			fmt.Fprintf(out, "Template:  %s\n", current.TemplateString())
			fmt.Fprintf(out, "mRNA:      %s\n", current.MRNAString())
			fmt.Fprintf(out, "Attempts:  %d\n", len(result.Validations))
			fmt.Fprintf(out, "Carriers:  %d (max %d on stage)\n", result.Spawned, result.MaxOnStage)
			fmt.Fprintf(out, "Chain:     %s\n", strings.Join(chain, "-"))
			fmt.Fprintf(out, "Picks:     %d checks\n", len(result.AminoChecks))
			return nil
		},
	}

	cmd.Flags().StringVarP(&protein, "protein", "p", "", "Protein to synthesize (defaults to catalog.default_protein)")
	cmd.Flags().IntVar(&mistakes, "mistakes", 0, "Number of wrong commits before the correct one")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every step")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the result as JSON")
	return cmd
}
