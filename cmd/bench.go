package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/countsort/internal/bench"
)

type benchOptions struct {
	size     int
	maxValue int64
	runs     int
	seed     uint64
	output   string
}

// newBenchCmd creates the 'bench' subcommand.
func newBenchCmd() *cobra.Command {
	opts := &benchOptions{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark counting sort against slices.Sort",
		Long: `Generates a pseudo-random sequence, sorts it repeatedly with counting
sort and with slices.Sort, and prints the timings. --output additionally
writes a hyperfine-style JSON report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBenchCommand(cmd, opts)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.size, "size", 1_000_000, "number of elements to sort")
	flags.Int64Var(&opts.maxValue, "max", 1_000_000, "largest generated value")
	flags.IntVar(&opts.runs, "runs", 10, "timed runs per sort")
	flags.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flags.StringVar(&opts.output, "output", "", "write the JSON report to this file")
	return cmd
}

func runBenchCommand(cmd *cobra.Command, opts *benchOptions) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	report, err := bench.Run(cmd.Context(), bench.Config{
		Size:     opts.size,
		MaxValue: opts.maxValue,
		Runs:     opts.runs,
		Seed:     opts.seed,
	}, env.logger.Named("bench"))
	if err != nil {
		return err
	}
	if err := bench.WriteTable(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if opts.output == "" {
		return nil
	}

	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := bench.WriteJSON(f, report); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}
