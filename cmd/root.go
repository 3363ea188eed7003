package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/countsort/internal/config"
	"github.com/JakeFAU/countsort/internal/console"
	"github.com/JakeFAU/countsort/internal/logging"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// annotationLogLevel overrides the log level a command uses when none is configured.
const annotationLogLevel = "countsort/log-level"

const defaultLogLevel = "warn"

// runtimeEnv is what every subcommand needs after flags and config are parsed.
type runtimeEnv struct {
	cfg    config.Config
	logger *zap.Logger
}

type rootOptions struct {
	cfgFile string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "countsort",
		Short: "Sort non-negative integers with a stable counting sort.",
		Long: `countsort reads a size and that many non-negative integers from stdin,
prints them, sorts them with a counting sort, and prints them again.

Subcommands expose the same sort as an HTTP service and benchmark it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Loads config and builds the logger before any RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, env))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if env, err := resolveEnv(cmd.Context()); err == nil {
				_ = env.logger.Sync()
			}
		},

		RunE: runSortCommand,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	flags.String("log-level", "", "log level: debug, info, warn, error (default warn; info for serve)")
	flags.Int64("max-value", 10_000_000, "largest accepted element; 0 disables the check")

	cmd.AddCommand(newSortCmd(), newServeCmd(), newBenchCmd())
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) (*runtimeEnv, error) {
	v := config.New()
	flags := cmd.Root().PersistentFlags()
	if err := v.BindPFlag("logging.level", flags.Lookup("log-level")); err != nil {
		return nil, fmt.Errorf("bind log-level flag: %w", err)
	}
	if err := v.BindPFlag("sort.max_value", flags.Lookup("max-value")); err != nil {
		return nil, fmt.Errorf("bind max-value flag: %w", err)
	}

	cfg, err := config.LoadFrom(v, o.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if level == "" {
		level = defaultLogLevel
		if l, ok := cmd.Annotations[annotationLogLevel]; ok {
			level = l
		}
	}
	logger, err := logging.New(cfg.Logging.Development, level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return &runtimeEnv{cfg: cfg, logger: logger}, nil
}

func resolveEnv(ctx context.Context) (*runtimeEnv, error) {
	if ctx == nil {
		return nil, errors.New("command context is not set")
	}
	env, ok := ctx.Value(envKey).(*runtimeEnv)
	if !ok || env == nil {
		return nil, errors.New("configuration was not loaded")
	}
	return env, nil
}

// newSortCmd is the explicit spelling of the root command's default action.
func newSortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort",
		Short: "Run the interactive sort session (default)",
		Args:  cobra.NoArgs,
		RunE:  runSortCommand,
	}
}

func runSortCommand(cmd *cobra.Command, _ []string) error {
	env, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	session := console.New(
		cmd.InOrStdin(),
		cmd.OutOrStdout(),
		console.Config{MaxValue: env.cfg.Sort.MaxValue},
		env.logger.Named("console"),
	)
	return session.Run(cmd.Context())
}

// run executes the CLI and returns the process exit code.
func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

// Execute is the main entry point.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
