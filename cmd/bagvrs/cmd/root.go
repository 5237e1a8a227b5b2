/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/bagvrs/pkg/config"
	"github.com/ssargent/bagvrs/pkg/di"
	"github.com/ssargent/bagvrs/pkg/logging"
)

// Exit codes
const (
	ExitOK          = 0
	ExitError       = 1
	ExitInterrupted = 130
)

var deps *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	deps = c
}

func getContainer() *di.Container {
	if deps == nil {
		deps = di.NewContainer()
	}
	return deps
}

type appKey struct{}

// app is the state every subcommand shares, set up before it runs.
type app struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	verbose bool
	format  string
}

func appFrom(cmd *cobra.Command) *app {
	if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
		return a
	}
	return &app{cfg: config.DefaultConfig(), log: zap.NewNop().Sugar(), format: formatTable}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bagvrs",
		Short: "bagvrs - ROS bag to stream container converter",
		Long: `bagvrs converts RealSense recordings stored as ROS1 bags into
indexed multi-stream containers, and inspects both formats.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = appFrom(cmd).log.Sync()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Config file (default "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging and full error chains")
	rootCmd.PersistentFlags().StringP("output", "o", formatTable, "Output format (table or json)")

	rootCmd.AddCommand(
		newConvertCmd(),
		newInspectCmd(),
		newInfoCmd(),
		newStreamCmd(),
		newServeCmd(),
		newCatalogCmd(),
		newMappingCmd(),
		newSampleCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("output")

	if format != formatTable && format != formatJSON {
		return fmt.Errorf("invalid output format %q (table or json)", format)
	}

	cfg := config.DefaultConfig()
	switch {
	case configPath != "":
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: verbose,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, appKey{}, &app{cfg: cfg, log: log, verbose: verbose, format: format}))
	return nil
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the running command.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, NewRootCmd(), os.Args[1:])
}

func run(ctx context.Context, rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
	printError(rootCmd.ErrOrStderr(), err, verbose)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	return ExitError
}

// printError writes one summary line, or the whole wrap chain when
// verbose.
func printError(w io.Writer, err error, verbose bool) {
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "Interrupted")
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	if !verbose {
		return
	}
	for i, layer := range errorChain(err) {
		fmt.Fprintf(w, "%s%v\n", strings.Repeat("  ", i+1), layer)
	}
}

// errorChain returns the wrapped errors below err, outermost first. Of an
// error wrapping several, every branch is followed in order.
func errorChain(err error) []error {
	var out []error
	var walk func(error)
	walk = func(e error) {
		switch u := e.(type) {
		case interface{ Unwrap() error }:
			if next := u.Unwrap(); next != nil {
				out = append(out, next)
				walk(next)
			}
		case interface{ Unwrap() []error }:
			for _, next := range u.Unwrap() {
				out = append(out, next)
				walk(next)
			}
		}
	}
	walk(err)
	return out
}
