// Command wisp is the CLI entry point: it runs scripts, lints them without
// executing, and opens an interactive REPL. It is an external collaborator
// of the interpreter core, wiring it to a file system and a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wisplang/wisp/interp"
	"github.com/wisplang/wisp/lexer"
	"github.com/wisplang/wisp/stdlib"
)

var log = logrus.New()

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "wisp",
		Short: "Run and lint wisp scripts",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newRunCmd(), newLintCmd(), newReplCmd())
	return root
}

func newInterpreter() *interp.Interpreter {
	ip := interp.New(interp.Options{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Logger: log,
	})
	stdlib.Install(ip)
	return ip
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file>",
		Short: "Execute a script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			ip := newInterpreter()
			if _, err := ip.EvalFile(path, string(src)); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			return nil
		},
	}
}

// newLintCmd parses (but never evaluates) every file argument concurrently
// via an errgroup, aggregating every failure into a single multierror
// instead of stopping at the first bad file.
func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <files...>",
		Short: "Parse scripts without running them, reporting every error found",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]error, len(args))

			g := new(errgroup.Group)
			for i, path := range args {
				i, path := i, path
				g.Go(func() error {
					results[i] = lintFile(path)
					return nil
				})
			}
			_ = g.Wait()

			var merr *multierror.Error
			for _, e := range results {
				if e != nil {
					merr = multierror.Append(merr, e)
				}
			}
			if merr != nil {
				merr.ErrorFormat = func(errs []error) string {
					lines := make([]string, len(errs))
					for i, e := range errs {
						lines[i] = e.Error()
					}
					out := ""
					for _, l := range lines {
						out += l + "\n"
					}
					return out
				}
				fmt.Fprint(os.Stderr, merr.Error())
				return merr
			}
			return nil
		},
	}
}

func lintFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	toks, err := lexer.Tokenize(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if _, perr := interp.Parse(toks); perr != nil {
		return fmt.Errorf("%s: %s", path, perr.Error())
	}
	return nil
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive read-eval-print loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ip := newInterpreter()
			return ip.REPL()
		},
	}
}
