package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var verbose bool

// NewRootCmd constructs the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aotq",
		Short: "aotq - ahead-of-time repository query compiler for Go (pgx)",
		Long:  "aotq compiles repository interfaces declared in schema files into a query manifest: derived queries, declared queries, named queries, and their bindings, resolved at build time instead of startup.",
	}
	cmd.SilenceUsage = true
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging output")
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newGenCmd())
	return cmd
}

// Execute runs the CLI entrypoint.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		exitCode := 1
		var cerr CommandError
		if errors.As(err, &cerr) {
			msg := strings.TrimSpace(cerr.Message)
			if msg == "" && cerr.Cause != nil {
				msg = cerr.Cause.Error()
			}
			if msg != "" {
				fmt.Fprintln(os.Stderr, msg)
			}
			if cerr.Cause != nil && msg != cerr.Cause.Error() && (verbose || msg == "") {
				fmt.Fprintf(os.Stderr, "details: %v\n", cerr.Cause)
			}
			if cerr.Suggestion != "" {
				fmt.Fprintln(os.Stderr, formatSuggestion(cerr.Suggestion))
			}
			exitCode = cerr.ExitStatus()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode)
	}
}

func logVerbose(cmd *cobra.Command, format string, args ...any) {
	if !verbose {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "[verbose] "+format+"\n", args...)
}
