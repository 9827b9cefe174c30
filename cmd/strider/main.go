// Command strider builds STRIDE threat models of data-flow diagrams,
// analyzes them and writes reports and diagrams.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"strider/internal/logger"
	"strider/internal/plugin"
	"strider/internal/settings"
)

// app carries the state shared by every subcommand.
type app struct {
	root     string
	logLevel string

	settings *settings.Settings
	log      hclog.Logger

	// prompt asks interactive questions; tests replace it.
	prompt func(questions []plugin.ConfigQuestion) (map[string]string, error)
}

// exitError ends the process with a specific status without printing usage.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func newRootCmd(stdout, stderr io.Writer, opts ...func(*app)) *cobra.Command {
	a := &app{prompt: promptQuestions}
	for _, opt := range opts {
		opt(a)
	}

	rootCmd := &cobra.Command{
		Use:   "strider",
		Short: "STRIDE threat modeling for data-flow diagrams",
		Long: `strider builds data-flow diagrams of a system, checks them for STRIDE
threats and writes reports, diagrams and SARIF findings.

Models live in workspaces under ~/.strider/<workspace>/. Settings are read
from .strider/settings.yaml under --root.`,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		CompletionOptions:     cobra.CompletionOptions{DisableDefaultCmd: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.LoadSettings(a.root)
			if err != nil {
				return err
			}
			a.settings = s
			level := a.logLevel
			if level == "" {
				level = s.LogLevel()
			}
			a.log = logger.NewWithOutput("strider", level, cmd.ErrOrStderr())
			return nil
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&a.root, "root", ".", "project root holding .strider/settings.yaml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error or off")

	rootCmd.AddCommand(
		a.newInitCmd(),
		a.newAddCmd(),
		a.newNewCmd(),
		a.newListCmd(),
		a.newRemoveCmd(),
		a.newAnalyzeCmd(),
		a.newCheckCmd(),
		a.newDiagramCmd(),
		a.newRulesCmd(),
		a.newReviewCmd(),
	)
	return rootCmd
}

func main() {
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background())
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		if exit.msg != "" {
			fmt.Fprintln(os.Stderr, exit.msg)
		}
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
