// cmd/sos/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"sos/internal/errors"
	"sos/internal/logging"
	"sos/internal/repo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// exitReporter prints fatal errors the way every command reports them
type exitReporter struct {
	verbose bool
	start   time.Time
	out     io.Writer
}

func (e exitReporter) report(err error) {
	if e.verbose {
		fmt.Fprintf(e.out, "[EXIT after %.1fs] %v\n", time.Since(e.start).Seconds(), err)
		return
	}
	fmt.Fprintf(e.out, "[EXIT] %v\n", err)
}

// app carries the settings shared by all commands
type app struct {
	verbose  bool
	logLevel string
	logger   *logging.Logger
	reporter exitReporter
}

func (a *app) log(name string) *zap.Logger {
	return a.logger.Component(name)
}

// openRepo opens the repository containing the working directory
func (a *app) openRepo() (*repo.Repo, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	root, err := repo.FindRoot(cwd)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.Exit("Not inside a repository, run 'sos init' first")
		}
		return nil, err
	}
	return repo.Open(root, a.log("repo"))
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "sos",
		Short: "sos is an offline version control system",
		Long: `sos keeps branches and revisions of a working tree in a local
repository, without any server. It tracks files by pattern, renames
files by glob translation and merges text files line by line.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.reporter.verbose = a.verbose
			logger, err := logging.NewLogger(a.logLevel, a.verbose)
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			a.logger = logger
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output and timing")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newInitCmd(a),
		newStatusCmd(a),
		newCommitCmd(a),
		newBranchCmd(a),
		newBranchesCmd(a),
		newSwitchCmd(a),
		newLogCmd(a),
		newTrackCmd(a),
		newUntrackCmd(a),
		newMoveCmd(a),
		newRestoreCmd(a),
		newHashCmd(a),
		newEOLCmd(a),
		newDiffCmd(a),
		newMergeCmd(a),
		newWatchCmd(a),
	)
	return root
}

func main() {
	a := &app{reporter: exitReporter{start: time.Now(), out: os.Stderr}}
	err := newRootCmd(a).Execute()
	if a.logger != nil {
		a.logger.Sync()
	}
	if err != nil {
		a.reporter.report(err)
		os.Exit(1)
	}
}
