package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"sos/internal/config"
	"sos/internal/diff"
	"sos/internal/errors"
	"sos/internal/merge"
	"sos/internal/render"
	"sos/internal/repo"
	"sos/internal/safe"
	"sos/internal/textenc"
	"sos/shared/types"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// withRepo runs fn against the current repository and closes it afterwards
func (a *app) withRepo(fn func(r *repo.Repo) error) error {
	r, err := a.openRepo()
	if err != nil {
		return err
	}
	defer r.Close()
	return fn(r)
}

func newInitCmd(a *app) *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a repository in the current directory",
		Long:  `Creates a repository and records the current files as the first revision of the trunk branch.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("getting current directory: %w", err)
			}

			cfg := config.Default()
			if configPath != "" {
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}

			r, err := repo.Init(dir, cfg, a.log("repo"))
			if err != nil {
				return err
			}
			defer r.Close()

			fmt.Println("Initialized repository in", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (yaml or json) to start from")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show changes since the last revision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.Current()
				if err != nil {
					return err
				}
				changes, err := r.Status(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("On branch %s\n", branch.Label())
				render.New(os.Stdout).ChangeSet(changes)
				return nil
			})
		},
	}
}

func newCommitCmd(a *app) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "commit [message]",
		Short: "Record the working tree changes as a new revision",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				message = args[0]
			}
			return a.withRepo(func(r *repo.Repo) error {
				commit, err := r.Commit(cmd.Context(), message)
				if err != nil {
					return err
				}
				fmt.Printf("Committed revision %d of branch %d\n", commit.Number, commit.Branch)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "revision message")
	return cmd
}

func newBranchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branch [name]",
		Short: "Create a branch from the last revision and switch to it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.CreateBranch(cmd.Context(), name)
				if err != nil {
					return err
				}
				fmt.Printf("Created and switched to branch %s\n", branch.Label())
				return nil
			})
		},
	}
}

func newBranchesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				current, err := r.Current()
				if err != nil {
					return err
				}
				branches, err := r.Branches()
				if err != nil {
					return err
				}
				render.New(os.Stdout).Branches(branches, current.Number)
				return nil
			})
		},
	}
}

func newSwitchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "switch <branch>",
		Short: "Check out the last revision of another branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.Switch(cmd.Context(), args[0], force)
				if err != nil {
					return err
				}
				fmt.Printf("Switched to branch %s\n", branch.Label())
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "discard uncommitted changes")
	return cmd
}

func newLogCmd(a *app) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the revisions of a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.Current()
				if ref != "" {
					branch, err = r.Branch(ref)
				}
				if err != nil {
					return err
				}
				commits, err := r.Log(branch.Number)
				if err != nil {
					return err
				}
				render.New(os.Stdout).Log(commits)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "branch", "b", "", "branch name or number (default current)")
	return cmd
}

func newTrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "track <pattern>...",
		Short: "Restrict the current branch to files matching patterns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.Track(args...)
				if err != nil {
					return err
				}
				fmt.Printf("Tracking %d patterns on branch %s\n", len(branch.Tracked), branch.Label())
				return nil
			})
		},
	}
}

func newUntrackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <pattern>...",
		Short: "Stop tracking patterns on the current branch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				branch, err := r.Untrack(args...)
				if err != nil {
					return err
				}
				fmt.Printf("Tracking %d patterns on branch %s\n", len(branch.Tracked), branch.Label())
				return nil
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <old-pattern> <new-pattern>",
		Short: "Rename files by translating one glob pattern into another",
		Long: `Renames every file matching the old pattern. Wildcards of the new
pattern take the text matched by the wildcards of the old one, e.g.
'sos mv "img??.png" "pic??.png"'.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				actions, err := r.Move(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				for _, action := range actions {
					fmt.Printf("%s -> %s\n", action.Source, action.Target)
				}
				return nil
			})
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	var revision int
	cmd := &cobra.Command{
		Use:   "restore <path>...",
		Short: "Restore files from a revision of the current branch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRepo(func(r *repo.Repo) error {
				for _, path := range args {
					if err := r.Restore(path, revision); err != nil {
						return err
					}
					fmt.Println("Restored", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&revision, "revision", "r", -1, "revision number (default latest)")
	return cmd
}

func newHashCmd(a *app) *cobra.Command {
	var (
		compress bool
		saveTo   string
	)
	cmd := &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the content hash of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if saveTo != "" && len(args) > 1 {
				return errors.Exit("--save-to takes a single file")
			}
			for _, path := range args {
				hash, size, err := safe.HashFile(path, compress, saveTo)
				if err != nil {
					return err
				}
				if saveTo != "" {
					fmt.Printf("%s  %s  (%d bytes stored)\n", hash, path, size)
					continue
				}
				fmt.Printf("%s  %s\n", hash, path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compress, "compress", false, "compress the saved copy")
	cmd.Flags().StringVar(&saveTo, "save-to", "", "also write the content to this file")
	return cmd
}

func newEOLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "eol <file>...",
		Short: "Detect line endings and encoding of files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				eol := textenc.DetectEOL(data, a.log("textenc"))
				fmt.Printf("%s  %s  %s\n", textenc.Name(eol), textenc.DetectEncoding(data), path)
			}
			return nil
		},
	}
}

func newDiffCmd(a *app) *cobra.Command {
	var blocks bool
	cmd := &cobra.Command{
		Use:   "diff <file> <into>",
		Short: "Show the line differences between two files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.log("diff")
			out := render.New(os.Stdout)
			if blocks {
				merger := merge.NewMerger(logger, nil, nil)
				result, err := merger.Blocks(merge.Input{FileName: args[0], IntoName: args[1]})
				if err != nil {
					return err
				}
				out.Blocks(result)
				return nil
			}

			loader := textenc.NewLoader(logger, textenc.UTF8)
			file, err := loader.Load(args[0], nil)
			if err != nil {
				return err
			}
			into, err := loader.Load(args[1], nil)
			if err != nil {
				return err
			}
			out.Delta(diff.NewDiffer().Compare(file.Lines, into.Lines))
			return nil
		},
	}
	cmd.Flags().BoolVar(&blocks, "blocks", false, "show classified merge blocks instead")
	return cmd
}

// mergeMode translates the merge flags
func mergeMode(insert, remove, theirs, mine bool) (shared.MergeOperation, shared.ConflictResolution, error) {
	op := shared.MergeBoth
	switch {
	case insert && !remove:
		op = shared.MergeInsert
	case remove && !insert:
		op = shared.MergeRemove
	}

	res := shared.Ask
	switch {
	case theirs && mine:
		return op, res, errors.Exit("Use only one of --theirs and --mine")
	case theirs:
		res = shared.Theirs
	case mine:
		res = shared.Mine
	}
	return op, res, nil
}

func newMergeCmd(a *app) *cobra.Command {
	var (
		insert, remove    bool
		theirs, mine, ask bool
		output            string
		revision          string
	)
	cmd := &cobra.Command{
		Use:   "merge <file> <into> | merge --revision <n> <path>",
		Short: "Merge the changes of one file into another",
		Long: `Merges the lines of <file> into <into> and prints the result, or writes
it to --output. With --revision, the given revision of <path> is merged
into the working tree file in place.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, res, err := mergeMode(insert, remove, theirs, mine)
			if err != nil {
				return err
			}
			prompter := merge.NewConsolePrompter()

			if revision != "" {
				if len(args) != 1 {
					return errors.Exit("--revision takes a single path")
				}
				number, err := strconv.Atoi(revision)
				if err != nil {
					return errors.Exit("Invalid revision '%s'", revision)
				}
				return a.withRepo(func(r *repo.Repo) error {
					return r.MergeFile(args[0], number, op, res, prompter)
				})
			}
			if len(args) != 2 {
				return errors.Exit("merge needs <file> and <into>")
			}

			logger := a.log("merge")
			merger := merge.NewMerger(logger, textenc.NewLoader(logger, textenc.UTF8), prompter)
			result, err := merger.Merge(merge.Input{FileName: args[0], IntoName: args[1]}, op, res)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, result, 0644)
			}
			_, err = os.Stdout.Write(result)
			return err
		},
	}
	cmd.Flags().BoolVar(&insert, "insert", false, "only add lines from <file>")
	cmd.Flags().BoolVar(&remove, "remove", false, "only remove lines missing from <file>")
	cmd.Flags().BoolVar(&theirs, "theirs", false, "resolve conflicts with <file>")
	cmd.Flags().BoolVar(&mine, "mine", false, "resolve conflicts with <into>")
	cmd.Flags().BoolVar(&ask, "ask", true, "ask for each conflict (default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the result to this file")
	cmd.Flags().StringVarP(&revision, "revision", "r", "", "merge this revision of <path> into the working tree")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Report working tree changes as they happen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			header := color.New(color.FgCyan).SprintFunc()
			out := render.New(os.Stdout)
			return a.withRepo(func(r *repo.Repo) error {
				fmt.Println("Watching", r.Root, "(Ctrl+C to stop)")
				err := r.Watch(ctx, func(changes shared.ChangeSet) {
					fmt.Println(header(fmt.Sprintf("%d changes", changes.Len())))
					out.ChangeSet(changes)
				})
				if err == context.Canceled {
					return nil
				}
				return err
			})
		},
	}
}
