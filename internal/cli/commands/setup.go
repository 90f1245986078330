package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/setup"
)

// SetupOptions holds options for the setup command.
type SetupOptions struct {
	Path    string
	OutPath string
	Groups  string
	Force   bool
}

// NewSetupCommand creates the setup command.
func NewSetupCommand() *cobra.Command {
	opts := &SetupOptions{}

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Materialize subtask directories from a job spec",
		Long: `Read ` + setup.JobSpecFile + ` from the job directory and create one directory per
subtask under the output root, together with the manifest, catalog, and
matrix files that the status and run passes read back.

An existing subtask root is left alone unless --force is given.`,
		Example: `  # Materialize every group from ./subtasks.yaml into ./subtasks
  subfarm setup

  # Only two groups, from another job directory
  subfarm setup -p jobs/propane -o runs/propane -g els,thermo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", ".", "Job directory holding "+setup.JobSpecFile)
	cmd.Flags().StringVarP(&opts.OutPath, "out-path", "o", config.DefaultRoot, "Subtask root to create")
	cmd.Flags().StringVarP(&opts.Groups, "groups", "g", "", "Comma-separated group IDs to materialize (default all)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Overwrite the artifacts of an existing subtask root")

	return cmd
}

func runSetup(cmd *cobra.Command, opts *SetupOptions) error {
	cc := NewCommandContext(cmd)

	outDir := opts.OutPath
	if !cmd.Flags().Changed("out-path") {
		outDir = cc.Cfg.Path
	}

	var groups []string
	if opts.Groups != "" {
		for _, id := range strings.Split(opts.Groups, ",") {
			if id = strings.TrimSpace(id); id != "" {
				groups = append(groups, id)
			}
		}
	}

	result, err := setup.Materialize(setup.Options{
		Dir:    opts.Path,
		OutDir: outDir,
		Groups: groups,
		Force:  opts.Force,
		Logger: cc.Logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Materialized %d subtasks (%d groups, %d tasks) in %s\n",
		result.Subtasks, result.Groups, result.Tasks, result.Dir)
	return nil
}
