package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/loader"
	"github.com/openmech/subfarm/internal/monitor"
)

// StatusOptions holds options for the status command.
type StatusOptions struct {
	Path      string
	CheckFile string
	Wrap      int
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	opts := &StatusOptions{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Render a status grid for each task group",
		Long: `Scan the log files under a subtask root and render one status grid per
task group, one row per task and one column per subtask key. The logs
that need attention are listed after the grids and their paths written
to a check file for follow-up tooling.`,
		Example: `  # Status of the default subtask root
  subfarm status

  # A wider grid over another root, with a custom check file
  subfarm status -p runs/propane -w 24 -c failing.log`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", config.DefaultRoot, "Subtask root to scan")
	cmd.Flags().StringVarP(&opts.CheckFile, "check-file", "c", config.DefaultCheckFile, "File to write the non-OK log paths to")
	cmd.Flags().IntVarP(&opts.Wrap, "wrap", "w", config.DefaultWrap, "Maximum number of grid columns per chunk")

	return cmd
}

func runStatus(cmd *cobra.Command, opts *StatusOptions) error {
	cc := NewCommandContext(cmd)

	root := opts.Path
	if !cmd.Flags().Changed("path") {
		root = cc.Cfg.Path
	}
	checkFile := opts.CheckFile
	if !cmd.Flags().Changed("check-file") {
		checkFile = cc.Cfg.CheckFile
	}
	wrap := opts.Wrap
	if !cmd.Flags().Changed("wrap") {
		wrap = cc.Cfg.Wrap
	}

	ws, err := loader.Load(root)
	if err != nil {
		return err
	}

	eng := monitor.New(monitor.Config{
		Renderer: monitor.NewRenderer(cmd.OutOrStdout(), wrap),
		Logger:   cc.Logger,
	})
	records, err := eng.Report(ws)
	if err != nil {
		return err
	}

	if err := monitor.WriteCheckFile(checkFile, records); err != nil {
		return err
	}
	cc.Logger.Debug("wrote check file",
		slog.String("path", checkFile), slog.Int("records", len(records)))
	return nil
}
