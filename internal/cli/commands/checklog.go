package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/checklog"
	"github.com/openmech/subfarm/internal/monitor"
	"github.com/openmech/subfarm/pkg/core"
)

// NewCheckLogCommand creates the check-log command.
func NewCheckLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-log [path...]",
		Short: "Classify individual log files",
		Long: `Classify log files by their completion and error markers, outside of
any subtask workspace. Each argument is a log file or a directory
searched for ` + core.LogPattern + ` entries; with no arguments the current
directory is searched.`,
		Example: `  # Classify the logs in the current directory
  subfarm check-log

  # One file and one directory
  subfarm check-log runs/els/out.log runs/thermo`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckLog(cmd, args)
		},
	}
	return cmd
}

func runCheckLog(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	classifier := checklog.Default()
	var logs []monitor.LogStatus
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			status, err := classifier.Classify(arg)
			if err != nil {
				return err
			}
			logs = append(logs, monitor.LogStatus{Path: arg, Status: status})
			continue
		}

		found, err := monitor.LogStatuses(arg, classifier)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("no %s files in %s", core.LogPattern, arg)
		}
		logs = append(logs, found...)
	}

	r := monitor.NewRenderer(cmd.OutOrStdout(), monitor.DefaultWrap)
	r.LogList(logs)
	return nil
}
