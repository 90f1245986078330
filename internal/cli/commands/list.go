package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openmech/subfarm/internal/cli/config"
	"github.com/openmech/subfarm/internal/loader"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	Path string
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	opts := &ListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the task groups of a subtask workspace",
		Long: `List every task group under a subtask root with its tasks and the
subtask keys each task fans out over, without touching any log files.`,
		Example: `  # Overview of the default subtask root
  subfarm list

  # Another root
  subfarm list -p runs/propane`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Path, "path", "p", config.DefaultRoot, "Subtask root to list")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cc := NewCommandContext(cmd)

	root := opts.Path
	if !cmd.Flags().Changed("path") {
		root = cc.Cfg.Path
	}

	ws, err := loader.Load(root)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace %s (%d groups)\n", ws.Dir, len(ws.Groups))
	for _, group := range ws.Groups {
		subtasks := 0
		for _, task := range group.Tasks {
			subtasks += len(task.SubtaskKeys)
		}
		fmt.Fprintf(out, "\nGroup %s: %d tasks, %d subtasks\n", group.ID, len(group.Tasks), subtasks)

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Task", "Subtasks", "Keys"})
		for _, task := range group.Tasks {
			t.AppendRow(table.Row{task.Name, len(task.SubtaskKeys), strings.Join(task.SubtaskKeys, ", ")})
		}
		t.Render()
	}
	return nil
}
