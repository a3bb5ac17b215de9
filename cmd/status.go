package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/output"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ticket changes and divergence from upstream",
	Long: `Show the current branch, commits ahead of and behind the upstream branch,
and changed files under the tracked roots (.kanban and tickets).

Files outside the tracked roots are never reported.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	coord, _ := newCoordinator(workspaceStore())

	status, ok := coord.Status(context.Background())
	if !ok {
		return fmt.Errorf("%s: %w", repoRoot(), git.ErrNotARepository)
	}

	if statusJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	printStatus(status)
	return nil
}

func printStatus(status git.RepositoryStatus) {
	fmt.Fprintf(ui.Out, "Branch:    %s\n", output.Cyan(status.Branch))
	fmt.Fprintf(ui.Out, "Upstream:  %s\n", output.Divergence(status.Ahead, status.Behind))

	if !status.HasChanges() {
		ui.Success("No ticket changes")
		return
	}

	fmt.Fprintf(ui.Out, "Changes:   %d staged, %d modified, %d deleted, %d untracked\n\n",
		status.Staged(), status.Modified(), status.Deleted(), status.Untracked())

	table := ui.Table([]string{"Status", "Path"})
	for _, f := range status.Files {
		_ = table.Append([]string{output.ChangeColor(string(f.Kind)), f.Path})
	}
	_ = table.Render()
}
