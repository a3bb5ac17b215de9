package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/output"
)

var (
	syncJSON     bool
	syncLogLimit int
	syncPruneAge time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Commit ticket changes, rebase onto upstream and push",
	Long: `Sync the workspace with its upstream branch:

  1. fetch
  2. stage and commit changes under the tracked roots ("Sync tickets <date>")
  3. pull --rebase when behind; a conflict aborts the rebase
  4. push when ahead

Only one sync runs at a time per repository; a second one fails fast.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncRun()
	},
}

var syncLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent sync runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncLogRun()
	},
}

var syncPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete sync history older than --older-than",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return syncPruneRun()
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the outcome as JSON")
	syncLogCmd.Flags().IntVar(&syncLogLimit, "limit", 20, "Number of runs to show")
	syncPruneCmd.Flags().DurationVar(&syncPruneAge, "older-than", 30*24*time.Hour, "Age of runs to delete")

	syncCmd.AddCommand(syncLogCmd)
	syncCmd.AddCommand(syncPruneCmd)
	rootCmd.AddCommand(syncCmd)
}

func syncRun() error {
	s := workspaceStore()
	ctx := context.Background()

	if dryRun {
		coord, _ := newCoordinator(s)
		status, ok := coord.Status(ctx)
		if !ok {
			return fmt.Errorf("%s: %w", repoRoot(), git.ErrNotARepository)
		}
		ui.DryRunMsg("Would sync %d changed files on %s (%s)",
			len(status.Files), status.Branch, output.Divergence(status.Ahead, status.Behind))
		return nil
	}

	deps := newSyncService(ctx, s, nil)
	defer deps.Close()

	out, err := deps.service.Sync(ctx)
	if err != nil {
		return err
	}

	if syncJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printOutcome(out)
	}
	if !out.Succeeded {
		return errors.New(out.Summary)
	}
	return nil
}

func printOutcome(out git.SyncOutcome) {
	if !out.Succeeded {
		ui.Error("%s", out.Summary)
		if out.FailureDetail != "" {
			ui.Info("%s", out.FailureDetail)
		}
		return
	}
	ui.Success("%s", out.Summary)
	ui.VerboseLog("pulled=%t committed=%t pushed=%t", out.Pulled, out.Committed, out.Pushed)
}

func syncLogRun() error {
	ctx := context.Background()
	h, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	runs, err := h.List(ctx, syncLogLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("No sync runs recorded yet.")
		return nil
	}

	table := ui.Table([]string{"Started", "Branch", "Result", "Steps", "Duration"})
	for _, r := range runs {
		result := output.Green(r.Summary)
		if !r.Succeeded {
			result = output.Red(r.Summary)
		}
		_ = table.Append([]string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Branch,
			result,
			syncSteps(r.Pulled, r.Committed, r.Pushed),
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	return table.Render()
}

// syncSteps abbreviates the steps a run performed, e.g. "commit,push".
// The order matches the outcome summary.
func syncSteps(pulled, committed, pushed bool) string {
	var steps []string
	if pulled {
		steps = append(steps, "pull")
	}
	if committed {
		steps = append(steps, "commit")
	}
	if pushed {
		steps = append(steps, "push")
	}
	if len(steps) == 0 {
		return "-"
	}
	return strings.Join(steps, ",")
}

func syncPruneRun() error {
	ctx := context.Background()
	h, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer h.Close()

	cutoff := time.Now().Add(-syncPruneAge)
	if dryRun {
		ui.DryRunMsg("Would delete sync runs started before %s", cutoff.Format(time.RFC3339))
		return nil
	}
	n, err := h.Prune(ctx, cutoff)
	if err != nil {
		return err
	}
	ui.Success("Deleted %d sync runs", n)
	return nil
}
