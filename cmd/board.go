package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
)

var (
	boardSlug    string
	boardColumns string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Manage boards and their columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardListRun()
	},
}

var boardListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List boards",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardListRun()
	},
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a board",
	Long: `Create a board. The slug is derived from the name unless --slug is given.

Columns default to Backlog, In Progress, Review, Done. Use --columns to
pass a comma-separated list of "id:Name" pairs or plain names.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardCreateRun(args[0])
	},
}

var boardRenameCmd = &cobra.Command{
	Use:   "rename <slug> <name>",
	Short: "Rename a board",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRenameRun(args[0], args[1])
	},
}

var boardDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete a board (its ticket files are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardDeleteRun(args[0])
	},
}

var boardColumnsCmd = &cobra.Command{
	Use:   "columns <slug>",
	Short: "Show or replace the columns of a board",
	Long: `Show the columns of a board, or replace them with --set.

Tickets in a column that is removed move to the first column of the new set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardColumnsRun(args[0])
	},
}

func init() {
	boardCreateCmd.Flags().StringVar(&boardSlug, "slug", "", "Board slug (default: derived from name)")
	boardCreateCmd.Flags().StringVar(&boardColumns, "columns", "", `Columns, e.g. "todo:To Do,doing:Doing,done:Done"`)
	boardColumnsCmd.Flags().StringVar(&boardColumns, "set", "", `Replace columns, e.g. "todo:To Do,done:Done"`)

	boardCmd.AddCommand(boardListCmd)
	boardCmd.AddCommand(boardCreateCmd)
	boardCmd.AddCommand(boardRenameCmd)
	boardCmd.AddCommand(boardDeleteCmd)
	boardCmd.AddCommand(boardColumnsCmd)
	rootCmd.AddCommand(boardCmd)
}

// parseColumns parses "id:Name" pairs; a bare name gets a slugified id.
func parseColumns(list string) ([]models.Column, error) {
	var cols []models.Column
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, ":")
		if !ok {
			name = part
			id = store.Slugify(part)
		}
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if id == "" || name == "" {
			return nil, fmt.Errorf("invalid column %q", part)
		}
		cols = append(cols, models.Column{ID: id, Name: name})
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns in %q", list)
	}
	return cols, nil
}

func columnNames(cols []models.Column) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

func boardListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	cfg, err := s.Config(ctx)
	if err != nil {
		return err
	}
	if len(cfg.Boards) == 0 {
		ui.Info("No boards. Use 'kanban board create <name>' to add one.")
		return nil
	}

	table := ui.Table([]string{"Slug", "Name", "Columns", "Tickets"})
	for _, b := range cfg.Boards {
		count := "-"
		if tickets, err := s.ListTickets(ctx, b.Slug); err == nil {
			count = fmt.Sprintf("%d", len(tickets))
		}
		_ = table.Append([]string{output.Cyan(b.Slug), b.Name, columnNames(b.Columns), count})
	}
	return table.Render()
}

func boardCreateRun(name string) error {
	in := store.CreateBoardInput{Name: name, Slug: boardSlug}
	if boardColumns != "" {
		cols, err := parseColumns(boardColumns)
		if err != nil {
			return err
		}
		in.Columns = cols
	}

	if dryRun {
		ui.DryRunMsg("Would create board %q", name)
		return nil
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	b, err := s.CreateBoard(context.Background(), in)
	if err != nil {
		return err
	}
	ui.Success("Created board %s (%s)", output.Cyan(b.Slug), columnNames(b.Columns))
	return nil
}

func boardRenameRun(slug, name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.BoardBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would rename board %s from %q to %q", slug, b.Name, name)
		return nil
	}
	if _, err := s.UpdateBoard(ctx, store.UpdateBoardInput{ID: b.ID, Name: name}); err != nil {
		return err
	}
	ui.Success("Renamed board %s to %q", output.Cyan(slug), name)
	return nil
}

func boardDeleteRun(slug string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.BoardBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete board %s", slug)
		return nil
	}
	if err := s.DeleteBoard(ctx, b.ID); err != nil {
		return err
	}
	ui.Success("Deleted board %s", output.Cyan(slug))
	ui.VerboseLog("ticket files kept under %s/%s", store.TicketsDir, slug)
	return nil
}

func boardColumnsRun(slug string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	b, err := s.BoardBySlug(ctx, slug)
	if err != nil {
		return err
	}

	if boardColumns == "" {
		table := ui.Table([]string{"ID", "Name"})
		for _, c := range b.Columns {
			_ = table.Append([]string{c.ID, c.Name})
		}
		return table.Render()
	}

	cols, err := parseColumns(boardColumns)
	if err != nil {
		return err
	}
	removed := b.RemovedColumns(cols)
	if dryRun {
		ui.DryRunMsg("Would set columns of %s to %s", slug, columnNames(cols))
		for _, c := range removed {
			ui.DryRunMsg("Would move tickets from %s to %s", c.ID, cols[0].ID)
		}
		return nil
	}
	updated, err := s.UpdateBoard(ctx, store.UpdateBoardInput{ID: b.ID, Columns: cols})
	if err != nil {
		return err
	}
	ui.Success("Columns of %s: %s", output.Cyan(slug), columnNames(updated.Columns))
	for _, c := range removed {
		ui.Info("Tickets from removed column %s moved to %s", c.ID, cols[0].ID)
	}
	return nil
}
