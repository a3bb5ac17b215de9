package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
)

var (
	ticketBoard    string
	ticketTitle    string
	ticketStatus   string
	ticketPriority string
	ticketOwner    string
	ticketBody     string
	ticketOrder    int
	ticketAuthor   string
)

var ticketCmd = &cobra.Command{
	Use:     "ticket",
	Aliases: []string{"t"},
	Short:   "Manage tickets on a board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketListRun()
	},
}

var ticketListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tickets, grouped by column",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketListRun()
	},
}

var ticketShowCmd = &cobra.Command{
	Use:   "show <ticket-id>",
	Short: "Show ticket details, body and comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketShowRun(args[0])
	},
}

var ticketAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a ticket",
	Long:  "Add a ticket. Status defaults to the board's first column.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketAddRun(args[0])
	},
}

var ticketUpdateCmd = &cobra.Command{
	Use:   "update <ticket-id>",
	Short: "Update a ticket",
	Long:  "Update a ticket. Only the flags given are changed; an empty --owner clears the owner.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketUpdateRun(cmd, args[0])
	},
}

var ticketMoveCmd = &cobra.Command{
	Use:   "move <ticket-id> <column>",
	Short: "Move a ticket to another column",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketMoveRun(args[0], args[1])
	},
}

var ticketDeleteCmd = &cobra.Command{
	Use:     "delete <ticket-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a ticket",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketDeleteRun(args[0])
	},
}

var ticketCommentCmd = &cobra.Command{
	Use:   "comment <ticket-id> <text>",
	Short: "Add a comment to a ticket",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketCommentRun(args[0], args[1])
	},
}

func init() {
	ticketCmd.PersistentFlags().StringVarP(&ticketBoard, "board", "b", "main", "Board slug")

	ticketListCmd.Flags().StringVar(&ticketStatus, "status", "", "Filter by column id")
	ticketListCmd.Flags().StringVar(&ticketOwner, "owner", "", "Filter by owner user id")

	ticketAddCmd.Flags().StringVar(&ticketStatus, "status", "", "Column id (default: first column)")
	ticketAddCmd.Flags().StringVar(&ticketPriority, "priority", "medium", "Priority id")
	ticketAddCmd.Flags().StringVar(&ticketOwner, "owner", "", "Owner user id")
	ticketAddCmd.Flags().StringVar(&ticketBody, "body", "", "Markdown body")

	ticketUpdateCmd.Flags().StringVar(&ticketTitle, "title", "", "New title")
	ticketUpdateCmd.Flags().StringVar(&ticketStatus, "status", "", "New column id")
	ticketUpdateCmd.Flags().StringVar(&ticketPriority, "priority", "", "New priority id")
	ticketUpdateCmd.Flags().StringVar(&ticketOwner, "owner", "", "New owner user id")
	ticketUpdateCmd.Flags().StringVar(&ticketBody, "body", "", "New Markdown body")
	ticketUpdateCmd.Flags().IntVar(&ticketOrder, "order", 0, "Position within the column")

	ticketCommentCmd.Flags().StringVar(&ticketAuthor, "author", "", "Author user id")

	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketAddCmd)
	ticketCmd.AddCommand(ticketUpdateCmd)
	ticketCmd.AddCommand(ticketMoveCmd)
	ticketCmd.AddCommand(ticketDeleteCmd)
	ticketCmd.AddCommand(ticketCommentCmd)
	rootCmd.AddCommand(ticketCmd)
}

func ticketListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	board, err := s.BoardBySlug(ctx, ticketBoard)
	if err != nil {
		return err
	}
	tickets, err := s.ListTickets(ctx, board.Slug)
	if err != nil {
		return err
	}

	var shown []*models.Ticket
	for _, t := range tickets {
		if ticketStatus != "" && t.Status != ticketStatus {
			continue
		}
		if ticketOwner != "" && t.Owner != ticketOwner {
			continue
		}
		shown = append(shown, t)
	}
	if len(shown) == 0 {
		ui.Info("No tickets on board %s.", board.Slug)
		return nil
	}

	table := ui.Table([]string{"ID", "Column", "Priority", "Owner", "Title"})
	for _, col := range board.Columns {
		for _, t := range shown {
			if t.Status != col.ID {
				continue
			}
			_ = table.Append([]string{output.Cyan(shortID(t.ID)), col.Name, output.PriorityColor(t.Priority), t.Owner, t.Title})
		}
	}
	for _, t := range shown {
		if !board.HasColumn(t.Status) {
			_ = table.Append([]string{output.Cyan(shortID(t.ID)), output.Yellow(t.Status), output.PriorityColor(t.Priority), t.Owner, t.Title})
		}
	}
	return table.Render()
}

func ticketShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	t, err := findTicket(context.Background(), s, ticketBoard, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(t.ID)), t.Title)
	fmt.Fprintf(ui.Out, "  Board:      %s\n", t.Board)
	fmt.Fprintf(ui.Out, "  Status:     %s\n", t.Status)
	fmt.Fprintf(ui.Out, "  Priority:   %s\n", output.PriorityColor(t.Priority))
	if t.Owner != "" {
		fmt.Fprintf(ui.Out, "  Owner:      %s\n", t.Owner)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", t.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  File:       %s\n", t.Filename)
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", t.ID)
	if t.Body != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", t.Body)
	}
	if len(t.Comments) > 0 {
		fmt.Fprintf(ui.Out, "\nComments:\n")
		for _, c := range t.Comments {
			author := c.Author
			if author == "" {
				author = "anonymous"
			}
			fmt.Fprintf(ui.Out, "  %s %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04"), output.Cyan(author), c.Text)
		}
	}
	return nil
}

func ticketAddRun(title string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	board, err := s.BoardBySlug(ctx, ticketBoard)
	if err != nil {
		return err
	}
	status := ticketStatus
	if status == "" {
		status = board.Columns[0].ID
	}

	if dryRun {
		ui.DryRunMsg("Would add ticket %q to %s/%s", title, board.Slug, status)
		return nil
	}

	t, err := s.CreateTicket(ctx, store.CreateTicketInput{
		Board:    board.Slug,
		Title:    title,
		Status:   status,
		Priority: ticketPriority,
		Owner:    ticketOwner,
		Body:     ticketBody,
	})
	if err != nil {
		return err
	}
	ui.Success("Added ticket %s: %s", output.Cyan(shortID(t.ID)), t.Title)
	return nil
}

func ticketUpdateRun(cmd *cobra.Command, ref string) error {
	var in store.UpdateTicketInput
	flags := cmd.Flags()
	if flags.Changed("title") {
		in.Title = &ticketTitle
	}
	if flags.Changed("status") {
		in.Status = &ticketStatus
	}
	if flags.Changed("priority") {
		in.Priority = &ticketPriority
	}
	if flags.Changed("owner") {
		in.Owner = &ticketOwner
	}
	if flags.Changed("body") {
		in.Body = &ticketBody
	}
	if flags.Changed("order") {
		in.Order = &ticketOrder
	}
	if in.Title == nil && in.Status == nil && in.Priority == nil && in.Owner == nil && in.Body == nil && in.Order == nil {
		return fmt.Errorf("no updates specified (use --title, --status, --priority, --owner, --body or --order)")
	}

	return updateTicket(ref, in, "Updated")
}

func ticketMoveRun(ref, column string) error {
	return updateTicket(ref, store.UpdateTicketInput{Status: &column}, "Moved")
}

func updateTicket(ref string, in store.UpdateTicketInput, verb string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	t, err := findTicket(ctx, s, ticketBoard, ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would update ticket %s", shortID(t.ID))
		return nil
	}

	updated, err := s.UpdateTicket(ctx, ticketBoard, t.ID, in)
	if err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	ui.Success("%s ticket %s (%s)", verb, output.Cyan(shortID(updated.ID)), updated.Status)
	return nil
}

func ticketDeleteRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	t, err := findTicket(ctx, s, ticketBoard, ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would delete ticket %s: %s", shortID(t.ID), t.Title)
		return nil
	}
	if err := s.DeleteTicket(ctx, ticketBoard, t.ID); err != nil {
		return err
	}
	ui.Success("Deleted ticket %s", output.Cyan(shortID(t.ID)))
	return nil
}

func ticketCommentRun(ref, text string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	t, err := findTicket(ctx, s, ticketBoard, ref)
	if err != nil {
		return err
	}
	if dryRun {
		ui.DryRunMsg("Would comment on ticket %s", shortID(t.ID))
		return nil
	}

	now := time.Now().UTC()
	comments := append(t.Comments, models.Comment{
		ID:        store.NewCommentID(now),
		Author:    ticketAuthor,
		Text:      text,
		CreatedAt: now,
	})
	if _, err := s.UpdateTicket(ctx, ticketBoard, t.ID, store.UpdateTicketInput{Comments: comments}); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	ui.Success("Commented on ticket %s", output.Cyan(shortID(t.ID)))
	return nil
}

// findTicket finds a ticket by full ID or unique prefix. The "T-" prefix is
// optional.
func findTicket(ctx context.Context, s store.Store, board, ref string) (*models.Ticket, error) {
	if t, err := s.GetTicket(ctx, board, ref); err == nil {
		return t, nil
	}

	want := strings.ToUpper(ref)
	if !strings.HasPrefix(want, "T-") {
		want = "T-" + want
	}
	tickets, err := s.ListTickets(ctx, board)
	if err != nil {
		return nil, err
	}

	var matches []*models.Ticket
	for _, t := range tickets {
		if strings.HasPrefix(t.ID, want) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("ticket %s on board %s: %w", ref, board, store.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("ambiguous ticket ID %s: matches %d tickets", ref, len(matches))
	}
}

// shortID returns a truncated ticket ID for display: the prefix, the ULID
// timestamp and four random characters.
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
