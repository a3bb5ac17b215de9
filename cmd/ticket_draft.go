package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/output"
	"github.com/joescharf/kanban/internal/store"
)

var (
	draftNotes  string
	draftCreate bool
)

var ticketDraftCmd = &cobra.Command{
	Use:   "draft <title>",
	Short: "Draft a ticket body with an LLM",
	Long: `Draft a Markdown ticket body and a suggested priority from a title and
optional rough notes. With --create the drafted ticket is added to the board.

Requires ANTHROPIC_API_KEY environment variable or anthropic.api_key in config.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketDraftRun(args[0])
	},
}

func init() {
	ticketDraftCmd.Flags().StringVar(&draftNotes, "notes", "", "Rough notes to expand")
	ticketDraftCmd.Flags().BoolVar(&draftCreate, "create", false, "Add the drafted ticket to the board")
	ticketCmd.AddCommand(ticketDraftCmd)
}

func ticketDraftRun(title string) error {
	client := newLLMClient()
	if client == nil {
		return errors.New("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	board, err := s.BoardBySlug(ctx, ticketBoard)
	if err != nil {
		return err
	}
	priorities, err := priorityIDs(ctx, s)
	if err != nil {
		return err
	}

	ui.Info("Drafting ticket with LLM (%s)...", viper.GetString("anthropic.model"))
	draft, err := client.DraftTicket(ctx, title, draftNotes, priorities)
	if err != nil {
		return fmt.Errorf("draft ticket: %w", err)
	}
	priority := draft.Priority
	if priority == "" {
		priority = classifyPriority(title)
	}

	fmt.Fprintf(ui.Out, "%s  (%s)\n\n%s\n", title, output.PriorityColor(priority), draft.Body)

	if !draftCreate {
		return nil
	}
	if dryRun {
		ui.DryRunMsg("Would add drafted ticket %q to %s", title, board.Slug)
		return nil
	}
	t, err := s.CreateTicket(ctx, store.CreateTicketInput{
		Board:    board.Slug,
		Title:    title,
		Status:   board.Columns[0].ID,
		Priority: priority,
		Body:     draft.Body,
	})
	if err != nil {
		return err
	}
	ui.Success("Added ticket %s", output.Cyan(shortID(t.ID)))
	return nil
}
