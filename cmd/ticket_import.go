package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/kanban/internal/llm"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/store"
)

var importUseLLM bool

var ticketImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import tickets from a markdown file",
	Long: `Import tickets from a markdown file.

Numbered ("1. ...") and bulleted ("- ...") items become tickets. A "## <column>"
heading puts the items below it into that column; other items go to the
board's first column. Priorities are guessed from keywords in the title.

With --llm the file is sent to the configured LLM instead, which extracts
titles, bodies and priorities from free-form notes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return ticketImportRun(args[0])
	},
}

func init() {
	ticketImportCmd.Flags().BoolVar(&importUseLLM, "llm", false, "Extract tickets with the LLM")
	ticketCmd.AddCommand(ticketImportCmd)
}

// importedTicket is one ticket parsed from an import file.
type importedTicket struct {
	Status   string
	Title    string
	Body     string
	Priority string
}

func ticketImportRun(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("file is empty: %s", file)
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

	var tickets []importedTicket
	if importUseLLM {
		tickets, err = extractWithLLM(ctx, s, board, content)
		if err != nil {
			return err
		}
	} else {
		tickets = parseMarkdownTickets(content, board)
	}

	if len(tickets) == 0 {
		ui.Info("No tickets found in file.")
		return nil
	}

	table := ui.Table([]string{"#", "Column", "Priority", "Title"})
	for i, t := range tickets {
		_ = table.Append([]string{fmt.Sprintf("%d", i+1), t.Status, t.Priority, t.Title})
	}
	_ = table.Render()

	if dryRun {
		ui.DryRunMsg("Would create %d tickets on board %s", len(tickets), board.Slug)
		return nil
	}
	return createImportedTickets(ctx, s, board, tickets)
}

func extractWithLLM(ctx context.Context, s store.Store, board *models.Board, content string) ([]importedTicket, error) {
	client := newLLMClient()
	if client == nil {
		return nil, errors.New("ANTHROPIC_API_KEY not set (set env var or anthropic.api_key in config)")
	}
	priorities, err := priorityIDs(ctx, s)
	if err != nil {
		return nil, err
	}

	ui.Info("Extracting tickets with LLM (%s)...", viper.GetString("anthropic.model"))
	extracted, err := client.ExtractTickets(ctx, content, priorities)
	if err != nil {
		return nil, fmt.Errorf("extract tickets: %w", err)
	}
	return fromExtracted(extracted, board), nil
}

func fromExtracted(extracted []llm.ExtractedTicket, board *models.Board) []importedTicket {
	out := make([]importedTicket, 0, len(extracted))
	for _, e := range extracted {
		priority := e.Priority
		if priority == "" {
			priority = classifyPriority(e.Title)
		}
		out = append(out, importedTicket{
			Status:   board.Columns[0].ID,
			Title:    e.Title,
			Body:     e.Body,
			Priority: priority,
		})
	}
	return out
}

// columnFor matches a heading against the board's column ids and names.
func columnFor(board *models.Board, heading string) (string, bool) {
	for _, c := range board.Columns {
		if strings.EqualFold(c.ID, heading) || strings.EqualFold(c.Name, heading) {
			return c.ID, true
		}
	}
	return "", false
}

// listItemTitle returns the text of a "1. text", "- text" or "* text" line.
func listItemTitle(line string) (string, bool) {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		title := strings.TrimSpace(line[2:])
		title = strings.TrimPrefix(title, "[ ] ")
		return title, title != ""
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i > 3 || i+1 >= len(line) || (line[i] != '.' && line[i] != ')') || line[i+1] != ' ' {
		return "", false
	}
	title := strings.TrimSpace(line[i+2:])
	return title, title != ""
}

// parseMarkdownTickets does a simple parse of markdown list items. Indented
// lines under an item become its body.
func parseMarkdownTickets(content string, board *models.Board) []importedTicket {
	var tickets []importedTicket
	status := board.Columns[0].ID

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "## ") {
			heading := strings.TrimSpace(strings.TrimPrefix(line, "## "))
			if id, ok := columnFor(board, heading); ok {
				status = id
			} else {
				status = board.Columns[0].ID
			}
			continue
		}

		indented := strings.HasPrefix(raw, "  ") || strings.HasPrefix(raw, "\t")
		if indented && len(tickets) > 0 && line != "" {
			last := &tickets[len(tickets)-1]
			if last.Body != "" {
				last.Body += "\n"
			}
			last.Body += line
			continue
		}

		if title, ok := listItemTitle(line); ok {
			tickets = append(tickets, importedTicket{
				Status:   status,
				Title:    title,
				Priority: classifyPriority(title),
			})
		}
	}

	return tickets
}

func createImportedTickets(ctx context.Context, s store.Store, board *models.Board, tickets []importedTicket) error {
	created, skipped := 0, 0
	for _, t := range tickets {
		_, err := s.CreateTicket(ctx, store.CreateTicketInput{
			Board:    board.Slug,
			Title:    t.Title,
			Status:   t.Status,
			Priority: t.Priority,
			Body:     t.Body,
		})
		if err != nil {
			ui.Warning("Failed to create ticket %q: %v", t.Title, err)
			skipped++
			continue
		}
		created++
	}

	ui.Success("Created %d tickets on board %s", created, board.Slug)
	if skipped > 0 {
		ui.Warning("Skipped %d tickets", skipped)
	}
	return nil
}
