package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/kanban/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an agent read and update tickets and sync the board. Configure with:

  {
    "mcpServers": {
      "kanban": { "command": "kanban", "args": ["mcp", "--repo", "/path/to/repo"] }
    }
  }

Available tools: kanban_list_boards, kanban_list_tickets, kanban_get_ticket,
kanban_create_ticket, kanban_update_ticket, kanban_comment, kanban_git_status,
kanban_sync, kanban_draft_ticket (when an Anthropic API key is configured)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		deps := newSyncService(ctx, s, nil)
		defer deps.Close()

		return mcp.NewServer(s, deps.service, newLLMClient()).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
