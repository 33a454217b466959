package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for AI assistant integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients query the board natively. Configure with:

  {
    "mcpServers": {
      "board": { "command": "board", "args": ["mcp"] }
    }
  }

Available tools: board_list_items, board_create_item, board_move_item,
board_burndown, board_sprint_kpis, board_velocity`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		e, err := getEngine()
		if err != nil {
			return err
		}
		return mcp.NewServer(s, e).ServeStdio(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
