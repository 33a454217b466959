// Package mcp exposes the board as MCP tools over stdio, so agents can
// query and mutate the board the same way the HTTP API does.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

// Server wraps the board data layer and exposes it as MCP tools.
type Server struct {
	store  store.Store
	engine *board.Engine
}

// NewServer creates the MCP server wrapper.
func NewServer(s store.Store, e *board.Engine) *Server {
	return &Server{store: s, engine: e}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("board", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listItemsTool())
	srv.AddTool(s.createItemTool())
	srv.AddTool(s.moveItemTool())
	srv.AddTool(s.burndownTool())
	srv.AddTool(s.sprintKPIsTool())
	srv.AddTool(s.velocityTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// resolveProject accepts either a project key or id.
func (s *Server) resolveProject(ctx context.Context, ref string) (*models.Project, error) {
	if p, err := s.store.GetProjectByKey(ctx, ref); err == nil {
		return p, nil
	}
	return s.store.GetProject(ctx, ref)
}

// resolveItem accepts either an item key ("PROJ-12") or id.
func (s *Server) resolveItem(ctx context.Context, ref string) (*models.WorkItem, error) {
	if it, err := s.store.GetItemByKey(ctx, ref); err == nil {
		return it, nil
	}
	return s.store.GetItem(ctx, ref)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// board_list_items
func (s *Server) listItemsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_list_items",
		mcp.WithDescription("List work items in a project, ordered by column and rank. Returns a JSON array with key, title, type, status, priority, points, and assignee."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
		mcp.WithString("status", mcp.Description("Filter by column: backlog, todo, in_progress, done")),
		mcp.WithString("assignee", mcp.Description("Filter by assignee")),
		mcp.WithString("sprint", mcp.Description("Filter by sprint id")),
	)
	return tool, s.handleListItems
}

func (s *Server) handleListItems(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	items, err := s.store.ListItems(ctx, store.ItemListFilter{
		ProjectID: p.ID,
		Status:    models.ItemStatus(request.GetString("status", "")),
		Assignee:  request.GetString("assignee", ""),
		SprintID:  request.GetString("sprint", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list items: %v", err)), nil
	}

	type itemOut struct {
		ID          string  `json:"id"`
		Key         string  `json:"key"`
		Title       string  `json:"title"`
		Type        string  `json:"type"`
		Status      string  `json:"status"`
		Priority    string  `json:"priority"`
		StoryPoints float64 `json:"storyPoints"`
		Assignee    string  `json:"assignee"`
		SprintID    string  `json:"sprintId"`
	}

	out := make([]itemOut, len(items))
	for i, it := range items {
		out[i] = itemOut{
			ID:          it.ID,
			Key:         it.Key,
			Title:       it.Title,
			Type:        string(it.Type),
			Status:      string(it.Status),
			Priority:    string(it.Priority),
			StoryPoints: it.StoryPoints,
			Assignee:    it.Assignee,
			SprintID:    it.SprintID,
		}
	}
	return jsonResult(out)
}

// board_create_item
func (s *Server) createItemTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_create_item",
		mcp.WithDescription("Create a work item. The project-scoped key (PROJ-n) is allocated automatically and the item lands at the tail of its column."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("type", mcp.Description("task, bug, story, epic, or subtask (default task)")),
		mcp.WithString("priority", mcp.Description("low, medium, high, or urgent (default medium)")),
		mcp.WithNumber("storyPoints", mcp.Description("Story point estimate")),
		mcp.WithString("assignee", mcp.Description("Assignee id")),
		mcp.WithString("sprint", mcp.Description("Sprint id to commit the item to")),
		mcp.WithString("actor", mcp.Description("Actor id recorded in the changelog")),
	)
	return tool, s.handleCreateItem
}

func (s *Server) handleCreateItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}

	item, err := s.engine.CreateItem(ctx, board.CreateItemParams{
		ProjectID:   p.ID,
		Title:       title,
		Type:        models.ItemType(request.GetString("type", "")),
		Priority:    models.ItemPriority(request.GetString("priority", "")),
		StoryPoints: request.GetFloat("storyPoints", 0),
		Assignee:    request.GetString("assignee", ""),
		SprintID:    request.GetString("sprint", ""),
		ActorID:     request.GetString("actor", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create item: %v", err)), nil
	}
	return jsonResult(item)
}

// board_move_item
func (s *Server) moveItemTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_move_item",
		mcp.WithDescription("Move a work item to a column and position. Moving into done is blocked while reviews are open."),
		mcp.WithString("item", mcp.Required(), mcp.Description("Item key (PROJ-12) or id")),
		mcp.WithString("status", mcp.Description("Target column; defaults to the current one")),
		mcp.WithString("after", mcp.Description("Key or id of the item to place this one after")),
		mcp.WithString("before", mcp.Description("Key or id of the item to place this one before")),
		mcp.WithString("actor", mcp.Description("Actor id recorded in the changelog")),
	)
	return tool, s.handleMoveItem
}

func (s *Server) handleMoveItem(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("item")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: item"), nil
	}
	item, err := s.resolveItem(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("item not found: %s", ref)), nil
	}

	resolveNeighbor := func(param string) (string, error) {
		v := request.GetString(param, "")
		if v == "" {
			return "", nil
		}
		n, err := s.resolveItem(ctx, v)
		if err != nil {
			return "", fmt.Errorf("%s item not found: %s", param, v)
		}
		return n.ID, nil
	}
	afterID, err := resolveNeighbor("after")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	beforeID, err := resolveNeighbor("before")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	moved, err := s.engine.MoveItem(ctx, item.ID, board.MoveParams{
		Status:   models.ItemStatus(request.GetString("status", "")),
		AfterID:  afterID,
		BeforeID: beforeID,
		ActorID:  request.GetString("actor", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to move item: %v", err)), nil
	}
	return jsonResult(moved)
}

// board_burndown
func (s *Server) burndownTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_burndown",
		mcp.WithDescription("Sprint burndown: per-day ideal and actual remaining story points, reconstructed from the changelog."),
		mcp.WithString("sprint", mcp.Required(), mcp.Description("Sprint id")),
	)
	return tool, s.handleBurndown
}

func (s *Server) handleBurndown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID, err := request.RequireString("sprint")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sprint"), nil
	}
	points, err := s.engine.Burndown(ctx, sprintID, metrics.ItemFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute burndown: %v", err)), nil
	}
	return jsonResult(points)
}

// board_sprint_kpis
func (s *Server) sprintKPIsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_sprint_kpis",
		mcp.WithDescription("Sprint KPIs: committed/completed/added/removed/spillover points, throughput, commitment reliability, cycle and lead time."),
		mcp.WithString("sprint", mcp.Required(), mcp.Description("Sprint id")),
	)
	return tool, s.handleSprintKPIs
}

func (s *Server) handleSprintKPIs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID, err := request.RequireString("sprint")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: sprint"), nil
	}
	kpis, err := s.engine.SprintKPIs(ctx, sprintID, metrics.ItemFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute KPIs: %v", err)), nil
	}
	return jsonResult(kpis)
}

// board_velocity
func (s *Server) velocityTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_velocity",
		mcp.WithDescription("Velocity across completed sprints: the per-sprint completed-points series plus average, median, trailing-5 stats, and a forecast."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project key or id")),
	)
	return tool, s.handleVelocity
}

func (s *Server) handleVelocity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: project"), nil
	}
	p, err := s.resolveProject(ctx, ref)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %s", ref)), nil
	}
	report, err := s.engine.Velocity(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to compute velocity: %v", err)), nil
	}
	return jsonResult(report)
}
