package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/store"
)

func newTestServer(t *testing.T) (*Server, *board.Engine) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	engine := board.New(s, nil)
	return NewServer(s, engine), engine
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func seedBoard(t *testing.T, e *board.Engine) (*models.Project, *models.Sprint) {
	t.Helper()
	ctx := context.Background()

	p, err := e.CreateProject(ctx, "PROJ", "Test Project", "")
	require.NoError(t, err)
	sp, err := e.CreateSprint(ctx, p.ID, "S1", "Sprint 1", "",
		time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return p, sp
}

func TestMCPServer_Registers(t *testing.T) {
	srv, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListItems(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()
	p, _ := seedBoard(t, e)

	_, err := e.CreateItem(ctx, board.CreateItemParams{ProjectID: p.ID, Title: "alpha task"})
	require.NoError(t, err)
	_, err = e.CreateItem(ctx, board.CreateItemParams{ProjectID: p.ID, Title: "beta bug", Type: models.TypeBug, Status: models.StatusTodo})
	require.NoError(t, err)

	// Project resolvable by key.
	result, err := srv.handleListItems(ctx, callToolReq("board_list_items", map[string]any{"project": "PROJ"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "alpha task")
	assert.Contains(t, text, "beta bug")

	// Status filter narrows.
	result, err = srv.handleListItems(ctx, callToolReq("board_list_items",
		map[string]any{"project": "PROJ", "status": "todo"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.NotContains(t, text, "alpha task")
	assert.Contains(t, text, "beta bug")
}

func TestHandleListItems_UnknownProject(t *testing.T) {
	srv, _ := newTestServer(t)
	result, err := srv.handleListItems(context.Background(),
		callToolReq("board_list_items", map[string]any{"project": "GHOST"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateItem(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()
	seedBoard(t, e)

	result, err := srv.handleCreateItem(ctx, callToolReq("board_create_item", map[string]any{
		"project": "PROJ", "title": "from mcp", "type": "story", "storyPoints": 3.0,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var item models.WorkItem
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &item))
	assert.Equal(t, "PROJ-1", item.Key)
	assert.Equal(t, models.TypeStory, item.Type)
	assert.Equal(t, 3.0, item.StoryPoints)

	// Missing title errors without panicking.
	result, err = srv.handleCreateItem(ctx, callToolReq("board_create_item",
		map[string]any{"project": "PROJ"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleMoveItem_ByKey(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()
	p, _ := seedBoard(t, e)

	a, err := e.CreateItem(ctx, board.CreateItemParams{ProjectID: p.ID, Title: "a"})
	require.NoError(t, err)
	b, err := e.CreateItem(ctx, board.CreateItemParams{ProjectID: p.ID, Title: "b"})
	require.NoError(t, err)
	c, err := e.CreateItem(ctx, board.CreateItemParams{ProjectID: p.ID, Title: "c"})
	require.NoError(t, err)

	result, err := srv.handleMoveItem(ctx, callToolReq("board_move_item", map[string]any{
		"item": c.Key, "after": a.Key, "before": b.Key,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var moved models.WorkItem
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &moved))
	assert.Greater(t, moved.Rank, a.Rank)
	assert.Less(t, moved.Rank, b.Rank)
}

func TestHandleBurndownAndKPIs(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()
	p, sp := seedBoard(t, e)

	_, err := e.StartSprint(ctx, sp.ID)
	require.NoError(t, err)
	_, err = e.CreateItem(ctx, board.CreateItemParams{
		ProjectID: p.ID, Title: "committed", SprintID: sp.ID, StoryPoints: 5,
	})
	require.NoError(t, err)

	result, err := srv.handleBurndown(ctx, callToolReq("board_burndown", map[string]any{"sprint": sp.ID}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var points []metrics.BurndownPoint
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &points))
	assert.Len(t, points, 5)

	result, err = srv.handleSprintKPIs(ctx, callToolReq("board_sprint_kpis", map[string]any{"sprint": sp.ID}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, err = srv.handleSprintKPIs(ctx, callToolReq("board_sprint_kpis", map[string]any{"sprint": "ghost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleVelocity(t *testing.T) {
	srv, e := newTestServer(t)
	ctx := context.Background()
	seedBoard(t, e)

	result, err := srv.handleVelocity(ctx, callToolReq("board_velocity", map[string]any{"project": "PROJ"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var report board.VelocityReport
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &report))
	assert.Zero(t, report.Stats.Forecast, "no completed sprints yet")
}
