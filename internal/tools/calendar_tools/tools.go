package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxbridge/internal/calendar"
	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

// Tool names.
const (
	ToolListUpcomingEvents = "calendar_list_upcoming_events"
	ToolSearchEvents       = "calendar_search_events"
	ToolCreateEvent        = "calendar_create_event"
)

// RegisterCalendarTools registers all Calendar-related tools with the MCP server
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listUpcomingTool := mcp.NewTool(ToolListUpcomingEvents,
		mcp.WithDescription("List upcoming events in the primary calendar, soonest first"),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events to return (default: %d)", calendar.DefaultUpcomingResults)),
		),
	)
	s.AddTool(listUpcomingTool, instrumented(ToolListUpcomingEvents, sc, handleListUpcomingEvents))

	searchTool := mcp.NewTool(ToolSearchEvents,
		mcp.WithDescription("Search events in the primary calendar"),
		mcp.WithString("query",
			mcp.Description("Free text matched against summary, description, location and attendees"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(fmt.Sprintf("Maximum number of events to return (default: %d)", calendar.DefaultSearchResults)),
		),
		mcp.WithString("timeMin",
			mcp.Description("Only events ending after this time, RFC 3339 (e.g., '2024-03-10T09:00:00Z') or a date (default: now)"),
		),
	)
	s.AddTool(searchTool, instrumented(ToolSearchEvents, sc, handleSearchEvents))

	if readOnly {
		return nil
	}

	createTool := mcp.NewTool(ToolCreateEvent,
		mcp.WithDescription("Create an event in the primary calendar"),
		mcp.WithString("summary",
			mcp.Required(),
			mcp.Description(fmt.Sprintf("Event title (at most %d characters)", calendar.MaxSummaryLength)),
		),
		mcp.WithString("start",
			mcp.Required(),
			mcp.Description("Start time, RFC 3339 (e.g., '2024-03-10T09:00:00Z'; no offset means UTC) or a date for all-day events"),
		),
		mcp.WithString("end",
			mcp.Required(),
			mcp.Description("End time, same format as start"),
		),
		mcp.WithString("description",
			mcp.Description("Event description"),
		),
		mcp.WithString("location",
			mcp.Description("Event location"),
		),
	)
	s.AddTool(createTool, instrumented(ToolCreateEvent, sc, handleCreateEvent))

	return nil
}

type handlerFunc func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

func instrumented(name string, sc *server.ServerContext, h handlerFunc) common.ToolHandler {
	return common.InstrumentedToolHandler(name, google.ServiceCalendar, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return h(ctx, request, sc)
		})
}
