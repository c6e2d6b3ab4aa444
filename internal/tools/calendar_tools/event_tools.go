package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxbridge/internal/calendar"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

func handleListUpcomingEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	maxResults, err := common.OptionalInt(request, "maxResults", calendar.DefaultUpcomingResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	client, err := sc.CalendarClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	events, err := client.ListUpcoming(ctx, maxResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	return common.Success(events, fmt.Sprintf("Found %d upcoming events", len(events))), nil
}

func handleSearchEvents(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	maxResults, err := common.OptionalInt(request, "maxResults", calendar.DefaultSearchResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}
	req := calendar.SearchRequest{
		Query:      common.OptionalString(request, "query"),
		MaxResults: maxResults,
		TimeMin:    common.OptionalString(request, "timeMin"),
	}
	if req.TimeMin != "" {
		if _, err := calendar.ParseTimeMin(req.TimeMin); err != nil {
			return common.ErrorResult(err), nil
		}
	}

	client, err := sc.CalendarClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	events, err := client.Search(ctx, req)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	return common.Success(events, fmt.Sprintf("Found %d events", len(events))), nil
}

// createdEvent is the data of a successful create.
type createdEvent struct {
	EventID  string `json:"event_id"`
	HTMLLink string `json:"htmlLink,omitempty"`
}

func handleCreateEvent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := calendar.CreateEventRequest{
		Summary:     common.OptionalString(request, "summary"),
		Start:       common.OptionalString(request, "start"),
		End:         common.OptionalString(request, "end"),
		Description: common.OptionalString(request, "description"),
		Location:    common.OptionalString(request, "location"),
	}

	// Oversized summaries are rejected without touching credentials.
	if err := calendar.ValidateCreateRequest(req); err != nil {
		return common.Failure(fmt.Sprintf("Failed to create event: %v", err)), nil
	}

	client, err := sc.CalendarClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	resp := client.CreateEvent(ctx, req)
	if resp.Status != calendar.StatusSuccess {
		return common.Failure(resp.Message), nil
	}
	return common.Success(createdEvent{EventID: resp.EventID, HTMLLink: resp.HTMLLink}, resp.Message), nil
}
