package gmail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxbridge/internal/gmail"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

func handleListRecentEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	maxResults, err := common.OptionalInt(request, "maxResults", gmail.MaxListResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	client, err := sc.GmailClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	emails, err := client.ListRecent(ctx, maxResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	return common.Success(emails, fmt.Sprintf("Found %d emails", len(emails))), nil
}

func handleSearchEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	query, err := common.RequiredString(request, "query")
	if err != nil {
		return common.ErrorResult(err), nil
	}
	maxResults, err := common.OptionalInt(request, "maxResults", gmail.MaxListResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	client, err := sc.GmailClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	emails, err := client.Search(ctx, query, maxResults)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	return common.Success(emails, fmt.Sprintf("Found %d emails matching %q", len(emails), query)), nil
}

func handleGetEmailContent(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	emailID, err := common.RequiredString(request, "emailId")
	if err != nil {
		return common.ErrorResult(err), nil
	}

	client, err := sc.GmailClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	content, err := client.GetContent(ctx, emailID)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	return common.Success(content, ""), nil
}
