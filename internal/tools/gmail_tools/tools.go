package gmail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxbridge/internal/gmail"
	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

// Tool names.
const (
	ToolListRecentEmails = "gmail_list_recent_emails"
	ToolSearchEmails     = "gmail_search_emails"
	ToolGetEmailContent  = "gmail_get_email_content"
	ToolSendEmail        = "gmail_send_email"
)

var maxResultsDescription = fmt.Sprintf("Maximum number of emails to return (default and maximum: %d)", gmail.MaxListResults)

// RegisterGmailTools registers all Gmail-related tools with the MCP server
func RegisterGmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	listRecentTool := mcp.NewTool(ToolListRecentEmails,
		mcp.WithDescription("List the most recent emails in the Gmail inbox"),
		mcp.WithNumber("maxResults",
			mcp.Description(maxResultsDescription),
		),
	)
	s.AddTool(listRecentTool, instrumented(ToolListRecentEmails, sc, handleListRecentEmails))

	searchTool := mcp.NewTool(ToolSearchEmails,
		mcp.WithDescription("Search Gmail messages with a Gmail search query"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Gmail search query (e.g., 'from:user@example.com', 'is:unread subject:invoice')"),
		),
		mcp.WithNumber("maxResults",
			mcp.Description(maxResultsDescription),
		),
	)
	s.AddTool(searchTool, instrumented(ToolSearchEmails, sc, handleSearchEmails))

	contentTool := mcp.NewTool(ToolGetEmailContent,
		mcp.WithDescription("Get the headers and plain text body of an email"),
		mcp.WithString("emailId",
			mcp.Required(),
			mcp.Description("The ID of the email, as returned by the list and search tools"),
		),
	)
	s.AddTool(contentTool, instrumented(ToolGetEmailContent, sc, handleGetEmailContent))

	if readOnly {
		return nil
	}

	sendTool := mcp.NewTool(ToolSendEmail,
		mcp.WithDescription("Send a plain text email through Gmail"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Plain text email body"),
		),
		mcp.WithString("cc",
			mcp.Description("CC email address(es), comma-separated for multiple recipients"),
		),
		mcp.WithString("bcc",
			mcp.Description("BCC email address(es), comma-separated for multiple recipients"),
		),
	)
	s.AddTool(sendTool, instrumented(ToolSendEmail, sc, handleSendEmail))

	return nil
}

type handlerFunc func(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error)

func instrumented(name string, sc *server.ServerContext, h handlerFunc) common.ToolHandler {
	return common.InstrumentedToolHandler(name, google.ServiceGmail, sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return h(ctx, request, sc)
		})
}
