package gmail_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxbridge/internal/gmail"
	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

// sentEmail is the data of a successful send.
type sentEmail struct {
	EmailID string `json:"email_id"`
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	req := gmail.SendEmailRequest{
		To:  common.OptionalString(request, "to"),
		Cc:  common.OptionalString(request, "cc"),
		Bcc: common.OptionalString(request, "bcc"),
	}

	// Subject and body must be supplied but may be empty.
	var err error
	if req.Subject, err = common.PresentString(request, "subject"); err != nil {
		return common.Failure(fmt.Sprintf("Failed to send email: %v", err)), nil
	}
	if req.Body, err = common.PresentString(request, "body"); err != nil {
		return common.Failure(fmt.Sprintf("Failed to send email: %v", err)), nil
	}

	// Reject bad input before asking for credentials.
	if _, err := gmail.BuildMessage(req); err != nil {
		return common.Failure(fmt.Sprintf("Failed to send email: %v", err)), nil
	}

	client, err := sc.GmailClient(ctx)
	if err != nil {
		return common.ErrorResult(err), nil
	}

	resp := client.Send(ctx, req)
	if resp.Status != gmail.StatusSuccess {
		return common.Failure(resp.Message), nil
	}
	return common.Success(sentEmail{EmailID: resp.EmailID}, resp.Message), nil
}
