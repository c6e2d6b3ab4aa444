package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/logging"
)

// MaxListResults caps every listing and search.
const MaxListResults = 10

const (
	userID     = "me"
	inboxLabel = "INBOX"
)

// summaryHeaders are the headers fetched for an EmailSummary.
var summaryHeaders = []string{"From", "Subject", "Date"}

// Client wraps the Gmail Users service.
type Client struct {
	svc     *gmail.UsersService
	logger  *slog.Logger
	metrics google.APIMetrics
}

// NewClient creates a Gmail v1 client. opts normally carry the token
// source, e.g. option.WithTokenSource(manager.TokenSource(ctx)).
func NewClient(ctx context.Context, logger *slog.Logger, metrics google.APIMetrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:     svc.Users,
		logger:  logging.WithService(logger, google.ServiceGmail),
		metrics: metrics,
	}, nil
}

// ClampMaxResults bounds n to 1..MaxListResults. Non-positive values mean
// the maximum.
func ClampMaxResults(n int) int64 {
	if n <= 0 || n > MaxListResults {
		return MaxListResults
	}
	return int64(n)
}

// ListRecent returns the newest messages in the inbox.
func (c *Client) ListRecent(ctx context.Context, maxResults int) ([]EmailSummary, error) {
	call := c.svc.Messages.List(userID).
		LabelIds(inboxLabel).
		MaxResults(ClampMaxResults(maxResults))
	return c.listSummaries(ctx, "messages.list_recent", call)
}

// Search returns messages matching a Gmail search query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]EmailSummary, error) {
	call := c.svc.Messages.List(userID).
		Q(query).
		MaxResults(ClampMaxResults(maxResults))
	return c.listSummaries(ctx, "messages.search", call)
}

// listSummaries runs a list call and fetches summary headers for each
// hit. A message whose headers cannot be fetched is logged and skipped.
func (c *Client) listSummaries(ctx context.Context, op string, call *gmail.UsersMessagesListCall) ([]EmailSummary, error) {
	logger := logging.WithOperation(c.logger, op)

	start := time.Now()
	res, err := call.Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceGmail, op, start, err)
	if err != nil {
		logger.Error("gmail list failed", logging.Err(err))
		return nil, &google.RemoteAPIError{Service: google.ServiceGmail, Operation: op, Err: err}
	}

	summaries := make([]EmailSummary, 0, len(res.Messages))
	for _, ref := range res.Messages {
		if ref == nil || ref.Id == "" {
			logger.Warn("skipping listed message", logging.Err(&google.SchemaError{Operation: op, Field: "id"}))
			continue
		}
		summary, err := c.summary(ctx, ref.Id)
		if err != nil {
			logger.Warn("skipping message", logging.RemoteID(ref.Id), logging.Err(err))
			continue
		}
		summaries = append(summaries, summary)
	}

	logger.Debug("listed messages", slog.Int("count", len(summaries)))
	return summaries, nil
}

func (c *Client) summary(ctx context.Context, id string) (EmailSummary, error) {
	const op = "messages.get_metadata"

	start := time.Now()
	msg, err := c.svc.Messages.Get(userID, id).
		Format("metadata").
		MetadataHeaders(summaryHeaders...).
		Context(ctx).
		Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceGmail, op, start, err)
	if err != nil {
		return EmailSummary{}, &google.RemoteAPIError{Service: google.ServiceGmail, Operation: op, RemoteID: id, Err: err}
	}
	if msg.Payload == nil {
		return EmailSummary{}, &google.SchemaError{Operation: op, RemoteID: id, Field: "payload"}
	}
	return summaryFromPayload(id, msg.Payload), nil
}

// GetContent fetches a full message and decodes its plain text body.
func (c *Client) GetContent(ctx context.Context, id string) (*EmailContent, error) {
	const op = "messages.get"
	logger := logging.WithOperation(c.logger, op)

	start := time.Now()
	msg, err := c.svc.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceGmail, op, start, err)
	if err != nil {
		logger.Error("gmail get failed", logging.RemoteID(id), logging.Err(err))
		return nil, &google.RemoteAPIError{Service: google.ServiceGmail, Operation: op, RemoteID: id, Err: err}
	}
	if msg.Payload == nil {
		err := &google.SchemaError{Operation: op, RemoteID: id, Field: "payload"}
		logger.Error("gmail get returned no payload", logging.RemoteID(id), logging.Err(err))
		return nil, err
	}

	body, err := ExtractBody(msg.Payload)
	if err != nil {
		logger.Error("cannot decode message body", logging.RemoteID(id), logging.Err(err))
		return nil, fmt.Errorf("message %s: %w", id, err)
	}

	return &EmailContent{
		EmailSummary: summaryFromPayload(id, msg.Payload),
		Body:         body,
	}, nil
}

// Send sends a plain text message. Failures, including invalid input,
// are reported in the response rather than as an error.
func (c *Client) Send(ctx context.Context, req SendEmailRequest) SendEmailResponse {
	const op = "messages.send"
	logger := logging.WithOperation(c.logger, op)

	raw, err := BuildMessage(req)
	if err != nil {
		logger.Warn("rejected outgoing email", logging.Err(err))
		return SendEmailResponse{Status: StatusError, Message: fmt.Sprintf("Failed to send email: %v", err)}
	}

	start := time.Now()
	sent, err := c.svc.Messages.Send(userID, &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceGmail, op, start, err)
	if err != nil {
		logger.Error("gmail send failed", logging.Err(err))
		return SendEmailResponse{Status: StatusError, Message: fmt.Sprintf("Failed to send email: %v", err)}
	}

	logger.Info("email sent", logging.RemoteID(sent.Id))
	return SendEmailResponse{
		Status:  StatusSuccess,
		Message: "Email sent successfully",
		EmailID: sent.Id,
	}
}

// Profile returns the email address of the authorized account.
func (c *Client) Profile(ctx context.Context) (string, error) {
	const op = "users.get_profile"

	start := time.Now()
	p, err := c.svc.GetProfile(userID).Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceGmail, op, start, err)
	if err != nil {
		return "", &google.RemoteAPIError{Service: google.ServiceGmail, Operation: op, Err: err}
	}
	if p.EmailAddress == "" {
		return "", &google.SchemaError{Operation: op, Field: "emailAddress"}
	}
	return p.EmailAddress, nil
}

func summaryFromPayload(id string, payload *gmail.MessagePart) EmailSummary {
	return EmailSummary{
		ID:      id,
		From:    headerOr(payload, "From", DefaultFrom),
		Subject: headerOr(payload, "Subject", DefaultSubject),
		Date:    headerOr(payload, "Date", DefaultDate),
	}
}

// headerOr returns the first header named name, or def.
func headerOr(payload *gmail.MessagePart, name, def string) string {
	for _, h := range payload.Headers {
		if h != nil && h.Name == name {
			return h.Value
		}
	}
	return def
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var apiErr *google.RemoteAPIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}
