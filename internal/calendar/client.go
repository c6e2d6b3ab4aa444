package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/logging"
)

const (
	// DefaultUpcomingResults is used by ListUpcoming when no limit is given.
	DefaultUpcomingResults = 5
	// DefaultSearchResults is used by Search when no limit is given.
	DefaultSearchResults = 10
	// MaxResults is the largest page the Calendar API returns.
	MaxResults = 250
	// MaxSummaryLength is the longest event title CreateEvent accepts, in
	// characters.
	MaxSummaryLength = 60

	primaryCalendar = "primary"
	utcZone         = "UTC"
	dateLayout      = "2006-01-02"
)

// Client wraps the Google Calendar events service for the primary
// calendar.
type Client struct {
	svc     *calendar.EventsService
	logger  *slog.Logger
	metrics google.APIMetrics
	now     func() time.Time
}

// NewClient creates a Calendar v3 client. opts normally carry the token
// source.
func NewClient(ctx context.Context, logger *slog.Logger, metrics google.APIMetrics, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		svc:     svc.Events,
		logger:  logging.WithService(logger, google.ServiceCalendar),
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func limit(n, def int) int64 {
	switch {
	case n <= 0:
		return int64(def)
	case n > MaxResults:
		return MaxResults
	default:
		return int64(n)
	}
}

// ListUpcoming returns the next events on the primary calendar, ordered
// by start time.
func (c *Client) ListUpcoming(ctx context.Context, maxResults int) ([]Event, error) {
	call := c.svc.List(primaryCalendar).
		TimeMin(c.now().UTC().Format(time.RFC3339)).
		MaxResults(limit(maxResults, DefaultUpcomingResults)).
		SingleEvents(true).
		OrderBy("startTime")
	return c.listEvents(ctx, "events.list_upcoming", call)
}

// Search returns events matching req.Query that start after req.TimeMin.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Event, error) {
	timeMin := c.now().UTC().Format(time.RFC3339)
	if req.TimeMin != "" {
		t, err := ParseTimeMin(req.TimeMin)
		if err != nil {
			return nil, err
		}
		timeMin = t.Format(time.RFC3339)
	}

	call := c.svc.List(primaryCalendar).
		TimeMin(timeMin).
		MaxResults(limit(req.MaxResults, DefaultSearchResults)).
		SingleEvents(true).
		OrderBy("startTime")
	if req.Query != "" {
		call = call.Q(req.Query)
	}
	return c.listEvents(ctx, "events.search", call)
}

// ParseTimeMin accepts an RFC 3339 timestamp, a timestamp without offset
// (taken as UTC) or a date (midnight UTC).
func ParseTimeMin(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", dateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &google.ValidationError{Field: "timeMin", Message: fmt.Sprintf("%q is not an RFC 3339 timestamp or date", s)}
}

func (c *Client) listEvents(ctx context.Context, op string, call *calendar.EventsListCall) ([]Event, error) {
	logger := logging.WithOperation(c.logger, op)

	start := time.Now()
	res, err := call.Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceCalendar, op, start, err)
	if err != nil {
		logger.Error("calendar list failed", logging.Err(err))
		return nil, &google.RemoteAPIError{Service: google.ServiceCalendar, Operation: op, Err: err}
	}

	events := make([]Event, 0, len(res.Items))
	for _, item := range res.Items {
		ev, err := toEvent(op, item)
		if err != nil {
			logger.Warn("skipping event", logging.Err(err))
			continue
		}
		events = append(events, ev)
	}

	logger.Debug("listed events", slog.Int("count", len(events)))
	return events, nil
}

// toEvent projects a remote event, rejecting events without id, start
// or end.
func toEvent(op string, item *calendar.Event) (Event, error) {
	if item == nil || item.Id == "" {
		return Event{}, &google.SchemaError{Operation: op, Field: "id"}
	}
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
		Location:    item.Location,
		Description: item.Description,
		HTMLLink:    item.HtmlLink,
	}
	if ev.Start == "" {
		return Event{}, &google.SchemaError{Operation: op, RemoteID: item.Id, Field: "start"}
	}
	if ev.End == "" {
		return Event{}, &google.SchemaError{Operation: op, RemoteID: item.Id, Field: "end"}
	}
	if ev.Summary == "" {
		ev.Summary = DefaultSummary
	}
	return ev, nil
}

// ValidateCreateRequest checks req without contacting the API.
func ValidateCreateRequest(req CreateEventRequest) error {
	if strings.TrimSpace(req.Summary) == "" {
		return &google.ValidationError{Field: "summary", Message: "summary is required"}
	}
	if n := utf8.RuneCountInString(req.Summary); n > MaxSummaryLength {
		return &google.ValidationError{
			Field:   "summary",
			Message: fmt.Sprintf("exceeds %d characters limit (got %d)", MaxSummaryLength, n),
		}
	}
	if strings.TrimSpace(req.Start) == "" {
		return &google.ValidationError{Field: "start", Message: "start time is required"}
	}
	if strings.TrimSpace(req.End) == "" {
		return &google.ValidationError{Field: "end", Message: "end time is required"}
	}
	return nil
}

// toEventDateTime sends dates as all-day values and everything else as
// a dateTime in UTC.
func toEventDateTime(s string) *calendar.EventDateTime {
	s = strings.TrimSpace(s)
	if _, err := time.Parse(dateLayout, s); err == nil {
		return &calendar.EventDateTime{Date: s}
	}
	return &calendar.EventDateTime{DateTime: s, TimeZone: utcZone}
}

// CreateEvent inserts an event into the primary calendar. Invalid
// requests are rejected before any API call. Failures are reported in
// the response rather than as an error.
func (c *Client) CreateEvent(ctx context.Context, req CreateEventRequest) CreateEventResponse {
	const op = "events.insert"
	logger := logging.WithOperation(c.logger, op)

	if err := ValidateCreateRequest(req); err != nil {
		logger.Warn("rejected event", logging.Err(err))
		return CreateEventResponse{Status: StatusError, Message: fmt.Sprintf("Failed to create event: %v", err)}
	}

	event := &calendar.Event{
		Summary:     req.Summary,
		Start:       toEventDateTime(req.Start),
		End:         toEventDateTime(req.End),
		Description: req.Description,
		Location:    req.Location,
	}

	start := time.Now()
	created, err := c.svc.Insert(primaryCalendar, event).Context(ctx).Do()
	google.ObserveCall(ctx, c.metrics, google.ServiceCalendar, op, start, err)
	if err != nil {
		err = &google.RemoteAPIError{Service: google.ServiceCalendar, Operation: op, Err: err}
		logger.Error("calendar insert failed", logging.Err(err))
		return CreateEventResponse{Status: StatusError, Message: fmt.Sprintf("Failed to create event: %v", err)}
	}
	if created.Id == "" {
		err := &google.SchemaError{Operation: op, Field: "id"}
		logger.Error("calendar insert returned no id", logging.Err(err))
		return CreateEventResponse{Status: StatusError, Message: fmt.Sprintf("Failed to create event: %v", err)}
	}

	logger.Info("event created", logging.RemoteID(created.Id))
	return CreateEventResponse{
		Status:   StatusSuccess,
		EventID:  created.Id,
		HTMLLink: created.HtmlLink,
		Message:  "Event created successfully: " + req.Summary,
	}
}
