package calendar

import (
	calendar "google.golang.org/api/calendar/v3"
)

// Status is the outcome reported by CreateEvent.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DefaultSummary is used for events that have no title.
const DefaultSummary = "No title"

// Event is a projection of a remote calendar event. Start and End hold
// the remote dateTime value, or the date for all-day events.
type Event struct {
	ID          string `json:"id"`
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	HTMLLink    string `json:"htmlLink,omitempty"`
}

// SearchRequest selects events for Search. An empty TimeMin means now.
type SearchRequest struct {
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
	TimeMin    string `json:"timeMin,omitempty"`
}

// CreateEventRequest describes a new event. Start and End are RFC 3339
// timestamps interpreted in UTC when they carry no offset, or dates for
// all-day events.
type CreateEventRequest struct {
	Summary     string `json:"summary"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
}

// CreateEventResponse reports the result of CreateEvent.
type CreateEventResponse struct {
	Status   Status `json:"status"`
	EventID  string `json:"event_id,omitempty"`
	HTMLLink string `json:"htmlLink,omitempty"`
	Message  string `json:"message"`
}

// eventTime returns the dateTime of t, falling back to its date.
func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}
