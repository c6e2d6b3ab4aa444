// Package calendar_tools exposes the primary Google Calendar through MCP
// tools:
//
//   - calendar_list_upcoming_events: events starting from now
//   - calendar_search_events: free text search from a minimum start time
//   - calendar_create_event: create a timed or all-day event (not
//     registered in read-only mode)
//
// Event times are RFC 3339 timestamps, or dates for all-day events.
package calendar_tools
