package google

import (
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
)

// RequiredScopes is the fixed scope set requested on every authorization:
// read-only mail, full mail (send and modify), calendar read and calendar
// event write.
var RequiredScopes = []string{
	gmail.GmailReadonlyScope,
	gmail.MailGoogleComScope,
	calendar.CalendarScope,
	calendar.CalendarEventsScope,
}

// HasScopes reports whether granted covers every scope in required.
// An empty granted set is treated as unknown and accepted, since older
// token files do not record scopes.
func HasScopes(granted, required []string) bool {
	if len(granted) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
