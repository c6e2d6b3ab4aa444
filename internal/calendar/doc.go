// Package calendar provides a client for the primary Google Calendar of
// the authorized account.
//
// It lists upcoming events, searches events and creates events. Read
// operations return errors; CreateEvent reports failures in its response
// instead.
//
// Example usage:
//
//	client, err := calendar.NewClient(ctx, logger, metrics,
//	    option.WithTokenSource(manager.TokenSource(ctx)))
//	if err != nil {
//	    return err
//	}
//
//	events, err := client.ListUpcoming(ctx, 5)
package calendar
