// Package gmail reads, searches and sends mail through the Gmail v1 API.
//
// Read operations return typed projections (EmailSummary, EmailContent)
// or a *google.RemoteAPIError. Send never fails with a Go error: it
// reports the outcome in a SendEmailResponse.
package gmail
