package gmail

// Status is the outcome reported by write operations.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Header defaults used when a message lacks the header.
const (
	DefaultFrom    = "Unknown"
	DefaultSubject = "No Subject"
	DefaultDate    = "Unknown"
)

// EmailSummary is a read-only projection of a remote message.
type EmailSummary struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// EmailContent is an EmailSummary plus the decoded plain text body.
type EmailContent struct {
	EmailSummary
	Body string `json:"body"`
}

// SendEmailRequest describes an outgoing plain text message. Cc and Bcc
// are comma separated address lists.
type SendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Cc      string `json:"cc,omitempty"`
	Bcc     string `json:"bcc,omitempty"`
}

// SendEmailResponse reports the result of Send. Send never returns a Go
// error; failures are reported with StatusError and a message.
type SendEmailResponse struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	EmailID string `json:"email_id,omitempty"`
}
