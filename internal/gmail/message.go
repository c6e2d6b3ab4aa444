package gmail

import (
	"mime"
	"strings"

	"github.com/teemow/inboxbridge/internal/google"
)

// BuildMessage renders req as an RFC 2822 message ready to be base64url
// encoded for the Gmail send endpoint. Only a recipient is required; an
// empty subject or body is a legal message.
func BuildMessage(req SendEmailRequest) ([]byte, error) {
	to := SplitAddresses(req.To)
	if len(to) == 0 {
		return nil, &google.ValidationError{Field: "to", Message: "at least one recipient is required"}
	}

	cc := SplitAddresses(req.Cc)
	bcc := SplitAddresses(req.Bcc)

	// Header values must stay on one line.
	for _, h := range []struct{ name, value string }{
		{"to", req.To}, {"cc", req.Cc}, {"bcc", req.Bcc}, {"subject", req.Subject},
	} {
		if strings.ContainsAny(h.value, "\r\n") {
			return nil, &google.ValidationError{Field: h.name, Message: "must be a single line"}
		}
	}

	var b strings.Builder
	writeHeader(&b, "To", strings.Join(to, ", "))
	if len(cc) > 0 {
		writeHeader(&b, "Cc", strings.Join(cc, ", "))
	}
	if len(bcc) > 0 {
		writeHeader(&b, "Bcc", strings.Join(bcc, ", "))
	}
	writeHeader(&b, "Subject", encodeRFC2047(req.Subject))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", `text/plain; charset="UTF-8"`)
	b.WriteString("\r\n")
	b.WriteString(req.Body)

	return []byte(b.String()), nil
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// SplitAddresses splits a comma separated address list, dropping empty
// entries.
func SplitAddresses(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// encodeRFC2047 encodes non-ASCII header text as a MIME encoded-word.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}
