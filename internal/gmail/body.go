package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	gmail "google.golang.org/api/gmail/v1"
)

const textPlain = "text/plain"

// ExtractBody returns the decoded plain text of a message payload.
//
// For multipart messages the first text/plain part (depth first) is
// used. Single part messages decode the top-level body. Anything else
// yields an empty body.
func ExtractBody(payload *gmail.MessagePart) (string, error) {
	if payload == nil {
		return "", nil
	}

	if len(payload.Parts) > 0 {
		part := firstPart(payload, textPlain)
		if part == nil || part.Body == nil || part.Body.Data == "" {
			return "", nil
		}
		return decodeBody(part.Body.Data)
	}

	if payload.Body != nil && payload.Body.Data != "" {
		return decodeBody(payload.Body.Data)
	}
	return "", nil
}

// firstPart walks the part tree depth first and returns the first part
// of the given MIME type, excluding the root.
func firstPart(root *gmail.MessagePart, mimeType string) *gmail.MessagePart {
	for _, p := range root.Parts {
		if p == nil {
			continue
		}
		if strings.EqualFold(p.MimeType, mimeType) && p.Filename == "" {
			return p
		}
		if found := firstPart(p, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// decodeBody decodes base64url data with or without padding. Standard
// base64 is accepted as a fallback.
func decodeBody(data string) (string, error) {
	data = strings.TrimSpace(data)
	encodings := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}
	for _, enc := range encodings {
		if decoded, err := enc.DecodeString(data); err == nil {
			if !utf8.Valid(decoded) {
				return strings.ToValidUTF8(string(decoded), "�"), nil
			}
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("failed to decode message body: %d bytes of invalid base64", len(data))
}
