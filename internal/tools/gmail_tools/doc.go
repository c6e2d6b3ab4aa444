// Package gmail_tools exposes Gmail through MCP tools:
//
//   - gmail_list_recent_emails: newest inbox messages
//   - gmail_search_emails: messages matching a Gmail search query
//   - gmail_get_email_content: headers and plain text body of one message
//   - gmail_send_email: send a plain text message (not registered in
//     read-only mode)
//
// Listings are capped at 10 messages. Every tool answers with the JSON
// envelope of package common.
package gmail_tools
