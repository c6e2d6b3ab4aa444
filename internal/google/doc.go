// Package google owns the OAuth2 credential lifecycle for the Gmail and
// Calendar APIs.
//
// A FileStore persists a single user's credential. A Manager turns
// whatever is on disk into a valid credential: it loads, validates,
// refreshes once when the access token has expired and a refresh token
// is available, and falls back to the interactive installed-app flow
// (LocalServerFlow) only when refreshing is impossible. Every credential
// minted by a refresh or by the flow is written back to the store before
// it is handed out.
//
// The typed errors in errors.go (ConfigurationError, AuthenticationError,
// RemoteAPIError, ValidationError, SchemaError) are shared by the API
// client packages and are meant to be matched with errors.As.
package google
