package google

import (
	"slices"
	"time"

	"golang.org/x/oauth2"
)

// expiryDelta mirrors the early-expiry window used by golang.org/x/oauth2
// so a token is never handed out seconds before it lapses.
const expiryDelta = 10 * time.Second

// CredentialState classifies a credential.
type CredentialState int

const (
	StateAbsent CredentialState = iota
	StateValid
	StateRefreshable
	StateDead
)

func (s CredentialState) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateRefreshable:
		return "expired-refreshable"
	case StateDead:
		return "expired-dead"
	default:
		return "unknown"
	}
}

// Credential is one user's OAuth token material together with the
// client identity it was issued to.
type Credential struct {
	Token        *oauth2.Token
	Scopes       []string
	ClientID     string
	ClientSecret string
	TokenURI     string
}

// State classifies c at time now. A nil credential is absent. A token
// without an expiry is considered valid, matching oauth2.Token.
func (c *Credential) State(now time.Time) CredentialState {
	if c == nil || c.Token == nil {
		return StateAbsent
	}
	if c.Token.AccessToken != "" && (c.Token.Expiry.IsZero() || now.Add(expiryDelta).Before(c.Token.Expiry)) {
		return StateValid
	}
	if c.Token.RefreshToken != "" {
		return StateRefreshable
	}
	return StateDead
}

// Equal reports whether two credentials carry the same tokens, expiry,
// scopes and client identity.
func (c *Credential) Equal(o *Credential) bool {
	if c == nil || o == nil {
		return c == o
	}
	if (c.Token == nil) != (o.Token == nil) {
		return false
	}
	if c.Token != nil {
		if c.Token.AccessToken != o.Token.AccessToken ||
			c.Token.RefreshToken != o.Token.RefreshToken ||
			!c.Token.Expiry.Equal(o.Token.Expiry) {
			return false
		}
	}
	return slices.Equal(c.Scopes, o.Scopes) &&
		c.ClientID == o.ClientID &&
		c.ClientSecret == o.ClientSecret &&
		c.TokenURI == o.TokenURI
}

// withClient fills in the client identity from cfg where c has none.
func (c *Credential) withClient(cfg *oauth2.Config) *Credential {
	if cfg == nil {
		return c
	}
	if c.ClientID == "" {
		c.ClientID = cfg.ClientID
	}
	if c.ClientSecret == "" {
		c.ClientSecret = cfg.ClientSecret
	}
	if c.TokenURI == "" {
		c.TokenURI = cfg.Endpoint.TokenURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = slices.Clone(cfg.Scopes)
	}
	return c
}
