package google

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/oauth2"
)

func TestCredentialState(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred *Credential
		want CredentialState
	}{
		{"nil", nil, StateAbsent},
		{"no token", &Credential{}, StateAbsent},
		{"valid", &Credential{Token: &oauth2.Token{AccessToken: "a", Expiry: now.Add(time.Hour)}}, StateValid},
		{"no expiry", &Credential{Token: &oauth2.Token{AccessToken: "a"}}, StateValid},
		{"about to expire", &Credential{Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: now.Add(5 * time.Second)}}, StateRefreshable},
		{"expired refreshable", &Credential{Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: now.Add(-time.Hour)}}, StateRefreshable},
		{"expired dead", &Credential{Token: &oauth2.Token{AccessToken: "a", Expiry: now.Add(-time.Hour)}}, StateDead},
		{"refresh only", &Credential{Token: &oauth2.Token{RefreshToken: "r"}}, StateRefreshable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.State(now))
		})
	}
}

func TestCredentialStateString(t *testing.T) {
	assert.Equal(t, "absent", StateAbsent.String())
	assert.Equal(t, "valid", StateValid.String())
	assert.Equal(t, "expired-refreshable", StateRefreshable.String())
	assert.Equal(t, "expired-dead", StateDead.String())
	assert.Equal(t, "unknown", CredentialState(42).String())
}

func TestCredentialEqual(t *testing.T) {
	base := func() *Credential {
		return &Credential{
			Token:    &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Unix(100, 0)},
			Scopes:   []string{"s1"},
			ClientID: "c",
		}
	}

	assert.True(t, base().Equal(base()))
	assert.True(t, (*Credential)(nil).Equal(nil))
	assert.False(t, base().Equal(nil))

	other := base()
	other.Token.Expiry = time.Unix(101, 0)
	assert.False(t, base().Equal(other))

	other = base()
	other.Scopes = append(other.Scopes, "s2")
	assert.False(t, base().Equal(other))

	// same instant in another zone is equal
	other = base()
	other.Token.Expiry = time.Unix(100, 0).In(time.FixedZone("x", 3600))
	assert.True(t, base().Equal(other))
}

func TestHasScopes(t *testing.T) {
	assert.True(t, HasScopes(nil, RequiredScopes))
	assert.True(t, HasScopes(RequiredScopes, RequiredScopes))
	assert.False(t, HasScopes(RequiredScopes[:1], RequiredScopes))
}
