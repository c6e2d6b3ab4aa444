package google

import (
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// LoadClientConfig reads the OAuth client secrets file issued by the
// Google Cloud console ("installed" or "web" application) and returns an
// oauth2.Config requesting scopes. Any failure is a ConfigurationError.
func LoadClientConfig(path string, scopes []string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("parse client secrets: %w", err)}
	}
	return cfg, nil
}

// clientConfigFromCredential rebuilds enough of an oauth2.Config to
// refresh a token when the stored credential carries its own client
// identity but no client secrets file is available.
func clientConfigFromCredential(c *Credential, scopes []string) *oauth2.Config {
	if c == nil || c.ClientID == "" {
		return nil
	}
	endpoint := google.Endpoint
	if c.TokenURI != "" {
		endpoint.TokenURL = c.TokenURI
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}
