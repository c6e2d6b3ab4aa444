package google

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxbridge/internal/logging"
)

// Store persists a single user's credential.
type Store interface {
	// Load returns the stored credential, or nil when there is none.
	Load() (*Credential, error)
	Save(*Credential) error
	// Path names the backing location for diagnostics.
	Path() string
}

// FileStore keeps the credential in a JSON file.
//
// Three on-disk shapes are understood: the authorized-user document that
// Google client libraries write (and that Save produces), a bare
// oauth2.Token document, and the legacy "<access> <refresh>" text file.
// A file that matches none of them is logged and treated as absent.
type FileStore struct {
	path   string
	logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path. Relative paths resolve
// against the working directory.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Exists reports whether the backing file is present.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the credential. A missing or undecodable file yields
// (nil, nil); only unexpected I/O failures are returned as errors.
func (s *FileStore) Load() (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file %s: %w", s.path, err)
	}

	cred, err := decodeCredential(data)
	if err != nil {
		s.logger.Warn("ignoring unreadable token file",
			logging.Operation("store.load"),
			logging.Path(s.path),
			logging.Err(err))
		return nil, nil
	}
	return cred, nil
}

// Save writes the credential in authorized-user form. The file is
// replaced atomically and is readable by the owner only.
func (s *FileStore) Save(cred *Credential) error {
	if cred == nil || cred.Token == nil {
		return errors.New("cannot save empty credential")
	}

	data, err := json.MarshalIndent(encodeCredential(cred), "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.json")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write token file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}

	s.logger.Debug("saved credential",
		logging.Operation("store.save"),
		logging.Path(s.path),
		slog.String("access_token", logging.SanitizeToken(cred.Token.AccessToken)))
	return nil
}

// tokenFile covers both the authorized-user and the oauth2.Token JSON
// layouts.
type tokenFile struct {
	Type         string   `json:"type,omitempty"`
	Token        string   `json:"token,omitempty"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenURI     string   `json:"token_uri,omitempty"`
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
	Expiry       string   `json:"expiry,omitempty"`

	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

const authorizedUserType = "authorized_user"

// legacyExpiry marks credentials read from the text format, which has no
// expiry, as already expired so the first use refreshes them.
var legacyExpiry = time.Unix(1, 0).UTC()

func encodeCredential(c *Credential) tokenFile {
	f := tokenFile{
		Type:         authorizedUserType,
		Token:        c.Token.AccessToken,
		RefreshToken: c.Token.RefreshToken,
		TokenURI:     c.TokenURI,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Scopes:       c.Scopes,
	}
	if !c.Token.Expiry.IsZero() {
		f.Expiry = c.Token.Expiry.UTC().Format(time.RFC3339Nano)
	}
	return f
}

func decodeCredential(data []byte) (*Credential, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, errors.New("empty token file")
	}
	if strings.HasPrefix(trimmed, "{") {
		return decodeJSONCredential([]byte(trimmed))
	}
	return decodeLegacyCredential(trimmed)
}

func decodeJSONCredential(data []byte) (*Credential, error) {
	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode token json: %w", err)
	}

	access := f.Token
	if access == "" {
		access = f.AccessToken
	}
	if access == "" && f.RefreshToken == "" {
		return nil, errors.New("token file holds neither an access nor a refresh token")
	}

	expiry, err := parseExpiry(f.Expiry)
	if err != nil {
		return nil, err
	}

	scopes := f.Scopes
	if len(scopes) == 0 && f.Scope != "" {
		scopes = strings.Fields(f.Scope)
	}

	tokenType := f.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &Credential{
		Token: &oauth2.Token{
			AccessToken:  access,
			RefreshToken: f.RefreshToken,
			TokenType:    tokenType,
			Expiry:       expiry,
		},
		Scopes:       scopes,
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		TokenURI:     f.TokenURI,
	}, nil
}

// parseExpiry accepts RFC 3339 timestamps with or without a zone. Values
// without a zone are UTC, as written by the Python client libraries.
func parseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: %w", s, err)
	}
	return t, nil
}

func decodeLegacyCredential(s string) (*Credential, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return nil, errors.New("unrecognised token file format")
	}
	tok := &oauth2.Token{
		AccessToken: fields[0],
		TokenType:   "Bearer",
		Expiry:      legacyExpiry,
	}
	if len(fields) == 2 {
		tok.RefreshToken = fields[1]
	}
	return &Credential{Token: tok}, nil
}
