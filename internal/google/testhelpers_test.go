package google

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeClientSecrets writes an installed-app client secrets file whose
// token endpoint is tokenURL and returns its path.
func writeClientSecrets(t *testing.T, tokenURL string) string {
	t.Helper()
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	content := fmt.Sprintf(`{
  "installed": {
    "client_id": "test-client.apps.googleusercontent.com",
    "client_secret": "test-secret",
    "auth_uri": "https://accounts.google.com/o/oauth2/auth",
    "token_uri": %q,
    "redirect_uris": ["http://localhost"]
  }
}`, tokenURL)
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
