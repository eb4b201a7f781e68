package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
	"github.com/sdheenr/Auto-Insta/pkg/harvest"
)

func TestParseMode(t *testing.T) {
	mode, err := parseMode("daily")
	require.NoError(t, err)
	assert.Equal(t, harvest.ModeIncremental, mode)

	mode, err = parseMode("INIT")
	require.NoError(t, err)
	assert.Equal(t, harvest.ModeBulk, mode)

	mode, err = parseMode("all")
	require.NoError(t, err)
	assert.Equal(t, harvest.ModeAll, mode)

	_, err = parseMode("weekly")
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	w, err := parseWindow("2024-01-01", "2024-06-30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), w.After)
	// A date-only upper bound extends to the following midnight so the
	// whole named day passes the strict bound.
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), w.Before)

	w, err = parseWindow("2024-01-01 08:30", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC), w.After)
	assert.True(t, w.Before.IsZero())

	_, err = parseWindow("01/02/2024", "")
	assert.Error(t, err)

	_, err = parseWindow("2024-06-30", "2024-01-01")
	assert.Error(t, err)
}

func TestGatherProfiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.txt")
	content := `# watchlist
alice
@Bob  # trailing comment
carol, dave
alice
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err := gatherProfiles(nil, path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave"}, profiles)
}

func TestGatherProfilesArgsWin(t *testing.T) {
	// Arguments alone skip the default file entirely.
	profiles, err := gatherProfiles([]string{"Eve", "eve", "@frank"}, "", "/nonexistent/profiles.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"eve", "frank"}, profiles)
}

func TestGatherProfilesMissingExplicitFile(t *testing.T) {
	_, err := gatherProfiles(nil, "/nonexistent/profiles.txt", "")
	assert.Error(t, err)
}

func TestGatherProfilesMissingDefaultFileIsFine(t *testing.T) {
	profiles, err := gatherProfiles(nil, "", "/nonexistent/profiles.txt")
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

// setTestConfigDir points the credential stores at a temp directory and
// returns the path the manager will use on this platform.
func setTestConfigDir(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "autoinsta")
	case "windows":
		appData := filepath.Join(home, "AppData", "Roaming")
		t.Setenv("APPDATA", appData)
		return filepath.Join(appData, "autoinsta")
	default:
		cfg := filepath.Join(home, "xdg")
		t.Setenv("XDG_CONFIG_HOME", cfg)
		return filepath.Join(cfg, "autoinsta")
	}
}

func TestLoadCredentialsPrefersSessionsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.txt")
	require.NoError(t, os.WriteFile(path, []byte("alice|sid_alice\n"), 0o644))

	creds, err := loadCredentials(path)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "alice", creds[0].Username)
}

func TestLoadCredentialsFallsBackToStoredAccounts(t *testing.T) {
	t.Setenv("AUTOINSTA_PASSPHRASE", "test-passphrase")
	t.Setenv("AUTOINSTA_SESSION_ID", "")
	cfgDir := setTestConfigDir(t)

	store, err := auth.NewEncryptedFileStore(filepath.Join(cfgDir, "credentials.enc"))
	require.NoError(t, err)
	require.NoError(t, store.Store(&auth.Credential{Username: "alice", SessionID: "sid_alice"}))

	creds, err := loadCredentials(filepath.Join(t.TempDir(), "sessions.txt"))
	require.NoError(t, err)

	names := make([]string, 0, len(creds))
	for _, cred := range creds {
		names = append(names, cred.Username)
	}
	assert.Contains(t, names, "alice")
}

func TestLoadCredentialsNothingAvailable(t *testing.T) {
	t.Setenv("AUTOINSTA_PASSPHRASE", "test-passphrase")
	t.Setenv("AUTOINSTA_SESSION_ID", "")
	setTestConfigDir(t)

	_, err := loadCredentials(filepath.Join(t.TempDir(), "sessions.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored accounts")
}
