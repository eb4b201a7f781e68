package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Credential
	}{
		{
			name: "cookie string",
			line: "sessionid=abc123def; csrftoken=tok; ds_user_id=99; ds_user=alice",
			want: Credential{Username: "alice", SessionID: "abc123def", UserID: "99", CSRFToken: "tok"},
		},
		{
			name: "cookie string without username",
			line: "ds_user_id=42; sessionid=xyz",
			want: Credential{SessionID: "xyz", UserID: "42"},
		},
		{
			name: "pipe separated",
			line: "bob|session_token_1",
			want: Credential{Username: "bob", SessionID: "session_token_1"},
		},
		{
			name: "comma separated",
			line: "carol, session_token_2",
			want: Credential{Username: "carol", SessionID: "session_token_2"},
		},
		{
			name: "space separated",
			line: "dave session_token_3",
			want: Credential{Username: "dave", SessionID: "session_token_3"},
		},
		{
			name: "bare token",
			line: "just_a_session_id",
			want: Credential{SessionID: "just_a_session_id"},
		},
		{
			name: "empty line",
			line: "   ",
			want: Credential{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.txt")
	content := `# rotation pool
alice|token_a

bob,token_b
sessionid=token_c; ds_user=carol
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	creds, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, creds, 3)

	assert.Equal(t, "alice", creds[0].Username)
	assert.Equal(t, "token_a", creds[0].SessionID)
	assert.Equal(t, "bob", creds[1].Username)
	assert.Equal(t, "carol", creds[2].Username)
	assert.Equal(t, "token_c", creds[2].SessionID)
}

func TestLoadFileNoUsableEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.txt")
	require.NoError(t, os.WriteFile(path, []byte("# only comments\n\n"), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/sessions.txt")
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "alice", Credential{Username: "alice", SessionID: "secret"}.Label())
	assert.Equal(t, "abc…xyz", Credential{SessionID: "abc123456xyz"}.Label())
	assert.Equal(t, "short", Credential{SessionID: "short"}.Label())
	assert.Equal(t, "unknown", Credential{}.Label())
}

func TestEncryptedFileStore(t *testing.T) {
	t.Setenv("AUTOINSTA_PASSPHRASE", "test-passphrase")

	dir := t.TempDir()
	store, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	require.NoError(t, err)

	cred := &Credential{Username: "alice", SessionID: "token_a", CSRFToken: "csrf"}
	require.NoError(t, store.Store(cred))

	got, err := store.Retrieve("alice")
	require.NoError(t, err)
	assert.Equal(t, "token_a", got.SessionID)
	assert.Equal(t, "csrf", got.CSRFToken)

	assert.True(t, store.Exists("alice"))
	assert.False(t, store.Exists("bob"))

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.Delete("alice"))
	_, err = store.Retrieve("alice")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("AUTOINSTA_SESSION_ID", "env_token")
	t.Setenv("AUTOINSTA_USERNAME", "envuser")

	store := NewEnvironmentStore()

	cred, err := store.Retrieve("envuser")
	require.NoError(t, err)
	assert.Equal(t, "env_token", cred.SessionID)

	_, err = store.Retrieve("someone_else")
	assert.Error(t, err)

	assert.Error(t, store.Store(&Credential{Username: "x", SessionID: "y"}))
}

func TestSanitize(t *testing.T) {
	cred := &Credential{Username: "alice", SessionID: "0123456789abcdef", CSRFToken: "tok"}
	safe := Sanitize(cred)

	assert.Equal(t, "alice", safe.Username)
	assert.Equal(t, "0123...cdef", safe.SessionID)
	assert.Equal(t, "********", safe.CSRFToken)
	// Original untouched.
	assert.Equal(t, "0123456789abcdef", cred.SessionID)
}
