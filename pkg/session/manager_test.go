package session

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

type fakeSession struct {
	cred auth.Credential
}

func (f *fakeSession) Items(profile string, kind contentsource.StreamKind) (contentsource.Iterator, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeSession) FetchItem(item *contentsource.Item, destDir string) error { return nil }
func (f *fakeSession) FetchMedia(locator, destPath string) error                { return nil }

type fakeConnector struct {
	authCalls []string
	failFor   map[string]bool
}

func (f *fakeConnector) Authenticate(cred auth.Credential) (contentsource.Session, error) {
	f.authCalls = append(f.authCalls, cred.Username)
	if f.failFor[cred.Username] {
		return nil, errors.New("auth rejected")
	}
	return &fakeSession{cred: cred}, nil
}

func poolOf(names ...string) []auth.Credential {
	creds := make([]auth.Credential, len(names))
	for i, n := range names {
		creds[i] = auth.Credential{Username: n, SessionID: "sid_" + n}
	}
	return creds
}

func TestNewManagerEmptyPool(t *testing.T) {
	_, err := NewManager(&fakeConnector{}, nil, time.Minute, logger.NewNopLogger())
	assert.Error(t, err)
}

func TestActivateFailureIsFatal(t *testing.T) {
	conn := &fakeConnector{failFor: map[string]bool{"alice": true}}
	m, err := NewManager(conn, poolOf("alice"), time.Minute, logger.NewNopLogger())
	require.NoError(t, err)

	assert.Error(t, m.Activate())
}

func TestMaybeTimeRotate(t *testing.T) {
	conn := &fakeConnector{}
	m, err := NewManager(conn, poolOf("alice", "bob"), 120*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }
	require.NoError(t, m.Activate())
	assert.Equal(t, "alice", m.Label())

	// Before the interval elapses nothing happens.
	now = now.Add(60 * time.Second)
	m.MaybeTimeRotate()
	assert.Equal(t, "alice", m.Label())

	// After the interval the next credential becomes active.
	now = now.Add(61 * time.Second)
	m.MaybeTimeRotate()
	assert.Equal(t, "bob", m.Label())

	// The rotation clock resets; an immediate second call is a no-op.
	m.MaybeTimeRotate()
	assert.Equal(t, "bob", m.Label())
}

func TestMaybeTimeRotateSingleCredential(t *testing.T) {
	conn := &fakeConnector{}
	m, err := NewManager(conn, poolOf("alice"), 120*time.Second, logger.NewNopLogger())
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }
	require.NoError(t, m.Activate())

	now = now.Add(time.Hour)
	m.MaybeTimeRotate()

	assert.Equal(t, "alice", m.Label())
	assert.Equal(t, []string{"alice"}, conn.authCalls)
}

func TestRotateOnError(t *testing.T) {
	conn := &fakeConnector{}
	m, err := NewManager(conn, poolOf("alice", "bob", "carol"), time.Minute, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Activate())

	assert.True(t, m.RotateOnError())
	assert.Equal(t, "bob", m.Label())

	assert.True(t, m.RotateOnError())
	assert.Equal(t, "carol", m.Label())

	// Wraps around.
	assert.True(t, m.RotateOnError())
	assert.Equal(t, "alice", m.Label())
}

func TestRotateOnErrorFailedActivationKeepsLabelTruthful(t *testing.T) {
	conn := &fakeConnector{failFor: map[string]bool{"bob": true}}
	m, err := NewManager(conn, poolOf("alice", "bob", "carol"), time.Minute, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Activate())

	// Bob's credential is dead: alice's session keeps serving and the label
	// still names her.
	assert.True(t, m.RotateOnError())
	assert.Equal(t, "alice", m.Label())
	assert.NotNil(t, m.Active())

	// The next rotation moves past the broken credential.
	assert.True(t, m.RotateOnError())
	assert.Equal(t, "carol", m.Label())
	assert.Equal(t, []string{"alice", "bob", "carol"}, conn.authCalls)
}

func TestRotateOnErrorSingleCredential(t *testing.T) {
	conn := &fakeConnector{}
	m, err := NewManager(conn, poolOf("alice"), time.Minute, logger.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, m.Activate())

	assert.False(t, m.RotateOnError())
	assert.Equal(t, "alice", m.Label())
}
