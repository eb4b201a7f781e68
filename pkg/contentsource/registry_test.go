package contentsource

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
)

type stubConnector struct{ name string }

func (s *stubConnector) Authenticate(cred auth.Credential) (Session, error) {
	return nil, errors.New("stub")
}

func resetRegistry() {
	connectorsMu.Lock()
	connectors = make(map[string]Connector)
	connectorsMu.Unlock()
}

func TestOpenNoneRegistered(t *testing.T) {
	resetRegistry()
	_, err := Open("")
	assert.Error(t, err)
}

func TestOpenSoleConnector(t *testing.T) {
	resetRegistry()
	stub := &stubConnector{name: "only"}
	Register("only", stub)

	got, err := Open("")
	require.NoError(t, err)
	assert.Same(t, Connector(stub), got)
}

func TestOpenByName(t *testing.T) {
	resetRegistry()
	a := &stubConnector{name: "a"}
	b := &stubConnector{name: "b"}
	Register("a", a)
	Register("b", b)

	got, err := Open("b")
	require.NoError(t, err)
	assert.Same(t, Connector(b), got)

	// Ambiguous without a name.
	_, err = Open("")
	assert.Error(t, err)

	_, err = Open("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, Registered())
}

func TestRegisterDuplicatePanics(t *testing.T) {
	resetRegistry()
	Register("dup", &stubConnector{})
	assert.Panics(t, func() { Register("dup", &stubConnector{}) })
}

func TestItemBasename(t *testing.T) {
	loc := time.FixedZone("plus3", 3*3600)
	item := &Item{TakenAt: time.Date(2024, 1, 31, 2, 30, 0, 0, loc)}
	assert.Equal(t, "2024-01-30_23-30-00_UTC", item.Basename())
}
