// Package session manages the pool of provider sessions and the rotation
// policy between them.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/sdheenr/Auto-Insta/pkg/auth"
	"github.com/sdheenr/Auto-Insta/pkg/contentsource"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

// Manager rotates through a fixed pool of credentials round-robin. Rotation
// happens either proactively, when the active session has been in use longer
// than the rotate interval, or reactively on classified errors.
type Manager struct {
	mu sync.Mutex

	connector contentsource.Connector
	creds     []auth.Credential
	interval  time.Duration

	idx        int
	activeIdx  int
	active     contentsource.Session
	lastRotate time.Time

	clock func() time.Time
	log   logger.Logger
}

// NewManager creates a session manager over the credential pool. The pool
// must not be empty.
func NewManager(connector contentsource.Connector, creds []auth.Credential, interval time.Duration, log logger.Logger) (*Manager, error) {
	if len(creds) == 0 {
		return nil, fmt.Errorf("credential pool is empty")
	}
	return &Manager{
		connector: connector,
		creds:     creds,
		interval:  interval,
		clock:     time.Now,
		log:       log,
	}, nil
}

// Activate authenticates the current credential. Must be called once before
// the first Active; a failure here is fatal for the run.
func (m *Manager) Activate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activateLocked()
}

func (m *Manager) activateLocked() error {
	cred := m.creds[m.idx]
	sess, err := m.connector.Authenticate(cred)
	if err != nil {
		return fmt.Errorf("failed to authenticate %s: %w", cred.Label(), err)
	}
	m.active = sess
	m.activeIdx = m.idx
	m.lastRotate = m.clock()
	m.log.WithField("credential", cred.Label()).Info("session activated")
	return nil
}

// Active returns the current session. Activate must have succeeded first.
func (m *Manager) Active() contentsource.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Label returns a loggable identity of the credential backing the active
// session. After a failed rotation this can differ from the pool position.
func (m *Manager) Label() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds[m.activeIdx].Label()
}

// PoolSize returns the number of credentials in the pool.
func (m *Manager) PoolSize() int {
	return len(m.creds)
}

// MaybeTimeRotate advances to the next credential when the rotate interval
// has elapsed. No-op for a single-credential pool. An authentication failure
// on the next credential keeps the current session in place.
func (m *Manager) MaybeTimeRotate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.creds) < 2 {
		return
	}
	if m.clock().Sub(m.lastRotate) < m.interval {
		return
	}

	from := m.creds[m.idx].Label()
	m.idx = (m.idx + 1) % len(m.creds)
	if err := m.activateLocked(); err != nil {
		m.log.WithError(err).Warn("scheduled rotation failed, keeping current session")
		m.idx = (m.idx - 1 + len(m.creds)) % len(m.creds)
		// Push the next attempt out a full interval.
		m.lastRotate = m.clock()
		return
	}
	logger.LogRotation(m.log, "interval", from, m.creds[m.idx].Label())
}

// RotateOnError advances to the next credential in response to a classified
// error. Returns false when the pool holds a single credential, meaning no
// rotation is possible; the caller still owns its backoff budget.
func (m *Manager) RotateOnError() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.creds) < 2 {
		return false
	}

	from := m.creds[m.activeIdx].Label()
	m.idx = (m.idx + 1) % len(m.creds)
	if err := m.activateLocked(); err != nil {
		// The previous session keeps serving; the advanced position means
		// the next rotation tries the credential after the broken one.
		m.log.WithError(err).Warn("error rotation failed, keeping current session")
		return true
	}
	logger.LogRotation(m.log, "error", from, m.creds[m.idx].Label())
	return true
}
