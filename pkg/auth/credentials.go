package auth

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Credential is one immutable authentication entry. SessionID is the only
// mandatory token; UserID and CSRFToken ride along when the source line was a
// full cookie string.
type Credential struct {
	Username     string    `json:"username,omitempty"`
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id,omitempty"`
	CSRFToken    string    `json:"csrf_token,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Label returns a loggable identity for the credential that never exposes
// the full session token.
func (c Credential) Label() string {
	if c.Username != "" {
		return c.Username
	}
	if len(c.SessionID) > 6 {
		return c.SessionID[:3] + "…" + c.SessionID[len(c.SessionID)-3:]
	}
	if c.SessionID != "" {
		return c.SessionID
	}
	return "unknown"
}

// ParseLine parses one sessions-file line. Supported formats, all historical:
//
//	sessionid=...; csrftoken=...; ds_user_id=...   (cookie string)
//	username|sessionid
//	username,sessionid
//	username sessionid
//	sessionid                                      (bare token)
//
// An empty line yields a zero Credential.
func ParseLine(line string) Credential {
	line = strings.TrimSpace(line)
	if line == "" {
		return Credential{}
	}

	if strings.Contains(line, "sessionid=") {
		kv := parseCookieKV(line)
		return Credential{
			SessionID: kv["sessionid"],
			UserID:    kv["ds_user_id"],
			CSRFToken: kv["csrftoken"],
			Username:  firstNonEmpty(kv["ds_user"], kv["username"]),
		}
	}

	for _, sep := range []string{"|", ","} {
		if strings.Contains(line, sep) {
			parts := strings.SplitN(line, sep, 2)
			return Credential{
				Username:  strings.TrimSpace(parts[0]),
				SessionID: strings.TrimSpace(parts[1]),
			}
		}
	}

	if fields := strings.Fields(line); len(fields) == 2 {
		return Credential{Username: fields[0], SessionID: fields[1]}
	}

	return Credential{SessionID: line}
}

func parseCookieKV(s string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if k, v, ok := strings.Cut(part, "="); ok {
			out[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoadFile reads a sessions file: one credential entry per line, blank lines
// and #-comments skipped. Lines without a session token are dropped.
func LoadFile(path string) ([]Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sessions file: %w", err)
	}
	defer f.Close()

	var creds []Credential
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if cred := ParseLine(line); cred.SessionID != "" {
			creds = append(creds, cred)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions file: %w", err)
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("%s contains no usable credential entries", path)
	}
	return creds, nil
}

// CredentialStore is the interface for persisted credential storage.
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(username string) (*Credential, error)
	List() ([]*Credential, error)
	Delete(username string) error
	Exists(username string) bool
}

// Manager layers credential stores: system keyring first, encrypted file as
// fallback, environment variables last.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves the credential using the first store that accepts it.
func (m *Manager) Store(cred *Credential) error {
	if cred.Username == "" {
		return errors.New("username is required")
	}
	if cred.SessionID == "" {
		return errors.New("session ID is required")
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(cred); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr != nil {
		return fmt.Errorf("failed to store credential: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a credential from the first store that has it.
func (m *Manager) Retrieve(username string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(username); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("credentials not found for user: %s", username)
}

// List returns all stored credentials across all stores, newest wins.
func (m *Manager) List() ([]*Credential, error) {
	byUser := make(map[string]*Credential)
	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byUser[cred.Username]; !ok || cred.LastModified.After(existing.LastModified) {
				byUser[cred.Username] = cred
			}
		}
	}

	var result []*Credential
	for _, cred := range byUser {
		result = append(result, cred)
	}
	return result, nil
}

// Delete removes the credential from every store holding it.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}
	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credential: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for user: %s", username)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "autoinsta")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "autoinsta")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "autoinsta")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "autoinsta")
		}
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize returns a copy of the credential with tokens masked for display.
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}
	return &Credential{
		Username:     cred.Username,
		SessionID:    maskString(cred.SessionID),
		UserID:       cred.UserID,
		CSRFToken:    maskString(cred.CSRFToken),
		LastModified: cred.LastModified,
	}
}

func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
