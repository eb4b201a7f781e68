package auth

import (
	"os"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Read-only; useful in CI and containerized runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (s *EnvironmentStore) Store(cred *Credential) error {
	return ErrInvalidCredentials
}

// Retrieve gets a credential from environment variables when the requested
// username matches AUTOINSTA_USERNAME (or when it is empty).
func (s *EnvironmentStore) Retrieve(username string) (*Credential, error) {
	cred := s.fromEnv()
	if cred == nil {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && cred.Username != username {
		return nil, ErrCredentialsNotFound
	}
	return cred, nil
}

// List returns the environment credential, if any.
func (s *EnvironmentStore) List() ([]*Credential, error) {
	if cred := s.fromEnv(); cred != nil {
		return []*Credential{cred}, nil
	}
	return []*Credential{}, nil
}

// Delete is not supported for environment variables.
func (s *EnvironmentStore) Delete(username string) error {
	return ErrCredentialsNotFound
}

// Exists checks whether the environment provides matching credentials.
func (s *EnvironmentStore) Exists(username string) bool {
	_, err := s.Retrieve(username)
	return err == nil
}

func (s *EnvironmentStore) fromEnv() *Credential {
	sessionID := os.Getenv("AUTOINSTA_SESSION_ID")
	if sessionID == "" {
		return nil
	}
	return &Credential{
		Username:  os.Getenv("AUTOINSTA_USERNAME"),
		SessionID: sessionID,
		UserID:    os.Getenv("AUTOINSTA_USER_ID"),
		CSRFToken: os.Getenv("AUTOINSTA_CSRF_TOKEN"),
	}
}
