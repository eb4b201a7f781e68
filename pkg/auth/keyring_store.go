package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "autoinsta"
	keyringPrefix  = "session_"
)

// KeyringStore implements CredentialStore using the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-based credential store. It fails when the
// system keyring is unavailable (headless Linux, for example).
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves the credential to the system keychain.
func (k *KeyringStore) Store(cred *Credential) error {
	if cred == nil || cred.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	key := keyringPrefix + cred.Username
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets a credential from the system keychain.
func (k *KeyringStore) Retrieve(username string) (*Credential, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	key := keyringPrefix + username
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	return &cred, nil
}

// List returns all stored credentials from the keychain.
func (k *KeyringStore) List() ([]*Credential, error) {
	// go-keyring cannot enumerate keys; the encrypted file store provides
	// listing instead.
	return []*Credential{}, nil
}

// Delete removes a credential from the system keychain.
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	key := keyringPrefix + username
	if err := keyring.Delete(keyringService, key); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks whether a credential exists in the keychain.
func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}

	_, err := keyring.Get(keyringService, keyringPrefix+username)
	return err == nil
}
