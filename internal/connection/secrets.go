package connection

import (
	"github.com/zalando/go-keyring"
)

// keyringService is the OS keyring service name under which secrets live.
const keyringService = "envlink"

// keyringPlaceholder marks a record whose secret lives in the OS keyring.
const keyringPlaceholder = "@keyring"

// SecretStore abstracts external storage for connection secrets.
type SecretStore interface {
	Store(name, secret string) error
	Lookup(name string) (string, error)
	Delete(name string) error
}

// KeyringStore keeps secrets in the OS keyring, keyed by connection name.
type KeyringStore struct{}

// NewKeyringStore returns a keyring-backed secret store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Store writes the secret for a connection.
func (k *KeyringStore) Store(name, secret string) error {
	return keyring.Set(keyringService, name, secret)
}

// Lookup reads the secret for a connection.
func (k *KeyringStore) Lookup(name string) (string, error) {
	return keyring.Get(keyringService, name)
}

// Delete removes the secret for a connection.
func (k *KeyringStore) Delete(name string) error {
	err := keyring.Delete(keyringService, name)
	if err == keyring.ErrNotFound {
		return nil
	}
	return err
}
