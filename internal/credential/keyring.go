package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "noticeboard"

// TokenKey is the keyring entry holding the API bearer token.
const TokenKey = "auth-token"

// ErrNotFound is returned when the requested credential does not exist.
var ErrNotFound = errors.New("credential not found")

// Opener opens a keyring. It exists so tests can substitute
// keyring.NewArrayKeyring for the system keychain.
type Opener func() (keyring.Keyring, error)

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/noticeboard/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("noticeboard-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Keyring reads and writes named secrets.
type Keyring struct {
	open Opener
}

// NewKeyring returns a Keyring backed by the system keyring.
func NewKeyring() *Keyring {
	return &Keyring{open: openKeyring}
}

// NewKeyringWith returns a Keyring using open to obtain the backend.
func NewKeyringWith(open Opener) *Keyring {
	return &Keyring{open: open}
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	ring, err := k.open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key string, value string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "noticeboard " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key. Removing a missing key is not an error.
func (k *Keyring) Delete(key string) error {
	ring, err := k.open()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Token returns the stored API token. It satisfies gateway.TokenSource.
func (k *Keyring) Token() (string, error) {
	return k.Get(TokenKey)
}

// SetToken stores the API token.
func (k *Keyring) SetToken(token string) error {
	return k.Set(TokenKey, token)
}

// DeleteToken removes the API token.
func (k *Keyring) DeleteToken() error {
	return k.Delete(TokenKey)
}
