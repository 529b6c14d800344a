package local

import (
	"errors"
	"net/url"
	"time"
)

const credentialsCollection = "credentials"

// Credentials is a saved login for one server.
type Credentials struct {
	ServerURL string    `json:"server_url"`
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session token is past its expiry.
func (c *Credentials) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// CredentialStore saves one login per server host.
type CredentialStore struct {
	store *Store
}

// NewCredentialStore creates a credential store over store.
func NewCredentialStore(store *Store) *CredentialStore {
	return &CredentialStore{store: store}
}

// Save stores creds, replacing any login for the same server.
func (c *CredentialStore) Save(creds *Credentials) error {
	return c.store.Save(credentialsCollection, credentialKey(creds.ServerURL), creds)
}

// Load returns the login for serverURL. An expired login is removed and
// reported as ErrNotFound.
func (c *CredentialStore) Load(serverURL string) (*Credentials, error) {
	var creds Credentials
	if err := c.store.Load(credentialsCollection, credentialKey(serverURL), &creds); err != nil {
		return nil, err
	}
	if creds.Expired() {
		_ = c.Delete(serverURL)
		return nil, ErrNotFound
	}
	return &creds, nil
}

// Delete forgets the login for serverURL. Deleting a missing login is not an error.
func (c *CredentialStore) Delete(serverURL string) error {
	err := c.store.Delete(credentialsCollection, credentialKey(serverURL))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// credentialKey turns a server URL into a file-safe record id.
func credentialKey(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return "default"
	}
	key := []byte(u.Host)
	for i, b := range key {
		if b == ':' {
			key[i] = '_'
		}
	}
	return string(key)
}
