package clients

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

// Client is a dynamically registered OAuth client (RFC 7591). The
// secret is stored as a bcrypt hash and never logged; the plaintext is
// returned exactly once, in the registration response.
type Client struct {
	ID           string     `json:"id"`
	Type         ClientType `json:"type"`
	Name         string     `json:"name,omitempty"`
	SecretHash   string     `json:"secretHash,omitempty"`
	RedirectURIs []string   `json:"redirectURIs"`
	Scopes       []string   `json:"scopes,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasRedirectURI checks for a byte-identical match against the
// registered URIs. Prefix and trailing-slash variants never match;
// anything looser is an open-redirect hole.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// ValidateSecret compares a presented secret with the stored hash.
func (c *Client) ValidateSecret(secret string) error {
	if c.SecretHash == "" {
		return errors.ErrInvalidClientSecret
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return errors.ErrInvalidClientSecret
	}
	return nil
}
