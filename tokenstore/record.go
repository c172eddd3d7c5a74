package tokenstore

import (
	"time"

	"github.com/jrsteele09/go-oauth-proxy/identity"
)

// Kind partitions records so lookup and expiry policy differ per type.
type Kind string

const (
	KindAuthCode     Kind = "auth_code"
	KindAccessToken  Kind = "access_token"
	KindRefreshToken Kind = "refresh_token"

	// KindPendingAuth tracks an authorization that is parked at the IdP
	// login page, keyed by the proxy's upstream state value.
	KindPendingAuth Kind = "pending_auth"

	// KindCodeGrant records which tokens were minted from a redeemed
	// authorization code, keyed by the code. Consulted on replay so the
	// whole chain can be revoked (stolen-code defense).
	KindCodeGrant Kind = "code_grant"
)

// Record lifetimes. Short-lived records are physically evicted by the
// store's native TTL, not merely ignored.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 24 * time.Hour
	AuthCodeTTL     = 5 * time.Minute
	PendingAuthTTL  = 5 * time.Minute
	CodeGrantTTL    = RefreshTokenTTL

	// ConsumedMarkerTTL is how long a consumed-code marker survives so
	// replays can be told apart from never-issued codes.
	ConsumedMarkerTTL = 30 * time.Minute
)

// UpstreamCredential holds the enterprise IdP's tokens, needed to call
// IdP-backed collaborators on the user's behalf.
type UpstreamCredential struct {
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
}

// Record is the unit of storage, addressable by (Kind, Value). The
// user identity is embedded directly, a deliberate denormalization
// that avoids a second lookup on every authenticated request.
type Record struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`

	ClientID string               `json:"client_id"`
	Scopes   []string             `json:"scopes,omitempty"`
	User     identity.UserContext `json:"user,omitempty"`

	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Authorization-flow fields (pending auth and auth codes).
	State               string `json:"state,omitempty"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
	RedirectURI         string `json:"redirect_uri,omitempty"`

	// UpstreamVerifier is the proxy's own PKCE verifier for its
	// exchange with the IdP, distinct from the client's pair.
	UpstreamVerifier string              `json:"upstream_verifier,omitempty"`
	Upstream         *UpstreamCredential `json:"upstream,omitempty"`

	// Code-grant fields: the token values minted from a redeemed code.
	GrantedAccess  string `json:"granted_access,omitempty"`
	GrantedRefresh string `json:"granted_refresh,omitempty"`
}

// Expired reports whether the record's absolute expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// clone returns a copy safe to hand to callers.
func (r *Record) clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Scopes = append([]string(nil), r.Scopes...)
	out.User.Groups = append([]string(nil), r.User.Groups...)
	if r.Upstream != nil {
		up := *r.Upstream
		out.Upstream = &up
	}
	return &out
}
