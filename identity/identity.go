package identity

import "strings"

// UserContext is the authenticated user for a single request, resolved
// from either a proxy-minted token or an edge-injected identity token.
// It is derived state: never persisted on its own, but embedded in
// every token record so no second lookup is needed per request.
type UserContext struct {
	// UserID is the IdP subject / object ID ("oid" or "sub" claim).
	UserID string `json:"user_id"`
	// Email is the primary email, lowercased.
	Email string `json:"email"`
	// Name is the display name.
	Name string `json:"name"`
	// Groups holds the IdP group object IDs the user belongs to.
	Groups []string `json:"groups,omitempty"`
}

// HasGroup reports whether the user belongs to the given group ID.
func (u UserContext) HasGroup(groupID string) bool {
	if groupID == "" {
		return false
	}
	for _, g := range u.Groups {
		if g == groupID {
			return true
		}
	}
	return false
}

// IDTokenClaims is the subset of IdP ID-token claims the proxy cares about.
type IDTokenClaims struct {
	Subject           string   `json:"sub"`
	ObjectID          string   `json:"oid"`
	Email             string   `json:"email"`
	PreferredUsername string   `json:"preferred_username"`
	UPN               string   `json:"upn"`
	Name              string   `json:"name"`
	Groups            []string `json:"groups"`
}

// FromIDTokenClaims normalizes raw IdP claims into a UserContext.
// Entra ID puts the stable user ID in "oid" and the email in
// "preferred_username"; other IdPs use "sub" and "email".
func FromIDTokenClaims(claims IDTokenClaims) UserContext {
	email := claims.PreferredUsername
	if email == "" {
		email = claims.Email
	}
	if email == "" {
		email = claims.UPN
	}
	email = strings.ToLower(email)

	name := claims.Name
	if name == "" && email != "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	userID := claims.ObjectID
	if userID == "" {
		userID = claims.Subject
	}

	return UserContext{
		UserID: userID,
		Email:  email,
		Name:   name,
		Groups: claims.Groups,
	}
}
