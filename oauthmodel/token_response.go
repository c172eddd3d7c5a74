package oauthmodel

// TokenResponse is the standard OAuth2 token endpoint response format
// as defined in RFC 6749. Returned from /token for all grant types.
type TokenResponse struct {
	// AccessToken is an opaque token used to access protected tool
	// endpoints: "Authorization: Bearer <access_token>".
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken obtains a new token pair via grant_type=refresh_token.
	// Rotates on each use.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated list of granted scopes.
	Scope string `json:"scope,omitempty"`
}

// TokenRequest carries the form parameters of a /token call.
type TokenRequest struct {
	GrantType    GrantType
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
	RedirectURI  string
	RefreshToken string
}

// ErrorResponse is the OAuth error body (RFC 6749 §5.2).
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Standard OAuth error codes returned by the token and authorization
// endpoints. StateMismatch is not a wire code; it is surfaced
// distinctly in logs and collapsed to a generic failure for browsers.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidClient       = "invalid_client"
	ErrorCodeInvalidGrant        = "invalid_grant"
	ErrorCodeUnsupportedGrant    = "unsupported_grant_type"
	ErrorCodeServerError         = "server_error"
	ErrorCodeTemporarilyUnavail  = "temporarily_unavailable"
	ErrorCodeUnsupportedResponse = "unsupported_response_type"
)
