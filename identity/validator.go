package identity

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/internal/utils"
)

const (
	jwksRefreshInterval = time.Hour
	jwksRefreshTimeout  = 10 * time.Second
)

// IdPTokenValidator validates JWTs issued by the enterprise IdP against
// its published JWKS. Keys are cached and refreshed in the background;
// if keys cannot be fetched at all, every token is rejected.
type IdPTokenValidator struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

// NewIdPTokenValidator fetches the IdP JWKS and starts background refresh.
func NewIdPTokenValidator(ctx context.Context, jwksURL, issuer, audience string) (*IdPTokenValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   jwksRefreshInterval,
		RefreshTimeout:    jwksRefreshTimeout,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn().Err(err).Msg("JWKS refresh failed")
		},
	})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "fetching JWKS from %s: %v", jwksURL, err)
	}
	return &IdPTokenValidator{jwks: jwks, issuer: issuer, audience: audience}, nil
}

// NewIdPTokenValidatorFromJSON builds a validator from a static JWKS
// document. Used in tests and air-gapped deployments.
func NewIdPTokenValidatorFromJSON(raw json.RawMessage, issuer, audience string) (*IdPTokenValidator, error) {
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing static JWKS")
	}
	return &IdPTokenValidator{jwks: jwks, issuer: issuer, audience: audience}, nil
}

// Validate checks the token signature and claims and returns the user.
func (v *IdPTokenValidator) Validate(tokenString string) (UserContext, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return UserContext{}, errors.Wrapf(errors.ErrUnauthenticated, "token validation failed: %v", err)
	}
	return FromIDTokenClaims(mapToIDTokenClaims(claims)), nil
}

// Close stops the background JWKS refresh goroutine.
func (v *IdPTokenValidator) Close() {
	v.jwks.EndBackground()
}

func mapToIDTokenClaims(claims jwt.MapClaims) IDTokenClaims {
	out := IDTokenClaims{
		Subject:           stringClaim(claims, "sub"),
		ObjectID:          stringClaim(claims, "oid"),
		Email:             stringClaim(claims, "email"),
		PreferredUsername: stringClaim(claims, "preferred_username"),
		UPN:               stringClaim(claims, "upn"),
		Name:              stringClaim(claims, "name"),
	}
	if raw, ok := claims["groups"].([]any); ok {
		out.Groups = utils.ToStringSlice(raw)
	}
	return out
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}
