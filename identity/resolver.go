package identity

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	autherrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// TokenLookup resolves a proxy-minted opaque access token to the user
// embedded in its record. Implemented by the token store.
type TokenLookup interface {
	LookupAccessToken(ctx context.Context, token string) (UserContext, error)
}

// Strategy is one way of establishing who the caller is. Resolve
// returns (nil, nil) when the credential shape it handles is absent,
// so the resolver can move on to the next strategy. Any error is
// terminal. A present-but-invalid credential is never ignored.
type Strategy interface {
	Name() string
	Resolve(r *http.Request) (*UserContext, error)
}

// Resolver tries its strategies in a fixed order and returns the first
// resolved identity, or ErrUnauthenticated when none applies.
type Resolver struct {
	strategies []Strategy
}

func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

func (res *Resolver) Resolve(r *http.Request) (UserContext, error) {
	for _, s := range res.strategies {
		user, err := s.Resolve(r)
		if err != nil {
			return UserContext{}, errors.Wrapf(err, "[Resolver] %s strategy", s.Name())
		}
		if user != nil {
			return *user, nil
		}
	}
	return UserContext{}, autherrors.ErrUnauthenticated
}

// BearerTokenStrategy resolves "Authorization: Bearer <token>" against
// proxy-minted access tokens in the token store.
type BearerTokenStrategy struct {
	Lookup TokenLookup
}

func (BearerTokenStrategy) Name() string { return "bearer-token" }

func (s BearerTokenStrategy) Resolve(r *http.Request) (*UserContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, autherrors.ErrUnauthenticated
	}

	user, err := s.Lookup.LookupAccessToken(r.Context(), token)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) || autherrors.Is(err, autherrors.ErrTokenExpired) {
			return nil, autherrors.ErrUnauthenticated
		}
		// Store outage: fail closed, but keep the infrastructure error
		// distinct from a bad credential.
		return nil, err
	}
	return &user, nil
}

// EdgeHeaderStrategy resolves identity headers injected by the trusted
// edge-authentication layer in front of the dashboard surface. The
// headers are only honored when the request carries the edge layer's
// shared secret, and the forwarded token is still signature-checked
// against the IdP JWKS before any trust is extended.
type EdgeHeaderStrategy struct {
	SharedSecret string
	SecretHeader string
	TokenHeader  string
	Validator    *IdPTokenValidator
}

// DefaultEdgeSecretHeader is the header the edge layer stamps with its
// shared secret on every forwarded request.
const DefaultEdgeSecretHeader = "X-Edge-Auth"

func (EdgeHeaderStrategy) Name() string { return "edge-header" }

func (s EdgeHeaderStrategy) Resolve(r *http.Request) (*UserContext, error) {
	if s.SharedSecret == "" {
		// Edge surface disabled; never applicable.
		return nil, nil
	}
	token := r.Header.Get(s.TokenHeader)
	if token == "" {
		return nil, nil
	}

	secretHeader := s.SecretHeader
	if secretHeader == "" {
		secretHeader = DefaultEdgeSecretHeader
	}
	provided := r.Header.Get(secretHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.SharedSecret)) != 1 {
		return nil, autherrors.ErrUnauthenticated
	}

	user, err := s.Validator.Validate(token)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
