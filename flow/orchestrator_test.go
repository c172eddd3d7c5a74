package flow_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/flow"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
	"github.com/jrsteele09/go-oauth-proxy/tokenstore"
)

const (
	clientRedirectURI = "https://app.example.com/callback"
	clientState       = "client-state-value"
	proxyBaseURL      = "https://proxy.example.com"
	officerGroup      = "group-officers"
)

type orchestratorFixture struct {
	idp   *mockoidc.MockOIDC
	store *tokenstore.InMemoryStore
	repo  *clients.InMemoryRepo
	orch  *flow.Orchestrator

	clientID     string
	clientSecret string
}

func setupOrchestrator(t *testing.T) *orchestratorFixture {
	t.Helper()
	ctx := context.Background()

	idp, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idp.Shutdown() })

	store := tokenstore.NewInMemoryStore()
	repo := clients.NewInMemoryRepo()

	registrar, err := clients.NewRegistrar(repo)
	require.NoError(t, err)
	reg, err := registrar.Register(ctx, clients.RegistrationRequest{
		RedirectURIs: []string{clientRedirectURI},
		ClientName:   "Assistant",
	})
	require.NoError(t, err)

	orch, err := flow.NewOrchestrator(ctx, flow.Options{
		IdPIssuerURL:    idp.Issuer(),
		IdPClientID:     idp.Config().ClientID,
		IdPClientSecret: idp.Config().ClientSecret,
		IdPScopes:       []string{"openid", "profile", "email", "groups"},
		BaseURL:         proxyBaseURL,
		Store:           store,
		Clients:         repo,
	})
	require.NoError(t, err)

	return &orchestratorFixture{
		idp:          idp,
		store:        store,
		repo:         repo,
		orch:         orch,
		clientID:     reg.ClientID,
		clientSecret: reg.ClientSecret,
	}
}

func (f *orchestratorFixture) authorizeRequest(verifier string) flow.AuthorizeRequest {
	return flow.AuthorizeRequest{
		ResponseType:        oauthmodel.CodeResponseType,
		ClientID:            f.clientID,
		RedirectURI:         clientRedirectURI,
		State:               clientState,
		Scope:               "tools.access",
		CodeChallenge:       flow.ChallengeS256(verifier),
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
	}
}

// loginAtIdP drives the user agent through the IdP's authorize endpoint
// and captures the state and code the IdP sends back to the proxy.
func (f *orchestratorFixture) loginAtIdP(t *testing.T, authURL string) (state, code string) {
	t.Helper()

	f.idp.QueueUser(&mockoidc.MockUser{
		Subject:           "oid-1",
		Email:             "pat@example.com",
		PreferredUsername: "pat@example.com",
		Groups:            []string{officerGroup},
	})

	httpClient := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := httpClient.Get(authURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc.Query().Get("state"), loc.Query().Get("code")
}

// runToCallback takes the flow through authorize and the IdP login and
// returns the proxy-minted code handed back to the client.
func (f *orchestratorFixture) runToCallback(t *testing.T, verifier string) string {
	t.Helper()
	ctx := context.Background()

	authURL, err := f.orch.Authorize(ctx, f.authorizeRequest(verifier))
	require.NoError(t, err)

	state, idpCode := f.loginAtIdP(t, authURL)
	result, err := f.orch.HandleCallback(ctx, state, idpCode)
	require.NoError(t, err)

	redirect, err := url.Parse(result.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, clientState, redirect.Query().Get("state"))

	code := redirect.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizeValidation(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	verifier := oauth2.GenerateVerifier()

	t.Run("unknown client", func(t *testing.T) {
		req := f.authorizeRequest(verifier)
		req.ClientID = "nobody"
		_, err := f.orch.Authorize(ctx, req)
		require.ErrorIs(t, err, errors.ErrClientNotFound)
	})

	t.Run("unsupported response type", func(t *testing.T) {
		req := f.authorizeRequest(verifier)
		req.ResponseType = "token"
		_, err := f.orch.Authorize(ctx, req)
		require.ErrorIs(t, err, oauthmodel.ErrInvalidResponseType)
	})

	t.Run("unregistered redirect URI", func(t *testing.T) {
		req := f.authorizeRequest(verifier)
		req.RedirectURI = clientRedirectURI + "/"
		_, err := f.orch.Authorize(ctx, req)
		require.ErrorIs(t, err, errors.ErrInvalidRedirectURI)
	})

	t.Run("missing state", func(t *testing.T) {
		req := f.authorizeRequest(verifier)
		req.State = ""
		_, err := f.orch.Authorize(ctx, req)
		require.ErrorIs(t, err, oauthmodel.ErrMissingState)
	})

	t.Run("unknown challenge method", func(t *testing.T) {
		req := f.authorizeRequest(verifier)
		req.CodeChallengeMethod = "S512"
		_, err := f.orch.Authorize(ctx, req)
		require.ErrorIs(t, err, oauthmodel.ErrInvalidCodeChallengeMethod)
	})
}

func TestAuthorizePublicClientRequiresPKCE(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	registrar, err := clients.NewRegistrar(f.repo)
	require.NoError(t, err)
	public, err := registrar.Register(ctx, clients.RegistrationRequest{
		RedirectURIs:            []string{clientRedirectURI},
		TokenEndpointAuthMethod: "none",
	})
	require.NoError(t, err)

	req := f.authorizeRequest("")
	req.ClientID = public.ClientID
	req.CodeChallenge = ""
	req.CodeChallengeMethod = ""
	_, err = f.orch.Authorize(ctx, req)
	require.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestAuthorizeMintsDistinctUpstreamPair(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	verifier := oauth2.GenerateVerifier()

	authURL, err := f.orch.Authorize(ctx, f.authorizeRequest(verifier))
	require.NoError(t, err)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	query := parsed.Query()

	// The upstream leg carries the proxy's own state and challenge, not
	// the client's.
	require.NotEqual(t, clientState, query.Get("state"))
	require.NotEqual(t, flow.ChallengeS256(verifier), query.Get("code_challenge"))
	require.Equal(t, "S256", query.Get("code_challenge_method"))
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()
	code := f.runToCallback(t, verifier)

	resp, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  clientRedirectURI,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int(tokenstore.AccessTokenTTL.Seconds()), resp.ExpiresIn)
	require.Equal(t, "tools.access", resp.Scope)

	// The minted access token carries the IdP-resolved identity and the
	// upstream credential.
	rec, err := f.store.Get(ctx, tokenstore.KindAccessToken, resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "oid-1", rec.User.UserID)
	require.Equal(t, "pat@example.com", rec.User.Email)
	require.Contains(t, rec.User.Groups, officerGroup)
	require.NotNil(t, rec.Upstream)
	require.NotEmpty(t, rec.Upstream.AccessToken)
}

func TestTokenCodeReplayRevokesDerivedTokens(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()
	code := f.runToCallback(t, verifier)

	req := oauthmodel.TokenRequest{
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  clientRedirectURI,
	}
	resp, err := f.orch.Token(ctx, req)
	require.NoError(t, err)

	// Replaying the code fails and kills the tokens minted from it.
	_, err = f.orch.Token(ctx, req)
	require.ErrorIs(t, err, errors.ErrInvalidGrant)

	_, err = f.store.Get(ctx, tokenstore.KindAccessToken, resp.AccessToken)
	require.ErrorIs(t, err, errors.ErrNotFound)
	_, err = f.store.Get(ctx, tokenstore.KindRefreshToken, resp.RefreshToken)
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestTokenExchangeValidation(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()

	t.Run("wrong client secret", func(t *testing.T) {
		code := f.runToCallback(t, verifier)
		_, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
			GrantType:    oauthmodel.AuthorizationCodeGrant,
			ClientID:     f.clientID,
			ClientSecret: "wrong",
			Code:         code,
			CodeVerifier: verifier,
			RedirectURI:  clientRedirectURI,
		})
		require.ErrorIs(t, err, errors.ErrInvalidClientSecret)
	})

	t.Run("wrong code verifier", func(t *testing.T) {
		code := f.runToCallback(t, verifier)
		_, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
			GrantType:    oauthmodel.AuthorizationCodeGrant,
			ClientID:     f.clientID,
			ClientSecret: f.clientSecret,
			Code:         code,
			CodeVerifier: oauth2.GenerateVerifier(),
			RedirectURI:  clientRedirectURI,
		})
		require.ErrorIs(t, err, errors.ErrInvalidGrant)
	})

	t.Run("redirect URI mismatch", func(t *testing.T) {
		code := f.runToCallback(t, verifier)
		_, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
			GrantType:    oauthmodel.AuthorizationCodeGrant,
			ClientID:     f.clientID,
			ClientSecret: f.clientSecret,
			Code:         code,
			CodeVerifier: verifier,
			RedirectURI:  "https://evil.example.com/callback",
		})
		require.ErrorIs(t, err, errors.ErrInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
			GrantType:    oauthmodel.AuthorizationCodeGrant,
			ClientID:     f.clientID,
			ClientSecret: f.clientSecret,
			Code:         "never-issued",
			CodeVerifier: verifier,
			RedirectURI:  clientRedirectURI,
		})
		require.ErrorIs(t, err, errors.ErrInvalidGrant)
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		_, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
			GrantType:    "client_credentials",
			ClientID:     f.clientID,
			ClientSecret: f.clientSecret,
		})
		require.ErrorIs(t, err, errors.ErrUnsupportedGrantType)
	})
}

func TestStateIsSingleUse(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	authURL, err := f.orch.Authorize(ctx, f.authorizeRequest(oauth2.GenerateVerifier()))
	require.NoError(t, err)
	state, idpCode := f.loginAtIdP(t, authURL)

	_, err = f.orch.HandleCallback(ctx, state, idpCode)
	require.NoError(t, err)

	// Replaying the callback finds no pending authorization.
	_, err = f.orch.HandleCallback(ctx, state, idpCode)
	require.ErrorIs(t, err, errors.ErrStateMismatch)
}

func TestCallbackUnknownState(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orch.HandleCallback(context.Background(), "forged-state", "some-code")
	require.ErrorIs(t, err, errors.ErrStateMismatch)
}

func TestRefreshTokenRotation(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()
	code := f.runToCallback(t, verifier)
	first, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  clientRedirectURI,
	})
	require.NoError(t, err)

	refreshReq := oauthmodel.TokenRequest{
		GrantType:    oauthmodel.RefreshTokenGrant,
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RefreshToken: first.RefreshToken,
	}
	second, err := f.orch.Token(ctx, refreshReq)
	require.NoError(t, err)
	require.NotEqual(t, first.AccessToken, second.AccessToken)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The identity survives rotation.
	rec, err := f.store.Get(ctx, tokenstore.KindAccessToken, second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "pat@example.com", rec.User.Email)

	// The old refresh token died with the exchange.
	_, err = f.orch.Token(ctx, refreshReq)
	require.ErrorIs(t, err, errors.ErrInvalidGrant)
}

func TestRevoke(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	verifier := oauth2.GenerateVerifier()
	code := f.runToCallback(t, verifier)
	resp, err := f.orch.Token(ctx, oauthmodel.TokenRequest{
		GrantType:    oauthmodel.AuthorizationCodeGrant,
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Code:         code,
		CodeVerifier: verifier,
		RedirectURI:  clientRedirectURI,
	})
	require.NoError(t, err)

	creds := oauthmodel.TokenRequest{ClientID: f.clientID, ClientSecret: f.clientSecret}
	require.NoError(t, f.orch.Revoke(ctx, creds, resp.AccessToken))

	_, err = f.store.Get(ctx, tokenstore.KindAccessToken, resp.AccessToken)
	require.ErrorIs(t, err, errors.ErrNotFound)

	// Revoking an already-revoked or unknown token is not an error.
	require.NoError(t, f.orch.Revoke(ctx, creds, resp.AccessToken))
	require.NoError(t, f.orch.Revoke(ctx, creds, "never-issued"))
}
