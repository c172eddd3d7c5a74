package flow

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/identity"
	autherrors "github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
	"github.com/jrsteele09/go-oauth-proxy/tokenstore"
)

const (
	// idpCallTimeout bounds each individual call to the IdP.
	idpCallTimeout = 10 * time.Second
	// idpMaxAttempts bounds transport retries against the IdP. Security
	// failures are never retried.
	idpMaxAttempts = 3

	// CallbackPath is where the IdP redirects the user agent back to.
	CallbackPath = "/callback"
)

// Options configures the Orchestrator.
type Options struct {
	// IdPIssuerURL is the OIDC issuer of the enterprise IdP.
	IdPIssuerURL string
	// IdPClientID / IdPClientSecret are the proxy's own confidential
	// client credentials at the IdP.
	IdPClientID     string
	IdPClientSecret string
	// IdPScopes are requested from the IdP (openid profile email ...).
	IdPScopes []string
	// BaseURL is the externally visible base URL of the proxy.
	BaseURL string

	Store   tokenstore.Store
	Clients clients.Repo
}

// Orchestrator is the state machine bridging the assistant client's
// OAuth dance with the enterprise IdP's OAuth dance. It keeps no
// per-flow state in memory: every transition reads and writes the
// shared token store, so any replica can serve any step.
type Orchestrator struct {
	oauthCfg *oauth2.Config
	verifier *oidc.IDTokenVerifier

	store      tokenstore.Store
	clientRepo clients.Repo
	nowTime    func() time.Time
}

// OrchestratorOption modifies the Orchestrator instance.
type OrchestratorOption func(*Orchestrator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// NewOrchestrator discovers the IdP's endpoints and prepares the
// upstream OAuth configuration. Discovery is retried a bounded number
// of times; a dead IdP at startup is a fatal configuration error.
func NewOrchestrator(ctx context.Context, opts Options, options ...OrchestratorOption) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, errors.New("[NewOrchestrator] token store is required")
	}
	if opts.Clients == nil {
		return nil, errors.New("[NewOrchestrator] client repo is required")
	}
	if opts.IdPIssuerURL == "" || opts.IdPClientID == "" {
		return nil, errors.New("[NewOrchestrator] IdP issuer URL and client ID are required")
	}

	provider, err := backoff.Retry(ctx, func() (*oidc.Provider, error) {
		discoverCtx, cancel := context.WithTimeout(ctx, idpCallTimeout)
		defer cancel()
		return oidc.NewProvider(discoverCtx, opts.IdPIssuerURL)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(idpMaxAttempts))
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrUpstreamUnavailable, "IdP discovery for %s: %v", opts.IdPIssuerURL, err)
	}

	scopes := opts.IdPScopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	o := &Orchestrator{
		oauthCfg: &oauth2.Config{
			ClientID:     opts.IdPClientID,
			ClientSecret: opts.IdPClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  opts.BaseURL + CallbackPath,
			Scopes:       scopes,
		},
		verifier:   provider.Verifier(&oidc.Config{ClientID: opts.IdPClientID}),
		store:      opts.Store,
		clientRepo: opts.Clients,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// AuthorizeRequest carries the query parameters of a /authorize call.
type AuthorizeRequest struct {
	ResponseType        oauthmodel.ResponseType
	ClientID            string
	RedirectURI         string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod oauthmodel.CodeMethodType
}

// Authorize validates the client's authorization request, parks it in
// the shared store, and returns the IdP authorize URL to redirect the
// user agent to. The proxy mints its own state and PKCE pair for the
// upstream leg; the client's pair never crosses to the IdP.
func (o *Orchestrator) Authorize(ctx context.Context, req AuthorizeRequest) (string, error) {
	client, err := o.clientRepo.Get(ctx, req.ClientID)
	if err != nil {
		return "", errors.Wrap(err, autherrors.ErrInvalidClient.Error())
	}

	if req.ResponseType != oauthmodel.CodeResponseType {
		return "", oauthmodel.ErrInvalidResponseType
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return "", autherrors.ErrInvalidRedirectURI
	}
	if req.State == "" {
		return "", oauthmodel.ErrMissingState
	}
	if req.CodeChallenge != "" {
		if err := ValidateChallengeMethod(req.CodeChallengeMethod); err != nil {
			return "", err
		}
	} else if client.IsPublic() {
		return "", errors.Wrap(autherrors.ErrInvalidRequest, "PKCE required for public clients")
	}

	upstreamState, err := randomToken()
	if err != nil {
		return "", err
	}
	upstreamVerifier := oauth2.GenerateVerifier()

	now := o.nowTime()
	pending := &tokenstore.Record{
		Kind:                tokenstore.KindPendingAuth,
		Value:               upstreamState,
		ClientID:            client.ID,
		Scopes:              splitScope(req.Scope),
		IssuedAt:            now,
		ExpiresAt:           now.Add(tokenstore.PendingAuthTTL),
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: string(req.CodeChallengeMethod),
		RedirectURI:         req.RedirectURI,
		UpstreamVerifier:    upstreamVerifier,
	}
	if err := o.store.Put(ctx, pending, tokenstore.PendingAuthTTL); err != nil {
		return "", err
	}

	return o.oauthCfg.AuthCodeURL(upstreamState, oauth2.S256ChallengeOption(upstreamVerifier)), nil
}

// CallbackResult is the outcome of a successful IdP callback.
type CallbackResult struct {
	// RedirectURL sends the user agent back to the assistant client
	// with the proxy-minted code and the client's original state.
	RedirectURL string
	User        identity.UserContext
}

// HandleCallback consumes the pending authorization for the returned
// state, exchanges the IdP code for IdP tokens, validates the ID
// token, and mints the proxy's own single-use authorization code.
func (o *Orchestrator) HandleCallback(ctx context.Context, upstreamState, upstreamCode string) (*CallbackResult, error) {
	if upstreamState == "" || upstreamCode == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidRequest, "missing code or state")
	}

	// Consuming (not reading) the pending record makes every state
	// value single-use: a replayed state finds nothing.
	pending, err := o.store.Consume(ctx, tokenstore.KindPendingAuth, upstreamState)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) || autherrors.Is(err, autherrors.ErrCodeConsumed) {
			return nil, autherrors.ErrStateMismatch
		}
		return nil, err
	}

	idpToken, err := o.exchangeUpstreamCode(ctx, upstreamCode, pending.UpstreamVerifier)
	if err != nil {
		return nil, err
	}

	rawIDToken, ok := idpToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrap(autherrors.ErrUpstreamUnavailable, "no id_token in IdP response")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, idpCallTimeout)
	defer cancel()
	idToken, err := o.verifier.Verify(verifyCtx, rawIDToken)
	if err != nil {
		return nil, errors.Wrap(autherrors.ErrUnauthenticated, "ID token verification failed")
	}

	var claims identity.IDTokenClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "[HandleCallback] extracting ID token claims")
	}
	user := identity.FromIDTokenClaims(claims)

	code, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := o.nowTime()
	authCode := &tokenstore.Record{
		Kind:                tokenstore.KindAuthCode,
		Value:               code,
		ClientID:            pending.ClientID,
		Scopes:              pending.Scopes,
		User:                user,
		IssuedAt:            now,
		ExpiresAt:           now.Add(tokenstore.AuthCodeTTL),
		CodeChallenge:       pending.CodeChallenge,
		CodeChallengeMethod: pending.CodeChallengeMethod,
		RedirectURI:         pending.RedirectURI,
		Upstream: &tokenstore.UpstreamCredential{
			AccessToken:  idpToken.AccessToken,
			RefreshToken: idpToken.RefreshToken,
			IDToken:      rawIDToken,
			ExpiresAt:    idpToken.Expiry,
		},
	}
	if err := o.store.Put(ctx, authCode, tokenstore.AuthCodeTTL); err != nil {
		return nil, err
	}

	log.Info().Str("email", user.Email).Str("client_id", pending.ClientID).Msg("authenticated via IdP")

	return &CallbackResult{
		RedirectURL: appendQuery(pending.RedirectURI, url.Values{"code": {code}, "state": {pending.State}}),
		User:        user,
	}, nil
}

// Token serves the token endpoint for both supported grant types.
func (o *Orchestrator) Token(ctx context.Context, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	client, err := o.authenticateClient(ctx, req)
	if err != nil {
		return nil, err
	}

	switch req.GrantType {
	case oauthmodel.AuthorizationCodeGrant:
		return o.exchangeAuthorizationCode(ctx, client, req)
	case oauthmodel.RefreshTokenGrant:
		return o.exchangeRefreshToken(ctx, client, req)
	default:
		return nil, autherrors.ErrUnsupportedGrantType
	}
}

// Revoke deletes an access or refresh token (RFC 7009). Unknown tokens
// are not an error.
func (o *Orchestrator) Revoke(ctx context.Context, req oauthmodel.TokenRequest, token string) error {
	if _, err := o.authenticateClient(ctx, req); err != nil {
		return err
	}
	if err := o.store.Delete(ctx, tokenstore.KindAccessToken, token); err != nil {
		return err
	}
	return o.store.Delete(ctx, tokenstore.KindRefreshToken, token)
}

func (o *Orchestrator) authenticateClient(ctx context.Context, req oauthmodel.TokenRequest) (*clients.Client, error) {
	client, err := o.clientRepo.Get(ctx, req.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, autherrors.ErrInvalidClient.Error())
	}
	if client.IsPublic() {
		// Public clients prove possession via PKCE at redemption time.
		return client, nil
	}
	if err := client.ValidateSecret(req.ClientSecret); err != nil {
		return nil, err
	}
	return client, nil
}

func (o *Orchestrator) exchangeAuthorizationCode(ctx context.Context, client *clients.Client, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if req.Code == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidRequest, "code is required")
	}

	rec, err := o.store.Consume(ctx, tokenstore.KindAuthCode, req.Code)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrCodeConsumed) {
			// Replay of a redeemed code: revoke everything derived from
			// it, on the assumption the code was stolen.
			o.revokeCodeGrant(ctx, req.Code)
			return nil, autherrors.ErrInvalidGrant
		}
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.ErrInvalidGrant
		}
		return nil, err
	}

	if rec.ClientID != client.ID {
		return nil, autherrors.ErrInvalidGrant
	}
	if req.RedirectURI != rec.RedirectURI {
		return nil, errors.Wrap(autherrors.ErrInvalidGrant, "redirect_uri mismatch")
	}
	if rec.CodeChallenge != "" {
		if err := VerifyChallenge(rec.CodeChallenge, oauthmodel.CodeMethodType(rec.CodeChallengeMethod), req.CodeVerifier); err != nil {
			return nil, errors.Wrap(autherrors.ErrInvalidGrant, err.Error())
		}
	}

	return o.mintTokenPair(ctx, rec, req.Code)
}

func (o *Orchestrator) exchangeRefreshToken(ctx context.Context, client *clients.Client, req oauthmodel.TokenRequest) (*oauthmodel.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, errors.Wrap(autherrors.ErrInvalidRequest, "refresh_token is required")
	}

	rec, err := o.store.Get(ctx, tokenstore.KindRefreshToken, req.RefreshToken)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrNotFound) {
			return nil, autherrors.ErrInvalidGrant
		}
		return nil, err
	}
	if rec.ClientID != client.ID {
		return nil, autherrors.ErrInvalidGrant
	}

	// Rotation: the presented refresh token dies with this exchange.
	if err := o.store.Delete(ctx, tokenstore.KindRefreshToken, req.RefreshToken); err != nil {
		return nil, err
	}

	return o.mintTokenPair(ctx, rec, "")
}

// mintTokenPair creates fresh access and refresh records carrying the
// same user identity and downstream IdP credential as the source
// record. When the pair originates from an authorization code, a
// code-grant record links the code to the minted values for replay
// revocation.
func (o *Orchestrator) mintTokenPair(ctx context.Context, src *tokenstore.Record, redeemedCode string) (*oauthmodel.TokenResponse, error) {
	accessValue, err := randomToken()
	if err != nil {
		return nil, err
	}
	refreshValue, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := o.nowTime()
	access := &tokenstore.Record{
		Kind:      tokenstore.KindAccessToken,
		Value:     accessValue,
		ClientID:  src.ClientID,
		Scopes:    src.Scopes,
		User:      src.User,
		IssuedAt:  now,
		ExpiresAt: now.Add(tokenstore.AccessTokenTTL),
		Upstream:  src.Upstream,
	}
	refresh := &tokenstore.Record{
		Kind:      tokenstore.KindRefreshToken,
		Value:     refreshValue,
		ClientID:  src.ClientID,
		Scopes:    src.Scopes,
		User:      src.User,
		IssuedAt:  now,
		ExpiresAt: now.Add(tokenstore.RefreshTokenTTL),
		Upstream:  src.Upstream,
	}

	if err := o.store.Put(ctx, access, tokenstore.AccessTokenTTL); err != nil {
		return nil, err
	}
	if err := o.store.Put(ctx, refresh, tokenstore.RefreshTokenTTL); err != nil {
		return nil, err
	}

	if redeemedCode != "" {
		grant := &tokenstore.Record{
			Kind:           tokenstore.KindCodeGrant,
			Value:          redeemedCode,
			ClientID:       src.ClientID,
			IssuedAt:       now,
			ExpiresAt:      now.Add(tokenstore.CodeGrantTTL),
			GrantedAccess:  accessValue,
			GrantedRefresh: refreshValue,
		}
		if err := o.store.Put(ctx, grant, tokenstore.CodeGrantTTL); err != nil {
			// The tokens are already minted; losing the grant record
			// only weakens replay revocation, so log and continue.
			log.Warn().Err(err).Msg("failed to record code grant")
		}
	}

	return &oauthmodel.TokenResponse{
		AccessToken:  accessValue,
		TokenType:    "Bearer",
		ExpiresIn:    int(tokenstore.AccessTokenTTL.Seconds()),
		RefreshToken: refreshValue,
		Scope:        joinScope(src.Scopes),
	}, nil
}

func (o *Orchestrator) revokeCodeGrant(ctx context.Context, code string) {
	grant, err := o.store.Get(ctx, tokenstore.KindCodeGrant, code)
	if err != nil {
		return
	}
	if grant.GrantedAccess != "" {
		_ = o.store.Delete(ctx, tokenstore.KindAccessToken, grant.GrantedAccess)
	}
	if grant.GrantedRefresh != "" {
		_ = o.store.Delete(ctx, tokenstore.KindRefreshToken, grant.GrantedRefresh)
	}
	_ = o.store.Delete(ctx, tokenstore.KindCodeGrant, code)
	log.Warn().Str("client_id", grant.ClientID).Msg("authorization code replay detected, derived tokens revoked")
}

// exchangeUpstreamCode swaps the IdP's code for IdP tokens with a per
// call timeout and bounded transport retries. OAuth protocol errors
// from the IdP are terminal; a rejected code never gets retried.
func (o *Orchestrator) exchangeUpstreamCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := backoff.Retry(ctx, func() (*oauth2.Token, error) {
		exchangeCtx, cancel := context.WithTimeout(ctx, idpCallTimeout)
		defer cancel()

		tok, err := o.oauthCfg.Exchange(exchangeCtx, code, oauth2.VerifierOption(verifier))
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if autherrors.As(err, &retrieveErr) && retrieveErr.Response.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return tok, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(idpMaxAttempts))
	if err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrUpstreamUnavailable, "IdP token exchange: %v", err)
	}
	return token, nil
}

func appendQuery(redirectURI string, params url.Values) string {
	separator := "?"
	if u, err := url.Parse(redirectURI); err == nil && u.RawQuery != "" {
		separator = "&"
	}
	return redirectURI + separator + params.Encode()
}

func splitScope(scope string) []string {
	return strings.Fields(scope)
}

func joinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
