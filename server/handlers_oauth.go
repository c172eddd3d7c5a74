package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-oauth-proxy/flow"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

// AuthorizeHandler begins the authorization flow: after validating the
// client's request it parks the flow in the shared store and redirects
// the user agent to the enterprise IdP's login page.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		req := flow.AuthorizeRequest{
			ResponseType:        oauthmodel.ResponseType(query.Get("response_type")),
			ClientID:            query.Get("client_id"),
			RedirectURI:         query.Get("redirect_uri"),
			State:               query.Get("state"),
			Scope:               query.Get("scope"),
			CodeChallenge:       query.Get("code_challenge"),
			CodeChallengeMethod: oauthmodel.CodeMethodType(query.Get("code_challenge_method")),
		}

		idpURL, err := s.orchestrator.Authorize(r.Context(), req)
		if err != nil {
			// Never redirect to an unvalidated redirect_uri; errors at
			// this stage go straight back to the user agent.
			writeOAuthError(w, err)
			return
		}

		http.Redirect(w, r, idpURL, http.StatusSeeOther)
	}
}

// CallbackHandler is the IdP's redirect target. On success the user
// agent bounces back to the assistant client's redirect URI with a
// proxy-minted code and the client's original state.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errorParam := query.Get("error"); errorParam != "" {
			writeBrowserError(w, errors.Wrapf(errors.ErrUnauthenticated, "IdP returned %s: %s", errorParam, query.Get("error_description")), http.StatusBadRequest)
			return
		}

		result, err := s.orchestrator.HandleCallback(r.Context(), query.Get("state"), query.Get("code"))
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errors.ErrUpstreamUnavailable) || errors.Is(err, errors.ErrStoreUnavailable) {
				status = http.StatusBadGateway
			}
			writeBrowserError(w, err, status)
			return
		}

		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// TokenHandler exchanges an authorization code or a refresh token for tokens
func (s *Server) TokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}

		tokenReq := oauthmodel.TokenRequest{
			GrantType:    oauthmodel.GrantType(r.FormValue("grant_type")),
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
			Code:         r.FormValue("code"),
			CodeVerifier: r.FormValue("code_verifier"),
			RedirectURI:  r.FormValue("redirect_uri"),
			RefreshToken: r.FormValue("refresh_token"),
		}

		tokenResponse, err := s.orchestrator.Token(r.Context(), tokenReq)
		if err != nil {
			writeOAuthError(w, err)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Pragma", "no-cache")
		_ = json.NewEncoder(w).Encode(tokenResponse)
	}
}

// RevokeHandler revokes access or refresh tokens (RFC 7009)
func (s *Server) RevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "failed to parse form data", http.StatusBadRequest)
			return
		}

		req := oauthmodel.TokenRequest{
			ClientID:     r.FormValue("client_id"),
			ClientSecret: r.FormValue("client_secret"),
		}
		token := r.FormValue("token")
		if token == "" {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "token is required", http.StatusBadRequest)
			return
		}

		if err := s.orchestrator.Revoke(r.Context(), req, token); err != nil {
			writeOAuthError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// DiscoveryHandler serves the authorization-server metadata document
func (s *Server) DiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		baseURL := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":                 baseURL,
			"authorization_endpoint": baseURL + RouteAuthorize,
			"token_endpoint":         baseURL + RouteToken,
			"registration_endpoint":  baseURL + RouteRegister,
			"revocation_endpoint":    baseURL + RouteRevoke,

			"response_types_supported": []string{"code"},
			"response_modes_supported": []string{"query"},

			"grant_types_supported": []string{
				"authorization_code",
				"refresh_token",
			},

			// PKCE support
			"code_challenge_methods_supported": []string{"S256", "plain"},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_post", // Credentials in POST body
				"none",               // For public clients with PKCE
			},

			"scopes_supported": []string{"tools.access"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HealthzHandler reports liveness, including shared-store reachability
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.store.Ping(r.Context()); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "store unreachable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
