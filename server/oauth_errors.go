package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauthmodel.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}

// writeOAuthError maps internal errors onto the RFC 6749 error shape.
// Infrastructure failures become temporarily_unavailable so callers
// know a retry with backoff is safe; security failures are terminal.
func writeOAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errors.ErrInvalidClient),
		errors.Is(err, errors.ErrClientNotFound),
		errors.Is(err, errors.ErrInvalidClientSecret):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidClient, "client authentication failed", http.StatusUnauthorized)
	case errors.Is(err, errors.ErrInvalidGrant),
		errors.Is(err, errors.ErrCodeConsumed),
		errors.Is(err, errors.ErrInvalidCodeVerifier),
		errors.Is(err, errors.ErrInvalidRefreshToken):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidGrant, "grant is invalid, expired, or already used", http.StatusBadRequest)
	case errors.Is(err, errors.ErrUnsupportedGrantType):
		writeJSONError(w, oauthmodel.ErrorCodeUnsupportedGrant, "unsupported grant_type", http.StatusBadRequest)
	case errors.Is(err, oauthmodel.ErrInvalidResponseType):
		writeJSONError(w, oauthmodel.ErrorCodeUnsupportedResponse, "only response_type=code is supported", http.StatusBadRequest)
	case errors.Is(err, errors.ErrUpstreamUnavailable),
		errors.Is(err, errors.ErrStoreUnavailable):
		log.Error().Err(err).Msg("upstream unavailable")
		writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "try again later", http.StatusServiceUnavailable)
	case errors.Is(err, errors.ErrInvalidRequest),
		errors.Is(err, errors.ErrInvalidRedirectURI),
		errors.Is(err, oauthmodel.ErrInvalidCodeChallengeMethod),
		errors.Is(err, oauthmodel.ErrMissingState):
		writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg("unexpected error")
		writeJSONError(w, oauthmodel.ErrorCodeServerError, "internal error", http.StatusInternalServerError)
	}
}

// writeBrowserError is for the human-facing callback surface: a
// deliberately generic message that never reveals which validation
// step failed, to avoid oracle attacks on client_id/redirect_uri
// guessing. The real cause goes to the logs only.
func writeBrowserError(w http.ResponseWriter, err error, statusCode int) {
	if errors.Is(err, errors.ErrStateMismatch) {
		log.Warn().Err(err).Msg("state mismatch at callback")
	} else {
		log.Error().Err(err).Msg("sign-in failed")
	}
	http.Error(w, "Sign-in failed, please retry.", statusCode)
}
