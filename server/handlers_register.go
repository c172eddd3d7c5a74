package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

const maxRegistrationBody = 64 * 1024

// RegisterClientHandler implements Dynamic Client Registration (RFC 7591)
func (s *Server) RegisterClientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req clients.RegistrationRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBody)).Decode(&req); err != nil {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "malformed registration body", http.StatusBadRequest)
			return
		}

		resp, err := s.registrar.Register(r.Context(), req)
		if err != nil {
			if errors.Is(err, errors.ErrInvalidRedirectURI) {
				writeJSONError(w, "invalid_redirect_uri", err.Error(), http.StatusBadRequest)
				return
			}
			if errors.Is(err, errors.ErrInvalidRequest) {
				writeJSONError(w, "invalid_client_metadata", err.Error(), http.StatusBadRequest)
				return
			}
			writeOAuthError(w, err)
			return
		}

		log.Info().Str("client_id", resp.ClientID).Str("client_name", resp.ClientName).Msg("registered client")

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
