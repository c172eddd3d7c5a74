package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
	"github.com/jrsteele09/go-oauth-proxy/oauthmodel"
)

// WhoAmIHandler returns the authenticated caller's resolved identity
func (s *Server) WhoAmIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			writeJSONError(w, oauthmodel.ErrorCodeServerError, "no identity in request context", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(user)
	}
}

// PersonnelHandler lists directory entries on behalf of the caller
func (s *Server) PersonnelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())

		people, err := s.personnel.List(r.Context(), user)
		if err != nil {
			log.Error().Err(err).Msg("personnel lookup failed")
			writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "personnel directory unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(people)
	}
}

// IncidentsHandler lists incident summaries on behalf of the caller
func (s *Server) IncidentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())

		incidents, err := s.incidents.List(r.Context(), user)
		if err != nil {
			log.Error().Err(err).Msg("incident lookup failed")
			writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "incident store unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(incidents)
	}
}

// IncidentReviewHandler marks an incident reviewed by the caller
func (s *Server) IncidentReviewHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())

		incidentID := r.PathValue("id")
		if incidentID == "" {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "incident id is required", http.StatusBadRequest)
			return
		}

		incident, err := s.incidents.MarkReviewed(r.Context(), user, incidentID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "incident not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Str("incident_id", incidentID).Msg("incident review failed")
			writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "incident store unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(incident)
	}
}

// DispatchDeleteHandler prunes a dispatch-log entry
func (s *Server) DispatchDeleteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())

		entryID := r.PathValue("id")
		if entryID == "" {
			writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "entry id is required", http.StatusBadRequest)
			return
		}

		if err := s.dispatch.Delete(r.Context(), user, entryID); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				writeJSONError(w, oauthmodel.ErrorCodeInvalidRequest, "dispatch entry not found", http.StatusNotFound)
				return
			}
			log.Error().Err(err).Str("entry_id", entryID).Msg("dispatch delete failed")
			writeJSONError(w, oauthmodel.ErrorCodeTemporarilyUnavail, "dispatch log unavailable", http.StatusBadGateway)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
