package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth AS proxy surface (assistant-client facing)
	RouteRegister  = "/register"
	RouteAuthorize = "/oauth2/authorize"
	RouteToken     = "/oauth2/token"
	RouteRevoke    = "/oauth2/revoke"
	RouteCallback  = "/callback"

	// Discovery
	RouteWellKnownOAuthAS      = "/.well-known/oauth-authorization-server"
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"

	// Protected tool endpoints
	RouteAPIMe             = "/api/me"
	RouteAPIPersonnel      = "/api/personnel"
	RouteAPIIncidents      = "/api/incidents"
	RouteAPIIncidentReview = "/api/incidents/{id}/review"
	RouteAPIDispatchEntry  = "/api/dispatch/{id}"

	// Operational
	RouteHealthz = "/healthz"
)
