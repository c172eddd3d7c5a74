package server

import "github.com/jrsteele09/go-oauth-proxy/rbac"

func (s *Server) initRoutes() {
	// OAuth2 proxy API routes
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterClientHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthorize, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteToken, ChainMiddleware(s.TokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRevoke, ChainMiddleware(s.RevokeHandler(), s.APIMiddleware()...))

	// Discovery
	s.RegisterRouteHandler("GET "+RouteWellKnownOAuthAS, ChainMiddleware(s.DiscoveryHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownOpenIDConfig, ChainMiddleware(s.DiscoveryHandler(), s.APIMiddleware()...))

	// Protected tool endpoints (require a resolved identity plus the
	// operation's role)
	s.RegisterRouteHandler("GET "+RouteAPIMe, s.Protected(rbac.OpWhoAmI, s.WhoAmIHandler()))
	s.RegisterRouteHandler("GET "+RouteAPIPersonnel, s.Protected(rbac.OpPersonnelRead, s.PersonnelHandler()))
	s.RegisterRouteHandler("GET "+RouteAPIIncidents, s.Protected(rbac.OpIncidentsRead, s.IncidentsHandler()))
	s.RegisterRouteHandler("POST "+RouteAPIIncidentReview, s.Protected(rbac.OpIncidentReview, s.IncidentReviewHandler()))
	s.RegisterRouteHandler("DELETE "+RouteAPIDispatchEntry, s.Protected(rbac.OpDispatchDelete, s.DispatchDeleteHandler()))

	// Operational
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
}
