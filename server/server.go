package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/collaborators"
	"github.com/jrsteele09/go-oauth-proxy/flow"
	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	"github.com/jrsteele09/go-oauth-proxy/rbac"
	"github.com/jrsteele09/go-oauth-proxy/tokenstore"
)

// Deps holds the collaborator dependencies for the Server.
type Deps struct {
	Registrar    *clients.Registrar
	Orchestrator *flow.Orchestrator
	Resolver     *identity.Resolver
	Gate         *rbac.Gate
	Store        tokenstore.Store

	Personnel collaborators.PersonnelDirectory
	Incidents collaborators.IncidentStore
	Dispatch  collaborators.DispatchLog
}

type Server struct {
	env    string // Environment (e.g., "DEV", "production")
	mux    *http.ServeMux
	routes []string
	config config.Config

	registrar    *clients.Registrar
	orchestrator *flow.Orchestrator
	resolver     *identity.Resolver
	gate         *rbac.Gate
	store        tokenstore.Store

	personnel collaborators.PersonnelDirectory
	incidents collaborators.IncidentStore
	dispatch  collaborators.DispatchLog
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Registrar == nil || deps.Orchestrator == nil || deps.Resolver == nil || deps.Gate == nil || deps.Store == nil {
		return nil, errors.New("[Server New] registrar, orchestrator, resolver, gate and store are required")
	}

	s := &Server{
		mux:          http.NewServeMux(),
		config:       cfg,
		registrar:    deps.Registrar,
		orchestrator: deps.Orchestrator,
		resolver:     deps.Resolver,
		gate:         deps.Gate,
		store:        deps.Store,
		personnel:    deps.Personnel,
		incidents:    deps.Incidents,
		dispatch:     deps.Dispatch,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
