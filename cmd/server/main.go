package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/jrsteele09/go-oauth-proxy/clients"
	"github.com/jrsteele09/go-oauth-proxy/collaborators"
	"github.com/jrsteele09/go-oauth-proxy/flow"
	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/config"
	"github.com/jrsteele09/go-oauth-proxy/rbac"
	"github.com/jrsteele09/go-oauth-proxy/server"
	"github.com/jrsteele09/go-oauth-proxy/tokenstore"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Fatalf("Error running server: %s\n", err)
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Printf("Server stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	handler, cleanup, err := buildHandler(ctx, c)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler}
	go listenAndServe(httpServer)
	waitForStopSignal()
	returnError = shutdown(httpServer)
	return returnError
}

// buildHandler wires the token store, client registry, flow
// orchestrator, claims resolver and role gate into the HTTP server.
func buildHandler(ctx context.Context, c config.Config) (http.Handler, func(), error) {
	redisStore, err := tokenstore.NewRedisStore(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB(), c.GetRedisKeyPrefix())
	if err != nil {
		return nil, nil, fmt.Errorf("tokenstore.NewRedisStore: %w", err)
	}
	store := tokenstore.NewCachedStore(redisStore)
	clientRepo := clients.NewRedisRepo(redisStore.Client(), c.GetRedisKeyPrefix())

	registrar, err := clients.NewRegistrar(clientRepo)
	if err != nil {
		return nil, nil, fmt.Errorf("clients.NewRegistrar: %w", err)
	}

	orchestrator, err := flow.NewOrchestrator(ctx, flow.Options{
		IdPIssuerURL:    c.GetIdPIssuerURL(),
		IdPClientID:     c.GetIdPClientID(),
		IdPClientSecret: c.GetIdPClientSecret(),
		IdPScopes:       c.GetIdPScopes(),
		BaseURL:         c.GetBaseURL(),
		Store:           store,
		Clients:         clientRepo,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("flow.NewOrchestrator: %w", err)
	}

	strategies := []identity.Strategy{
		identity.BearerTokenStrategy{Lookup: tokenstore.UserLookup{Store: store}},
	}

	cleanup := func() {}
	if c.GetEdgeSharedSecret() != "" && c.GetIdPJWKSURL() != "" {
		validator, err := identity.NewIdPTokenValidator(ctx, c.GetIdPJWKSURL(), c.GetIdPIssuerURL(), c.GetIdPClientID())
		if err != nil {
			return nil, nil, fmt.Errorf("identity.NewIdPTokenValidator: %w", err)
		}
		cleanup = validator.Close
		strategies = append(strategies, identity.EdgeHeaderStrategy{
			SharedSecret: c.GetEdgeSharedSecret(),
			TokenHeader:  c.GetEdgeTokenHeader(),
			Validator:    validator,
		})
	}

	srv, err := server.New(c, server.Deps{
		Registrar:    registrar,
		Orchestrator: orchestrator,
		Resolver:     identity.NewResolver(strategies...),
		Gate:         rbac.NewGate(c.GetOfficerGroupID()),
		Store:        store,
		Personnel:    &collaborators.FakePersonnelDirectory{},
		Incidents:    &collaborators.FakeIncidentStore{},
		Dispatch:     &collaborators.FakeDispatchLog{},
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("server.New: %w", err)
	}
	return srv, cleanup, nil
}

func listenAndServe(server *http.Server) error {
	log.Printf("Server listening on %s\n", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
