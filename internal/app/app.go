// Package app provides the main application setup and dependency injection.
package app

import (
	"redgifs-dl-go/pkg/appctx"
	"redgifs-dl-go/pkg/auth"
	"redgifs-dl-go/pkg/config"
	"redgifs-dl-go/pkg/delivery"
	"redgifs-dl-go/pkg/extract"
	"redgifs-dl-go/pkg/handlers/api"
	"redgifs-dl-go/pkg/httpclient"
	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/resolver"
	"redgifs-dl-go/pkg/server"
)

// App is the main application container.
type App struct {
	Ctx        *appctx.Context
	Server     *server.Server
	HTTPClient *httpclient.Client
}

// New creates and initializes the application.
func New() (*App, error) {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing downloader", "port", cfg.Port, "provider", cfg.ProviderDomain, "log_level", cfg.LogLevel)

	// Create application context
	ctx := appctx.New(cfg, log)

	// Create HTTP client
	httpClient := httpclient.New(cfg, log)

	origin := "https://www." + cfg.ProviderDomain

	// URL extractor
	ctx.WithExtractor(extract.New(cfg.ProviderDomain))

	// Upstream authenticator
	authenticator := auth.New(httpClient, log, cfg.AuthURL, cfg.UserAgent, origin, cfg.TokenTTL)
	ctx.WithAuth(authenticator)

	// Metadata resolver with the standard strategy chain
	ctx.WithResolver(resolver.New(resolver.Options{
		Client:          httpClient,
		Tokens:          authenticator,
		APIBaseURL:      cfg.APIBaseURL,
		ProviderDomain:  cfg.ProviderDomain,
		UserAgent:       cfg.UserAgent,
		StrategyTimeout: cfg.StrategyTimeout,
	}, log))

	// Delivery proxy shares the construction strategy's variant table for its
	// alternate-URL fallback
	variants := resolver.DefaultVariantTable(cfg.ProviderDomain)
	ctx.WithDelivery(delivery.New(httpClient, authenticator, log, cfg.ProviderDomain, cfg.UserAgent, variants))

	// HLS assembler
	ctx.WithAssembler(delivery.NewAssembler(httpClient, cfg.UserAgent, log))

	// Create HTTP server
	srv := server.New(cfg, log)

	// Create API handlers
	handlers := api.NewHandlers(ctx)
	handlers.RegisterRoutes(srv.Router())

	return &App{
		Ctx:        ctx,
		Server:     srv,
		HTTPClient: httpClient,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Ctx.Log.Info("starting download server", "port", a.Ctx.Config.Port)
	return a.Server.Start()
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() {
	a.Ctx.Log.Info("shutting down application")
}
