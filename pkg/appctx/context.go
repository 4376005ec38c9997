// Package appctx provides the application context that holds all runtime dependencies.
package appctx

import (
	"redgifs-dl-go/pkg/auth"
	"redgifs-dl-go/pkg/config"
	"redgifs-dl-go/pkg/delivery"
	"redgifs-dl-go/pkg/extract"
	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/resolver"
)

// Context holds all application runtime dependencies.
// Pass this single struct to components instead of individual parameters.
type Context struct {
	Config    *config.Config
	Log       *logging.Logger
	Extractor *extract.Extractor
	Auth      *auth.Authenticator
	Resolver  *resolver.Resolver
	Delivery  *delivery.Proxy
	Assembler *delivery.Assembler
	BaseURL   string
}

// New creates a new application context.
func New(cfg *config.Config, log *logging.Logger) *Context {
	return &Context{
		Config:  cfg,
		Log:     log,
		BaseURL: cfg.BaseURL,
	}
}

// WithExtractor sets the URL extractor.
func (c *Context) WithExtractor(e *extract.Extractor) *Context {
	c.Extractor = e
	return c
}

// WithAuth sets the upstream authenticator.
func (c *Context) WithAuth(a *auth.Authenticator) *Context {
	c.Auth = a
	return c
}

// WithResolver sets the metadata resolver.
func (c *Context) WithResolver(r *resolver.Resolver) *Context {
	c.Resolver = r
	return c
}

// WithDelivery sets the delivery proxy.
func (c *Context) WithDelivery(d *delivery.Proxy) *Context {
	c.Delivery = d
	return c
}

// WithAssembler sets the HLS assembler.
func (c *Context) WithAssembler(a *delivery.Assembler) *Context {
	c.Assembler = a
	return c
}
