package main

import (
	"github.com/FocuswithJustin/JuniperScore/core/score"
	"github.com/FocuswithJustin/JuniperScore/internal/api"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Addr          string   `help:"Listen address" default:":8080"`
	AllowedOrigin []string `name:"allowed-origin" help:"Allowed CORS and WebSocket origin (repeatable, *.example.org wildcards)"`
	APIKey        string   `name:"api-key" help:"Require this key in X-API-Key" env:"JUNIPERSCORE_API_KEY"`
	RateLimit     int      `name:"rate-limit" help:"Requests per minute per client (0 disables)" default:"0"`
	RateBurst     int      `name:"rate-burst" help:"Rate limit burst size" default:"10"`
	TLSCert       string   `name:"tls-cert" help:"TLS certificate file" type:"path"`
	TLSKey        string   `name:"tls-key" help:"TLS private key file" type:"path"`
	MaxBody       int64    `name:"max-body" help:"Maximum request body in bytes" default:"33554432"`
	Scope         string   `help:"Scope recorded on apparatus groups" default:"note" enum:"note,layer,staff,measure"`
}

// config builds the server configuration from the flags.
func (c *ServeCmd) config(g *Globals) api.Config {
	cfg := api.DefaultConfig()
	cfg.Addr = c.Addr
	if g.DataDir != "" {
		cfg.DataDir = g.DataDir
	}
	if c.Scope != "" {
		cfg.Scope = score.Scope(c.Scope)
	}
	cfg.MaxBodyBytes = c.MaxBody
	cfg.RateLimitRequests = c.RateLimit
	cfg.RateLimitBurst = c.RateBurst
	cfg.AllowedOrigins = c.AllowedOrigin
	if c.APIKey != "" {
		cfg.Auth = api.AuthConfig{Enabled: true, APIKey: c.APIKey}
	}
	if c.TLSCert != "" || c.TLSKey != "" {
		cfg.TLS = api.TLSConfig{Enabled: true, CertFile: c.TLSCert, KeyFile: c.TLSKey}
	}
	return cfg
}

func (c *ServeCmd) Run(g *Globals, env *Env) error {
	cfg := c.config(g)
	p, closeFn, err := openPipeline(env.Ctx, cfg.DataDir)
	if err != nil {
		return err
	}
	defer closeFn()

	api.Version = version
	srv, err := api.New(cfg, p)
	if err != nil {
		return err
	}
	defer srv.Close()
	return srv.ListenAndServe(env.Ctx)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	_, err := env.Stdout.Write([]byte("juniperscore version " + version + "\n"))
	return err
}
