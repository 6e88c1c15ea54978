package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"medrecords/pkg/render"
	"medrecords/services/audit"
	"medrecords/services/identity"
	"medrecords/services/records"
)

const (
	serviceName         = "medrecords-api"
	defaultLoginLimit   = 10
	defaultLoginWindow  = time.Minute
	multipartFormMemory = 1 << 20
)

// Config controls runtime behaviour for the API handlers.
type Config struct {
	AllowedOrigins []string
	// LoginLimit caps login attempts per client IP within LoginWindow.
	LoginLimit  int
	LoginWindow time.Duration
}

// Deps holds the services the handlers delegate to.
type Deps struct {
	Identity *identity.Service
	Records  *records.Service
	Trail    *audit.Viewer
	Renderer *render.Engine
	// Ready reports whether backing stores are reachable. Nil means always ready.
	Ready  func(context.Context) error
	Logger zerolog.Logger
}

// API wires services, the template renderer and configuration for HTTP handlers.
type API struct {
	identity *identity.Service
	records  *records.Service
	trail    *audit.Viewer
	renderer *render.Engine
	ready    func(context.Context) error
	logger   zerolog.Logger
	config   Config
}

// New initialises the API layer with defaults applied to the provided configuration.
func New(deps Deps, cfg Config) (*API, error) {
	if deps.Identity == nil {
		return nil, errors.New("identity service is required")
	}
	if deps.Records == nil {
		return nil, errors.New("records service is required")
	}
	if deps.Trail == nil {
		return nil, errors.New("audit viewer is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}

	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = defaultLoginLimit
	}
	if cfg.LoginWindow <= 0 {
		cfg.LoginWindow = defaultLoginWindow
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	ready := deps.Ready
	if ready == nil {
		ready = func(context.Context) error { return nil }
	}

	return &API{
		identity: deps.Identity,
		records:  deps.Records,
		trail:    deps.Trail,
		renderer: deps.Renderer,
		ready:    ready,
		logger:   deps.Logger,
		config:   cfg,
	}, nil
}
