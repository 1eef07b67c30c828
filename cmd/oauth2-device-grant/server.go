package main

import (
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/common"
	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/device"
	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/health"
	"github.com/wrale/oauth2-device-grant/cmd/oauth2-device-grant/handlers/verify"
	"github.com/wrale/oauth2-device-grant/internal/csrf"
	"github.com/wrale/oauth2-device-grant/internal/deviceflow"
	"github.com/wrale/oauth2-device-grant/internal/logger"
	"github.com/wrale/oauth2-device-grant/internal/metrics"
	"github.com/wrale/oauth2-device-grant/internal/store"
	"github.com/wrale/oauth2-device-grant/internal/templates"
)

type server struct {
	cfg     Config
	router  *chi.Mux
	store   store.Store
	csrf    *csrf.Manager
	metrics metrics.Recorder
	logger  *zap.Logger
}

func newServer(cfg Config, st store.Store, csrfManager *csrf.Manager, rec metrics.Recorder, log *zap.Logger) (*server, error) {
	tmpls, err := templates.LoadTemplates()
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	clients, err := common.ParseClients(cfg.Clients)
	if err != nil {
		return nil, fmt.Errorf("parsing clients: %w", err)
	}

	verificationURI, err := cfg.verificationURI()
	if err != nil {
		return nil, fmt.Errorf("building verification URI: %w", err)
	}

	separators, err := cfg.separators()
	if err != nil {
		return nil, err
	}

	decider, err := deviceflow.NewDecider(
		verify.NewActivator(st),
		deviceflow.WithModes(map[string]deviceflow.ResponseMode{
			verify.JSONModeName: deviceflow.ResponseModeFunc(verify.JSONMode),
		}),
		deviceflow.WithDecisionLogger(log.Named("decision")),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decision engine: %w", err)
	}

	issuer, err := deviceflow.NewIssuer(
		device.NewIssueFunc(device.IssueConfig{
			Store:           st,
			VerificationURI: verificationURI,
			ExpiresIn:       cfg.CodeExpiry,
			Interval:        cfg.PollInterval,
			Modes:           decider.Modes(),
		}),
		deviceflow.WithVerificationURI(verificationURI),
		deviceflow.WithScopeSeparators(separators...),
		deviceflow.WithIssuerLogger(log.Named("issuer")),
	)
	if err != nil {
		return nil, fmt.Errorf("creating issuer: %w", err)
	}

	srv := &server{
		cfg:     cfg,
		router:  chi.NewRouter(),
		store:   st,
		csrf:    csrfManager,
		metrics: rec,
		logger:  log,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(logger.Middleware(log.Named("http")))
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	srv.routes(
		device.New(device.Config{
			Issuer:  issuer,
			Clients: clients,
			Metrics: rec,
			Logger:  log.Named("device"),
		}),
		verify.New(verify.Config{
			Store:           st,
			Decider:         decider,
			Templates:       tmpls,
			CSRF:            csrfManager,
			Clients:         clients,
			UserHeader:      cfg.UserHeader,
			VerificationURI: verificationURI,
			Metrics:         rec,
			Logger:          log.Named("verify"),
		}),
	)

	return srv, nil
}

func (s *server) routes(deviceHandler *device.Handler, verifyHandler *verify.Handler) {
	s.router.Method("GET", "/health", health.New(map[string]health.Checker{
		"store": s.store,
		"csrf":  s.csrf,
	}).WithVersion(Version))

	if s.cfg.MetricsEnabled {
		s.router.Method("GET", "/metrics", promhttp.Handler())
	}

	s.router.Method("POST", "/device/code", deviceHandler)
	s.router.Get("/device", verifyHandler.HandleForm)
	s.router.Post("/device/verify", verifyHandler.HandleSubmit)
	s.router.Post("/device/decision", verifyHandler.HandleDecision)
}
