package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"restocrm/internal/config"
	"restocrm/internal/domain"
	"restocrm/internal/tenant"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Services are the dependencies the HTTP API dispatches to.
type Services struct {
	Clients      domain.ClientService
	Reservations domain.ReservationService
	Orders       domain.OrderService
	Restaurants  domain.RestaurantService
	Sessions     domain.SessionService
	Resolver     *tenant.Resolver

	// ExportDir is where saved client workbooks are written.
	ExportDir string

	// Health runs readiness checks for /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

// HTTPServer exposes the panel and admin API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	engine *gin.Engine
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "api").Logger()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestLogger(logger))

	s := &HTTPServer{cfg: cfg, svc: svc, engine: engine, logger: &l}
	s.routes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes() {
	r := s.engine
	r.GET("/healthz", s.handleHealth)

	v1 := r.Group("/api/v1")
	v1.POST("/sessions", s.handleSignIn)

	panel := v1.Group("/")
	panel.Use(SessionAuth(s.svc.Resolver, s.cfg.Auth.HeaderSession))
	{
		panel.DELETE("/sessions", s.handleSignOut)

		panel.GET("/clients", s.listClients)
		panel.POST("/clients", s.createClient)
		panel.GET("/clients/export", s.exportClients)
		panel.POST("/clients/export", s.saveClientsExport)
		panel.POST("/clients/sync", s.syncClientsSheet)
		panel.GET("/clients/:id", s.getClient)
		panel.PATCH("/clients/:id", s.updateClient)
		panel.DELETE("/clients/:id", s.deleteClient)
		panel.POST("/clients/:id/interactions", s.recordInteraction)

		panel.GET("/reservations", s.listReservations)
		panel.POST("/reservations", s.createReservation)
		panel.GET("/reservations/:id", s.getReservation)
		panel.PATCH("/reservations/:id", s.updateReservation)
		panel.PATCH("/reservations/:id/status", s.setReservationStatus)
		panel.DELETE("/reservations/:id", s.deleteReservation)

		panel.GET("/orders", s.listOrders)
		panel.POST("/orders", s.createOrder)
		panel.GET("/orders/:id", s.getOrder)
		panel.PATCH("/orders/:id", s.updateOrder)
		panel.PATCH("/orders/:id/status", s.setOrderStatus)
		panel.DELETE("/orders/:id", s.deleteOrder)

		panel.GET("/legacy/report", s.legacyReport)
	}

	admin := v1.Group("/admin")
	admin.Use(NewAdminAuth(s.cfg).Middleware(permAdminRestaurants))
	{
		admin.GET("/restaurants", s.listRestaurants)
		admin.POST("/restaurants", s.createRestaurant)
		admin.GET("/restaurants/:id", s.getRestaurant)
		admin.PATCH("/restaurants/:id", s.updateRestaurant)
		admin.DELETE("/restaurants/:id", s.deleteRestaurant)
	}
}

// Handler returns the router, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(c *gin.Context) {
	if s.svc.Health != nil {
		if err := s.svc.Health(c.Request.Context()); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
