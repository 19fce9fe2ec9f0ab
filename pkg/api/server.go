// Package api is the backend HTTP API: order intake from ordering channels
// and account provisioning for the admin console.
package api

import (
	"context"
	"net/http"

	"github.com/CesarCrz/cEatssFB/pkg/logger"
	"github.com/CesarCrz/cEatssFB/pkg/middleware"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/CesarCrz/cEatssFB/docs"
)

// OrderIntake stores submitted orders.
type OrderIntake interface {
	Submit(ctx context.Context, sub orders.Submission) (*models.Order, error)
}

// Provisioner creates staff accounts and restaurants.
type Provisioner interface {
	CreateStaffUser(ctx context.Context, req provisioning.StaffRequest) (string, error)
	CreateRestaurant(ctx context.Context, name, address string) (string, error)
}

// OrphanLister reads the orphaned-account ledger.
type OrphanLister interface {
	ListOrphans(ctx context.Context, limit int) ([]repository.OrphanedAccount, error)
}

// AuditReader reads the audit trail of an entity.
type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*repository.AuditLog, error)
}

type Server struct {
	router       *gin.Engine
	orders       OrderIntake
	provisioning Provisioner
	auth         middleware.Authenticator
	orphans      OrphanLister
	audit        AuditReader
	logger       *zap.Logger
}

type Option func(*Server)

// WithAuditReader exposes the audit trail at /api/admin/audit/:entityId.
func WithAuditReader(r AuditReader) Option {
	return func(s *Server) { s.audit = r }
}

// WithOrphanLedger exposes the ledger at /api/admin/orphans.
func WithOrphanLedger(l OrphanLister) Option {
	return func(s *Server) { s.orphans = l }
}

func NewServer(orderSvc OrderIntake, prov Provisioner, auth middleware.Authenticator, log *zap.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))

	s := &Server{
		router:       router,
		orders:       orderSvc,
		provisioning: prov,
		auth:         auth,
		logger:       log.Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Backend de Caesar´s Eats funcionando!")
	})
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.router.Group("/api")
	{
		api.POST("/pedidos", s.submitOrder)

		authed := api.Group("", middleware.RequireAuth(s.auth, s.logger))
		{
			authed.POST("/createRestaurantUser", s.createRestaurantUser)
			authed.POST("/createRestaurant", s.createRestaurant)
			authed.GET("/admin/orphans", s.listOrphans)
			authed.GET("/admin/audit/:entityId", s.listAudit)
		}
	}

	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.router
}
