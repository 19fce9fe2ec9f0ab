// Package gateway is the dashboard's HTTP server: login, the live order
// board of each restaurant, and the admin console.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/board"
	"github.com/CesarCrz/cEatssFB/pkg/console"
	"github.com/CesarCrz/cEatssFB/pkg/logger"
	"github.com/CesarCrz/cEatssFB/pkg/middleware"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthChecker reports the serving status of the backend API.
type HealthChecker interface {
	Check(ctx context.Context) (string, error)
}

// Deps are the services the gateway serves.
type Deps struct {
	Sessions     *session.Resolver
	Provisioning *provisioning.Service
	Orders       *orders.Service
	Boards       *board.Manager
	Console      *console.Console
	// Backend is optional; without it /health omits the backend status.
	Backend HealthChecker
}

type Gateway struct {
	deps   Deps
	logger *zap.Logger
	router *gin.Engine
	// viewTimeout bounds the wait for a board's first snapshot.
	viewTimeout time.Duration
}

func NewGateway(deps Deps, log *zap.Logger) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(log))

	g := &Gateway{
		deps:        deps,
		logger:      log.Named("gateway"),
		router:      router,
		viewTimeout: 10 * time.Second,
	}
	g.setupRoutes()
	return g
}

func (g *Gateway) setupRoutes() {
	g.router.GET("/health", g.health)

	api := g.router.Group("/api")
	{
		api.POST("/login", g.login)
		api.POST("/register", g.register)

		authed := api.Group("", middleware.RequireAuth(g.deps.Sessions, g.logger))
		{
			authed.GET("/session", g.session)

			restaurant := authed.Group("/restaurants/:restaurantId", g.requireRestaurantAccess)
			{
				restaurant.GET("/orders/pending", g.pendingOrders)
				restaurant.GET("/orders/stream", g.streamOrders)
				restaurant.POST("/orders/:orderId/transition", g.transitionOrder)
				restaurant.POST("/orders/:orderId/archive", g.archiveOrder)
			}

			admin := authed.Group("/admin")
			{
				admin.GET("/restaurants", g.listRestaurants)
				admin.POST("/restaurants", g.createRestaurant)
				admin.GET("/users", g.listUsers)
				admin.POST("/users", g.createUser)
			}
		}
	}
}

// Handler returns the HTTP handler serving the dashboard.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) health(c *gin.Context) {
	resp := gin.H{"status": "ok"}
	if g.deps.Backend != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, err := g.deps.Backend.Check(ctx)
		if err != nil {
			g.logger.Warn("Backend health check failed", zap.Error(err))
			status = fmt.Sprintf("UNAVAILABLE: %v", err)
		}
		resp["backend"] = status
	}
	c.JSON(http.StatusOK, resp)
}

func callerOf(c *gin.Context) *session.Caller {
	caller, _ := middleware.CallerFrom(c)
	return caller
}
