package gateway

import (
	"errors"
	"net/http"

	"github.com/CesarCrz/cEatssFB/pkg/console"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createRestaurantRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (g *Gateway) consoleError(c *gin.Context, err error) {
	var be *console.BackendError
	switch {
	case errors.Is(err, console.ErrForbidden), errors.Is(err, console.ErrOutOfScope):
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": console.Message(err)})
	case errors.Is(err, console.ErrMissingFields), errors.Is(err, console.ErrNoRestaurantPick):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": console.Message(err)})
	case errors.As(err, &be):
		status := be.Status
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"success": false, "message": be.Message})
	default:
		g.logger.Error("Console request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": console.Message(err)})
	}
}

func (g *Gateway) listRestaurants(c *gin.Context) {
	list, err := g.deps.Console.Restaurants(c.Request.Context(), callerOf(c))
	if err != nil {
		if errors.Is(err, console.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "No tienes permisos para ver restaurantes."})
			return
		}
		g.consoleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurants": list, "count": len(list)})
}

func (g *Gateway) listUsers(c *gin.Context) {
	list, err := g.deps.Console.Users(c.Request.Context(), callerOf(c))
	if err != nil {
		if errors.Is(err, console.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "No tienes permisos para ver usuarios."})
			return
		}
		g.consoleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

func (g *Gateway) createRestaurant(c *gin.Context) {
	var req createRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = createRestaurantRequest{}
	}

	id, err := g.deps.Console.CreateRestaurant(c.Request.Context(), callerOf(c), req.Name, req.Address)
	if err != nil {
		if errors.Is(err, console.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "El nombre y la dirección del restaurante son obligatorios."})
			return
		}
		g.consoleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"restaurantId": id,
		"message":      "Restaurante creado con ID: " + id,
	})
}

func (g *Gateway) createUser(c *gin.Context) {
	var req console.StaffUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		req = console.StaffUserInput{}
	}

	uid, err := g.deps.Console.CreateStaffUser(c.Request.Context(), callerOf(c), req)
	if err != nil {
		g.consoleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"uid":     uid,
		"message": "Usuario creado exitosamente.",
	})
}
