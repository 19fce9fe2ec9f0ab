package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/CesarCrz/cEatssFB/pkg/board"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/repository"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamKeepAlive = 15 * time.Second

type transitionRequest struct {
	Action orders.Action `json:"action"`
}

// requireRestaurantAccess lets staff reach their own restaurant and admins
// the restaurants in their scope.
func (g *Gateway) requireRestaurantAccess(c *gin.Context) {
	rid := c.Param("restaurantId")
	if err := repository.ValidateKey(rid); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"success": false, "message": "ID del restaurante inválido."})
		return
	}
	caller := callerOf(c)
	if !session.CanAccessRestaurant(caller.Role, rid) {
		g.logger.Warn("Restaurant access denied",
			zap.String("uid", caller.UID),
			zap.String("role", caller.Role.Name()),
			zap.String("restaurant_id", rid))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "No tienes permisos para ver este restaurante."})
		return
	}
	c.Next()
}

// firstView waits for the board's first loaded (or failed) view.
func firstView(ctx context.Context, b *board.Board) (board.View, error) {
	for {
		select {
		case v, ok := <-b.Updates():
			if !ok {
				return board.View{}, errors.New("board closed")
			}
			if v.Loaded || v.Error != "" {
				return v, nil
			}
		case <-ctx.Done():
			return board.View{}, ctx.Err()
		}
	}
}

func (g *Gateway) pendingOrders(c *gin.Context) {
	rid := c.Param("restaurantId")
	ctx, cancel := context.WithTimeout(c.Request.Context(), g.viewTimeout)
	defer cancel()

	b, err := g.deps.Boards.Open(ctx, rid)
	if err != nil {
		g.logger.Error("Failed to open board", zap.String("restaurant_id", rid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "No se pudieron cargar los pedidos pendientes."})
		return
	}
	defer b.Close()

	first, err := firstView(ctx, b)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"success": false, "message": "No se pudieron cargar los pedidos pendientes."})
		return
	}
	if first.Error != "" {
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": first.Error})
		return
	}

	// The actor may have applied later snapshots since the first update.
	view, err := b.Orders(ctx)
	if err != nil {
		g.logger.Error("Failed to read board", zap.String("restaurant_id", rid), zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"success": false, "message": "No se pudieron cargar los pedidos pendientes."})
		return
	}
	c.JSON(http.StatusOK, view)
}

// streamOrders sends an "orders" event with the full view after every
// change until the client disconnects.
func (g *Gateway) streamOrders(c *gin.Context) {
	rid := c.Param("restaurantId")
	b, err := g.deps.Boards.Open(c.Request.Context(), rid)
	if err != nil {
		g.logger.Error("Failed to open board", zap.String("restaurant_id", rid), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "No se pudieron cargar los pedidos pendientes."})
		return
	}
	defer b.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case view, ok := <-b.Updates():
			if !ok {
				return false
			}
			c.SSEvent("orders", view)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UnixMilli())
			return true
		case <-done:
			return false
		}
	})
}

func (g *Gateway) transitionOrder(c *gin.Context) {
	rid, oid := c.Param("restaurantId"), c.Param("orderId")

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Acción requerida."})
		return
	}

	status, err := g.deps.Orders.Transition(c.Request.Context(), rid, oid, req.Action)
	if err != nil {
		g.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orderId": oid,
		"status":  status,
		"actions": orders.AvailableActions(status),
	})
}

func (g *Gateway) archiveOrder(c *gin.Context) {
	rid, oid := c.Param("restaurantId"), c.Param("orderId")
	if err := g.deps.Orders.Archive(c.Request.Context(), rid, oid); err != nil {
		g.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orderId": oid, "archived": true})
}

func (g *Gateway) orderError(c *gin.Context, err error) {
	var verr *orders.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": verr.Message})
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Pedido no encontrado."})
	case errors.Is(err, orders.ErrTerminalStatus):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "El pedido ya fue entregado o cancelado."})
	case errors.Is(err, orders.ErrNotTerminal):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Solo se pueden archivar pedidos entregados o cancelados."})
	default:
		g.logger.Error("Order update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Error interno al actualizar el pedido.",
			"error":   err.Error(),
		})
	}
}
