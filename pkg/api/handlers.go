package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/CesarCrz/cEatssFB/pkg/middleware"
	"github.com/CesarCrz/cEatssFB/pkg/models"
	"github.com/CesarCrz/cEatssFB/pkg/orders"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type orderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
	Error   string `json:"error,omitempty"`
}

type staffUserResponse struct {
	Success bool   `json:"success"`
	UID     string `json:"uid,omitempty"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type restaurantRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type restaurantResponse struct {
	Success      bool   `json:"success"`
	RestaurantID string `json:"restaurantId,omitempty"`
	Message      string `json:"message,omitempty"`
	Error        string `json:"error,omitempty"`
}

// submitOrder godoc
// @Summary      Receive an order
// @Description  Stores an order from an ordering channel as pending under its branch.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        order  body      orders.Submission  true  "Order"
// @Success      200    {object}  orderResponse
// @Failure      400    {object}  orderResponse
// @Failure      500    {object}  orderResponse
// @Router       /api/pedidos [post]
func (s *Server) submitOrder(c *gin.Context) {
	var sub orders.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		s.logger.Warn("Malformed order payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, orderResponse{Success: false, Message: "Datos del pedido incompletos."})
		return
	}

	order, err := s.orders.Submit(c.Request.Context(), sub)
	if err != nil {
		var verr *orders.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, orderResponse{Success: false, Message: verr.Message})
			return
		}
		s.logger.Error("Failed to process order", zap.String("order_id", sub.OrderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, orderResponse{
			Success: false,
			Message: "Error interno al procesar el pedido.",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, orderResponse{
		Success: true,
		Message: "Pedido recibido y guardado correctamente.",
		OrderID: order.OrderID,
	})
}

// createRestaurantUser godoc
// @Summary      Create a restaurant staff user
// @Description  Creates the identity account, the profile and the roster entry of a staff user.
// @Tags         provisioning
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        user  body      provisioning.StaffRequest  true  "Staff user"
// @Success      201   {object}  staffUserResponse
// @Failure      400   {object}  staffUserResponse
// @Failure      401   {object}  staffUserResponse
// @Failure      403   {object}  staffUserResponse
// @Failure      500   {object}  staffUserResponse
// @Router       /api/createRestaurantUser [post]
func (s *Server) createRestaurantUser(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)

	var req provisioning.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, staffUserResponse{Message: provisioning.Message(provisioning.ErrMissingFields)})
		return
	}
	if req.RestaurantID != "" && !canProvision(caller.Role, req.RestaurantID) {
		s.logger.Warn("Staff provisioning outside caller scope",
			zap.String("caller", caller.UID),
			zap.String("restaurant_id", req.RestaurantID))
		c.JSON(http.StatusForbidden, staffUserResponse{Message: "No tienes permisos para crear usuarios en este restaurante."})
		return
	}

	uid, err := s.provisioning.CreateStaffUser(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if provisioning.IsClientError(err) {
			status = http.StatusBadRequest
		}
		resp := staffUserResponse{Message: provisioning.Message(err)}
		if status == http.StatusInternalServerError {
			resp.Error = err.Error()
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, staffUserResponse{
		Success: true,
		UID:     uid,
		Message: "Usuario creado exitosamente.",
	})
}

// createRestaurant godoc
// @Summary      Create a restaurant
// @Tags         provisioning
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        restaurant  body      restaurantRequest  true  "Restaurant"
// @Success      201         {object}  restaurantResponse
// @Failure      400         {object}  restaurantResponse
// @Failure      403         {object}  restaurantResponse
// @Failure      500         {object}  restaurantResponse
// @Router       /api/createRestaurant [post]
func (s *Server) createRestaurant(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	if !isSuperadmin(caller.Role) {
		c.JSON(http.StatusForbidden, restaurantResponse{Message: "Solo un superadministrador puede crear restaurantes."})
		return
	}

	var req restaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = restaurantRequest{}
	}

	id, err := s.provisioning.CreateRestaurant(c.Request.Context(), req.Name, req.Address)
	if err != nil {
		if errors.Is(err, provisioning.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, restaurantResponse{Message: "El nombre y la dirección del restaurante son obligatorios."})
			return
		}
		s.logger.Error("Failed to create restaurant", zap.Error(err))
		c.JSON(http.StatusInternalServerError, restaurantResponse{
			Message: "Error interno al crear el restaurante.",
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, restaurantResponse{
		Success:      true,
		RestaurantID: id,
		Message:      "Restaurante creado exitosamente.",
	})
}

// listOrphans godoc
// @Summary      List orphaned identity accounts
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        limit  query     int  false  "Maximum entries"
// @Success      200    {object}  map[string]interface{}
// @Failure      403    {object}  map[string]interface{}
// @Failure      503    {object}  map[string]interface{}
// @Router       /api/admin/orphans [get]
func (s *Server) listOrphans(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	if !isSuperadmin(caller.Role) {
		middleware.Abort(c, http.StatusForbidden, "No tienes permisos para realizar esta acción.")
		return
	}
	if s.orphans == nil {
		middleware.Abort(c, http.StatusServiceUnavailable, "El registro de cuentas huérfanas no está configurado.")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	orphans, err := s.orphans.ListOrphans(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list orphaned accounts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orphans": orphans,
		"count":   len(orphans),
	})
}

// listAudit godoc
// @Summary      Audit trail of an order, user or restaurant
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        entityId  path      string  true   "Order id, uid or restaurant id"
// @Param        limit     query     int     false  "Maximum entries"
// @Success      200       {object}  map[string]interface{}
// @Failure      403       {object}  map[string]interface{}
// @Failure      503       {object}  map[string]interface{}
// @Router       /api/admin/audit/{entityId} [get]
func (s *Server) listAudit(c *gin.Context) {
	caller, _ := middleware.CallerFrom(c)
	if !isSuperadmin(caller.Role) {
		middleware.Abort(c, http.StatusForbidden, "No tienes permisos para realizar esta acción.")
		return
	}
	if s.audit == nil {
		middleware.Abort(c, http.StatusServiceUnavailable, "El registro de auditoría no está configurado.")
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	logs, err := s.audit.GetAuditLogs(c.Request.Context(), c.Param("entityId"), limit)
	if err != nil {
		s.logger.Error("Failed to read audit logs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "logs": logs, "count": len(logs)})
}

// canProvision reports whether role may add staff to restaurantID.
func canProvision(role models.Role, restaurantID string) bool {
	return session.CanAccessRestaurant(role, restaurantID)
}

func isSuperadmin(role models.Role) bool {
	admin, ok := role.(models.Admin)
	return ok && admin.Superadmin()
}
