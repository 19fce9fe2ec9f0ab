package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/CesarCrz/cEatssFB/pkg/identity"
	"github.com/CesarCrz/cEatssFB/pkg/provisioning"
	"github.com/CesarCrz/cEatssFB/pkg/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// sessionStatus maps a sign-in or resolution error to its HTTP status.
func sessionStatus(err error) int {
	var idErr *identity.Error
	switch {
	case errors.Is(err, session.ErrAccessDenied), errors.Is(err, session.ErrProfileNotFound):
		return http.StatusForbidden
	case errors.Is(err, session.ErrUnauthenticated), errors.As(err, &idErr):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Ingresa tu correo y contraseña."})
		return
	}

	res, err := g.deps.Sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := sessionStatus(err)
		if status == http.StatusInternalServerError {
			g.logger.Error("Login failed", zap.String("email", req.Email), zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "message": session.Message(err)})
		return
	}

	g.logger.Info("User signed in",
		zap.String("uid", res.UID),
		zap.String("role", res.Role),
		zap.String("redirect", res.Destination))
	c.JSON(http.StatusOK, res)
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": provisioning.Message(provisioning.ErrMissingFields)})
		return
	}

	sess, err := g.deps.Provisioning.RegisterCustomer(c.Request.Context(), req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		var idErr *identity.Error
		switch {
		case provisioning.IsClientError(err):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": provisioning.Message(err)})
		case errors.As(err, &idErr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": identity.Message(err, identity.OpSignUp)})
		default:
			g.logger.Error("Registration failed", zap.String("email", req.Email), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": identity.Message(err, identity.OpSignUp)})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "uid": sess.UID})
}

// session returns the caller's resolution, so a page reload can restore
// the landing page without signing in again.
func (g *Gateway) session(c *gin.Context) {
	caller := callerOf(c)
	res, err := g.deps.Sessions.Resolve(c.Request.Context(), caller.UID)
	if err != nil {
		c.JSON(sessionStatus(err), gin.H{"success": false, "message": session.Message(err)})
		return
	}
	c.JSON(http.StatusOK, res)
}
