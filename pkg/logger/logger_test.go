package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CesarCrz/cEatssFB/pkg/config"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LogConfig{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestNew_Console(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "debug", Encoding: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/ok?x=1", "/missing"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("HTTP request").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}
	if entries[0].ContextMap()["query"] != "x=1" {
		t.Errorf("expected query x=1, got %v", entries[0].ContextMap()["query"])
	}
	if entries[1].Level != zap.WarnLevel {
		t.Errorf("expected warn level for 404, got %v", entries[1].Level)
	}
}
