package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"equities-trading-bot/internal/auth"
	"equities-trading-bot/internal/autopilot"
)

// workflowContext detaches a workflow from the request so a dropped client
// cannot cancel an order in flight
func workflowContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// writeResult maps a workflow result to a response; only status=error is a
// server error
func writeResult(c *gin.Context, res *autopilot.Result) {
	code := http.StatusOK
	if res.Status == autopilot.StatusError {
		code = http.StatusInternalServerError
	}
	c.JSON(code, res)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"uptime_seconds":    int64(time.Since(s.started).Seconds()),
		"websocket_clients": s.hub.GetClientCount(),
		"time":              time.Now().UTC(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status(c.Request.Context()))
}

func (s *Server) handleCircuitBreaker(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status(c.Request.Context()).CircuitBreaker)
}

func (s *Server) handleResetCircuitBreaker(c *gin.Context) {
	ctx := workflowContext(c)
	if err := s.controller.ResetCircuitBreaker(ctx); err != nil {
		errorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Warn().Str("operator", c.GetString(auth.ContextKeyOperator)).Msg("Circuit breaker reset via API")
	c.JSON(http.StatusOK, s.controller.Status(ctx).CircuitBreaker)
}

func (s *Server) handleScan(c *gin.Context) {
	writeResult(c, s.controller.ScanAndTrade(workflowContext(c)))
}

func (s *Server) handleMonitor(c *gin.Context) {
	writeResult(c, s.controller.MonitorAndExit(workflowContext(c)))
}

func (s *Server) handleManualTrade(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol is required")
		return
	}
	writeResult(c, s.controller.ManualTrade(workflowContext(c), symbol))
}

func (s *Server) handleEmergencyStop(c *gin.Context) {
	s.logger.Warn().Str("operator", c.GetString(auth.ContextKeyOperator)).Msg("Emergency stop requested via API")
	writeResult(c, s.controller.EmergencyStop(workflowContext(c)))
}

func (s *Server) handleResume(c *gin.Context) {
	s.logger.Info().Str("operator", c.GetString(auth.ContextKeyOperator)).Msg("Resume requested via API")
	writeResult(c, s.controller.Resume(workflowContext(c)))
}
