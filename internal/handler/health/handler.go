package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/healthcare-records/internal/model"
)

// SessionReporter exposes the wallet session state.
type SessionReporter interface {
	State() model.SessionState
}

type Handler struct {
	session SessionReporter
}

func NewHandler(session SessionReporter) *Handler {
	return &Handler{
		session: session,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// ReadinessCheck is UP once the wallet session is connected.
func (h *Handler) ReadinessCheck(c *gin.Context) {
	state := h.session.State()
	if !state.Connected {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "DOWN",
			"reason": "Wallet session is not connected",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"account": state.Account,
	})
}
