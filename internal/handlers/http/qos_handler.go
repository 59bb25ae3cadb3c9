package http

import (
	"net/http"

	"netqos/internal/core/domain"
	"netqos/internal/core/ports"
	"netqos/internal/core/services"
	"netqos/internal/infrastructure/broadcast"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QosHandler exposes the management API: rule administration, current
// allocation state, alerts and overall statistics. All reads come from the
// engine's last completed tick; the handler never drives the pipeline.
type QosHandler struct {
	engine      *services.Engine
	ruleService *services.RuleService
	aggregator  *services.Aggregator
	alertRepo   ports.AlertRepository
	sampleRepo  ports.SampleRepository
	wsServer    *broadcast.WebSocketServer
	healthCheck func(c *gin.Context) error
}

func NewQosHandler(
	engine *services.Engine,
	ruleService *services.RuleService,
	aggregator *services.Aggregator,
	alertRepo ports.AlertRepository,
	sampleRepo ports.SampleRepository,
	wsServer *broadcast.WebSocketServer,
	healthCheck func(c *gin.Context) error,
) *QosHandler {
	return &QosHandler{
		engine:      engine,
		ruleService: ruleService,
		aggregator:  aggregator,
		alertRepo:   alertRepo,
		sampleRepo:  sampleRepo,
		wsServer:    wsServer,
		healthCheck: healthCheck,
	}
}

func (h *QosHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", func(c *gin.Context) {
		h.wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	api := router.Group("/api/v1")
	{
		api.GET("/stats", h.GetStats)
		api.GET("/flows", h.GetFlows)
		api.GET("/rules", h.GetRules)
		api.PUT("/rules", h.SetRule)
		api.GET("/allocations", h.GetAllocations)
		api.GET("/alerts", h.GetAlerts)
		api.POST("/alerts/:id/resolve", h.ResolveAlert)
		api.POST("/samples", h.IngestSamples)
	}
}

func (h *QosHandler) Health(c *gin.Context) {
	if h.healthCheck != nil {
		if err := h.healthCheck(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *QosHandler) GetStats(c *gin.Context) {
	traffic := h.engine.LastTraffic()
	c.JSON(http.StatusOK, gin.H{
		"stats":   traffic.Stats,
		"byClass": h.aggregator.Stats(),
		"asOf":    traffic.Timestamp,
	})
}

func (h *QosHandler) GetFlows(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"flows": h.aggregator.Flows(),
	})
}

func (h *QosHandler) GetRules(c *gin.Context) {
	rules, err := h.ruleService.GetRules(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *QosHandler) SetRule(c *gin.Context) {
	var rule domain.QosRule
	if err := c.BindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ruleService.SetRule(c.Request.Context(), rule); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

func (h *QosHandler) GetAllocations(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.LastAllocation())
}

func (h *QosHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.alertRepo.Recent(c.Request.Context(), 100)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *QosHandler) ResolveAlert(c *gin.Context) {
	id := domain.AlertID(c.Param("id"))

	err := h.alertRepo.Resolve(c.Request.Context(), id)
	if err != nil {
		if err == domain.ErrAlertNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": string(id)})
}

// IngestSamples accepts externally produced traffic samples. Classification
// happens on the next tick, not here.
func (h *QosHandler) IngestSamples(c *gin.Context) {
	var req struct {
		Samples []domain.TrafficSample `json:"samples" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sampleRepo.Append(c.Request.Context(), req.Samples...); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": len(req.Samples)})
}
