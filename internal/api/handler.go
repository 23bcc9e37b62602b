// Package api exposes the host command surface over HTTP: worker
// lifecycle plus the analysis commands, each a thin call into the
// worker subsystem. The relay WebSocket endpoint is mounted on the
// same engine.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"facebridge/server/internal/relay"
)

// WorkerService is the worker subsystem surface the host API needs.
type WorkerService interface {
	Start(ctx context.Context, port int) error
	Stop() error
	Running() bool
	Analyze(ctx context.Context, frame, actions string, detector, model *string) (json.RawMessage, error)
	Verify(ctx context.Context, img1, img2 string, detector, model *string) (json.RawMessage, error)
	Detect(ctx context.Context, frame string, detector *string) (json.RawMessage, error)
}

type Handler struct {
	log        *zap.SugaredLogger
	worker     WorkerService
	workerPort int
}

func NewHandler(log *zap.SugaredLogger, worker WorkerService, workerPort int) *Handler {
	return &Handler{log: log.Named("api"), worker: worker, workerPort: workerPort}
}

// SetupRoutes mounts the host API and the relay WebSocket endpoint.
func (h *Handler) SetupRoutes(r *gin.Engine, relaySrv *relay.Server) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "workerRunning": h.worker.Running()})
	})

	r.GET("/ws", relaySrv.HandleWS)

	api := r.Group("/api")
	api.POST("/worker/start", h.StartWorker)
	api.POST("/worker/stop", h.StopWorker)
	api.POST("/analyze", h.Analyze)
	api.POST("/verify", h.Verify)
	api.POST("/detect", h.Detect)
}

type startRequest struct {
	Port int `json:"port"`
}

func (h *Handler) StartWorker(c *gin.Context) {
	var req startRequest
	// Body is optional; the configured worker port is the default.
	_ = c.ShouldBindJSON(&req)
	if req.Port == 0 {
		req.Port = h.workerPort
	}

	if err := h.worker.Start(c.Request.Context(), req.Port); err != nil {
		h.log.Warnf("worker start failed: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "port": req.Port})
}

func (h *Handler) StopWorker(c *gin.Context) {
	if err := h.worker.Stop(); err != nil {
		h.log.Warnf("worker stop failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type analyzeRequest struct {
	Frame    string  `json:"frame" binding:"required"`
	Actions  string  `json:"actions" binding:"required"`
	Detector *string `json:"detector"`
	Model    *string `json:"model"`
}

func (h *Handler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := h.worker.Analyze(c.Request.Context(), req.Frame, req.Actions, req.Detector, req.Model)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

type verifyRequest struct {
	Img1     string  `json:"img1" binding:"required"`
	Img2     string  `json:"img2" binding:"required"`
	Detector *string `json:"detector"`
	Model    *string `json:"model"`
}

func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := h.worker.Verify(c.Request.Context(), req.Img1, req.Img2, req.Detector, req.Model)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

type detectRequest struct {
	Frame    string  `json:"frame" binding:"required"`
	Detector *string `json:"detector"`
}

func (h *Handler) Detect(c *gin.Context) {
	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := h.worker.Detect(c.Request.Context(), req.Frame, req.Detector)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}
