package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsbrief-ai-api/internal/infrastructure/persistence/milvus"
	"newsbrief-ai-api/internal/infrastructure/persistence/postgres"
	"newsbrief-ai-api/internal/infrastructure/persistence/redis"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	pg      *postgres.Client
	redis   *redis.Client
	milvus  *milvus.Client
	version string
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client, version string) *HealthHandler {
	return &HealthHandler{
		pg:      pg,
		redis:   redisClient,
		milvus:  milvusClient,
		version: version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
	})
}

// Ready 就绪检查接口
// 语义检索依赖向量库，Postgres/Redis/Milvus 任一不可用即不就绪
// @Summary 就绪检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]*readinessCheck, 3)
	ready := true

	check := func(name string, healthCheck func(context.Context) error) {
		result := &readinessCheck{Status: "unknown"}
		checks[name] = result
		if healthCheck == nil {
			result.Status = "missing"
			result.Error = name + " client not configured"
			ready = false
			return
		}
		start := time.Now()
		err := healthCheck(ctx)
		result.LatencyMs = time.Since(start).Milliseconds()
		if err != nil {
			result.Status = "error"
			result.Error = err.Error()
			ready = false
			return
		}
		result.Status = "ok"
	}

	var pgCheck, redisCheck, milvusCheck func(context.Context) error
	if h.pg != nil {
		pgCheck = h.pg.HealthCheck
	}
	if h.redis != nil {
		redisCheck = h.redis.HealthCheck
	}
	if h.milvus != nil {
		milvusCheck = h.milvus.HealthCheck
	}
	check("postgres", pgCheck)
	check("redis", redisCheck)
	check("milvus", milvusCheck)

	resp := readinessResponse{
		Status: "ok",
		Checks: checks,
	}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "ok",
	})
}
