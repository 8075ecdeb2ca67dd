package apihandlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"triage/internal/requestctx"
)

// maxRequestIDLen bounds caller-supplied request ids.
const maxRequestIDLen = 128

// RequestID propagates the X-Request-ID header, generating one when the
// caller did not send it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestctx.HeaderName)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(requestctx.HeaderName, id)
		c.Request = c.Request.WithContext(requestctx.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.RootHandler)
	r.GET("/health", h.HealthHandler)
	r.POST("/process-customer-message", h.ProcessMessageHandler)

	v1 := r.Group("/api/v1")
	{
		messages := v1.Group("/messages")
		{
			messages.POST("", h.ProcessMessageHandler)
			messages.POST("/async", h.EnqueueMessageHandler)
			messages.GET("/async/:id", h.GetJobHandler)
		}
		v1.GET("/usage/summary", h.UsageSummaryHandler)
	}
}

// NewRouter returns a gin engine with logging, recovery and request ids.
func NewRouter(h *APIHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), RequestID())
	h.RegisterRoutes(router)
	return router
}
