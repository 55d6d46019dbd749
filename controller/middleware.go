package controller

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github/itish2003/autorag/logger"
)

// CORSMiddleware allows the given origins; a lone "*" allows every origin.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

// RequestLogger starts a server span, attaches a request-scoped logger to the
// request context and logs one line per request.
func RequestLogger() gin.HandlerFunc {
	tracer := otel.Tracer("autorag/http")
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("request_id", requestID)),
		)
		defer span.End()

		log := logger.GetDefault().With("request_id", requestID)
		if sc := span.SpanContext(); sc.HasTraceID() {
			log = log.With("trace_id", sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(logger.ContextWithLogger(ctx, log))

		c.Next()

		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
		log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}

// NewRouter builds the HTTP engine with recovery, logging and CORS.
func NewRouter(ctrl *RAGController, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(CORSMiddleware(origins))
	ctrl.RegisterRoutes(router)
	return router
}
