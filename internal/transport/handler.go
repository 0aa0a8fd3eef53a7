package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go-canny-edge/internal/config"
	"go-canny-edge/internal/edge"
	apperrors "go-canny-edge/internal/errors"
	"go-canny-edge/internal/logger"
	"go-canny-edge/internal/service"
	"go-canny-edge/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// NewHandler builds the gin router. metrics may be nil, which disables
// the /metrics endpoint.
func NewHandler(svc service.EdgeService, cfg *config.Config, metrics prometheus.Gatherer) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.CustomRecovery(recoverJSON),
		requestID(),
		requestLogger(),
		corsMiddleware(cfg.CORSOrigins),
	)

	// Configure routes
	r.GET("/health", healthCheck(svc))
	if cfg.MetricsEnabled && metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
	}

	limiter := newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0)
	r.POST("/canny",
		rateLimit(limiter),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
		generateCanny(svc, cfg),
	)

	return r
}

func generateCanny(svc service.EdgeService, cfg *config.Config) gin.HandlerFunc {
	defaults := edge.DefaultOptions()

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()
		}

		var req models.EdgeRequest
		if err := c.ShouldBind(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				_ = c.Error(&apperrors.AppError{
					Type:       apperrors.ErrorTypeValidation,
					Message:    "Request body too large",
					StatusCode: http.StatusRequestEntityTooLarge,
					Cause:      err,
				})
				return
			}
			_ = c.Error(apperrors.NewValidationError(err.Error(), err))
			return
		}

		low, high, err := req.Thresholds(defaults.LowThreshold, defaults.HighThreshold)
		if err != nil {
			_ = c.Error(apperrors.NewValidationError(err.Error(), err))
			return
		}
		opts := defaults.
			WithThresholds(low, high).
			WithL2Gradient(req.L2Gradient).
			WithBlur(req.BlurRadius)

		logger.WithFields(logrus.Fields{
			"request_id":     c.GetString(requestIDKey),
			"image_url":      req.ImageURL,
			"low_threshold":  low,
			"high_threshold": high,
		}).Debug("Processing canny request")

		result, err := svc.GenerateEdges(ctx, service.EdgeInput{
			RequestID: c.GetString(requestIDKey),
			ImageURL:  req.ImageURL,
			Options:   opts,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func healthCheck(svc service.EdgeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  "available",
			Version: Version,
			Time:    time.Now().UTC().Format(time.RFC3339),
			Engine:  svc.Engine(),
			Engines: edge.Engines(),
		})
	}
}

func respondError(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"request_id":  c.GetString(requestIDKey),
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error: apperrors.PublicMessage(err),
	})
}
