package filter

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mikey/trustmail/internal/core"
	"github.com/mikey/trustmail/internal/ingest"
	"github.com/mikey/trustmail/internal/metrics"
	"go.uber.org/zap"
)

const (
	errContentRequired = "Email content is required"
	errBodyTooLarge    = "Request body too large"
)

// HTTPOptions configures the HTTP API filter
type HTTPOptions struct {
	Address        string
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxBodyBytes   int64
	CORSOrigins    []string
	// TrustedProxies may set X-Forwarded-For; empty means none and the
	// client IP is the peer address
	TrustedProxies []string
}

// HTTPFilter exposes the analysis service as a JSON API
type HTTPFilter struct {
	service *core.AnalysisService
	mapper  *ingest.Mapper
	logger  *zap.Logger
	opts    HTTPOptions
	router  *gin.Engine
	limiter *rateLimiter
	server  *http.Server
}

// NewHTTPFilter creates a new HTTP API filter and registers its routes
func NewHTTPFilter(service *core.AnalysisService, mapper *ingest.Mapper, logger *zap.Logger, opts HTTPOptions) *HTTPFilter {
	f := &HTTPFilter{
		service: service,
		mapper:  mapper,
		logger:  logger,
		opts:    opts,
	}
	f.router = f.routes()
	return f
}

// Handler returns the underlying HTTP handler
func (f *HTTPFilter) Handler() http.Handler {
	return f.router
}

func (f *HTTPFilter) routes() *gin.Engine {
	router := gin.New()
	var proxies []string
	if len(f.opts.TrustedProxies) > 0 {
		proxies = f.opts.TrustedProxies
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		f.logger.Warn("Invalid trusted proxies, trusting none", zap.Strings("proxies", proxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(metrics.PrometheusMiddleware())

	if len(f.opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins: f.opts.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	if f.opts.MaxBodyBytes > 0 {
		router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, f.opts.MaxBodyBytes)
			c.Next()
		})
	}

	if f.opts.RateLimitRPS > 0 {
		f.limiter = newRateLimiter(f.opts.RateLimitRPS, f.opts.RateLimitBurst)
		router.Use(f.limiter.middleware())
	}

	router.Use(f.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.MetricsHandler())

	api := router.Group("/api")
	api.Use(f.requireAPIKey())
	api.POST("/analyze-email", f.analyzeEmail)
	api.POST("/summarize-email", f.summarizeEmail)
	api.POST("/webhook/email", f.webhook)
	api.GET("/webhook/email", f.webhookStatus)

	return router
}

// requireAPIKey rejects requests without the configured bearer key. An
// empty key leaves the API open.
func (f *HTTPFilter) requireAPIKey() gin.HandlerFunc {
	expected := []byte(f.opts.APIKey)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), expected) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (f *HTTPFilter) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		f.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// contentRequest is the body of the analyze and summarize endpoints.
// EmailContent is left untyped so a non-string value is reported the same
// way as a missing one.
type contentRequest struct {
	EmailContent any `json:"emailContent"`
}

// bindContent extracts emailContent, writing a 400 response when it is
// missing, not a string or blank
func bindContent(c *gin.Context) (string, bool) {
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errBodyTooLarge})
			return "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": errContentRequired})
		return "", false
	}

	content, ok := req.EmailContent.(string)
	if !ok || strings.TrimSpace(content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errContentRequired})
		return "", false
	}
	return content, true
}

func (f *HTTPFilter) analyzeEmail(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}

	report, err := f.service.AnalyzeText(c.Request.Context(), content)
	if err != nil {
		f.writeServiceError(c, err, "Failed to analyze email")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"processingId": report.ProcessingID,
		"cached":       report.Cached,
		"analysis":     report.Analysis,
		"timestamp":    report.AnalyzedAt,
	})
}

func (f *HTTPFilter) summarizeEmail(c *gin.Context) {
	content, ok := bindContent(c)
	if !ok {
		return
	}

	report, err := f.service.SummarizeText(c.Request.Context(), content)
	if err != nil {
		f.writeServiceError(c, err, "Failed to summarize email")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"processingId": report.ProcessingID,
		"summary":      report.Summary,
		"timestamp":    report.AnalyzedAt,
	})
}

func (f *HTTPFilter) webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": errBodyTooLarge})
		return
	}

	items, err := f.mapper.ParseBatch(body)
	if err != nil {
		f.logger.Warn("Rejected webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Failed to process emails"})
		return
	}

	f.logger.Info("Processing webhook emails", zap.Int("count", len(items)))
	batch := f.service.ProcessBatch(c.Request.Context(), items)

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"processed":  batch.Processed,
		"successful": batch.Successful,
		"errors":     batch.Errors,
		"results":    batch.Results,
	})
}

func (f *HTTPFilter) webhookStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "TrustMail Email Webhook Endpoint",
		"status":    "active",
		"timestamp": time.Now().UTC(),
	})
}

func (f *HTTPFilter) writeServiceError(c *gin.Context, err error, msg string) {
	if errors.Is(err, core.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.logger.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// ProcessEmail analyses an email without going through HTTP
func (f *HTTPFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.AnalysisReport, error) {
	return f.service.AnalyzeEmail(ctx, email)
}

// Start starts serving the API in the background
func (f *HTTPFilter) Start() error {
	f.server = &http.Server{
		Addr:              f.opts.Address,
		Handler:           f.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	f.logger.Info("HTTP filter starting", zap.String("address", f.opts.Address))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts the API down
func (f *HTTPFilter) Stop() error {
	if f.limiter != nil {
		f.limiter.stop()
	}
	if f.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}
