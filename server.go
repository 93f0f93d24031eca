package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/marketplace_backend/config"
	"github.com/mmdatafocus/marketplace_backend/middlewares"
	"github.com/mmdatafocus/marketplace_backend/models"
	"github.com/mmdatafocus/marketplace_backend/utils"
	"github.com/mmdatafocus/marketplace_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("marketplace-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func bindError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrs)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func domainError(c *gin.Context, err error) {
	var stockErr *models.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error":      "insufficient stock",
			"shortfalls": stockErr.Shortfalls,
		})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if errors.Is(err, utils.ErrorUnauthorized) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// paymentWebhookHandler is the payment event source. The processor's
// signature check happens at the gateway in front of this service; here the
// body is trusted input keyed by event_id.
func paymentWebhookHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		ctx, span := tracer.Start(c.Request.Context(), "payment-webhook")
		defer span.End()

		var event workflow.PaymentEvent
		if err := c.ShouldBindJSON(&event); err != nil {
			// Malformed request: ack/drop to avoid infinite retries.
			config.LogError(logger, "server.go", "paymentWebhookHandler", "bind event", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Redis lock is a best-effort optimization.
		// Reliability must not depend on Redis: posting is also serialized via MySQL advisory locks.
		var lock *redislock.Lock
		if redisLock := config.GetRedisLock(); redisLock != nil {
			var err error
			lock, err = redisLock.Obtain(ctx, fmt.Sprintf("lock:order:%d", event.OrderId), 30*time.Second, nil)
			if err != nil {
				logger.WithFields(logrus.Fields{
					"field":    "paymentWebhookHandler",
					"order_id": event.OrderId,
					"event_id": event.EventId,
				}).Warn("could not obtain redis lock; proceeding without redis lock")
				lock = nil
			}
		}
		defer func() {
			if lock != nil {
				_ = lock.Release(ctx)
			}
		}()

		if err := workflow.ProcessPaymentEventWorkflow(config.GetDB(), logger, &event); err != nil {
			if errors.Is(err, workflow.ErrIdempotencyInProgress) {
				// Another worker holds the event; non-2xx asks the source to retry.
				c.Status(http.StatusConflict)
				return
			}
			logger.WithFields(logrus.Fields{
				"field":    "paymentWebhookHandler",
				"order_id": event.OrderId,
				"event_id": event.EventId,
			}).Error("payment event processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}

		// Success: ack.
		c.Status(http.StatusNoContent)
	}
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		order, err := models.GetOrder(c.Request.Context(), id)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var limit *int
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = &n
			}
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		var status *models.OrderStatus
		if v := c.Query("status"); v != "" {
			s := models.OrderStatus(v)
			status = &s
		}
		var paymentStatus *models.PaymentStatus
		if v := c.Query("payment_status"); v != "" {
			s := models.PaymentStatus(v)
			paymentStatus = &s
		}
		var storeId *int
		if v := c.Query("store_id"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				storeId = &n
			}
		}
		var startDate, endDate *time.Time
		if v := c.Query("start_date"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				startDate = &t
			}
		}
		if v := c.Query("end_date"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				endDate = &t
			}
		}

		connection, err := models.PaginateOrders(c.Request.Context(), limit, after, status, paymentStatus, storeId, startDate, endDate)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

type orderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func updateOrderStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		var req orderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
		order, err := models.UpdateOrderStatus(c.Request.Context(), id, req.Status)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func cancelOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		order, err := models.CancelOrder(c.Request.Context(), id)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func deleteOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		order, err := models.DeleteOrder(c.Request.Context(), id)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted_order_id": order.ID})
	}
}

func createFulfillmentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewFulfillment
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		fulfillment, err := models.CreateFulfillment(c.Request.Context(), &input)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, fulfillment)
	}
}

func purchaseLabelHandler(provider models.ShippingProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.PurchaseLabelInput
		if err := c.ShouldBindJSON(&input); err != nil {
			bindError(c, err)
			return
		}
		fulfillment, err := models.PurchaseLabelAndFulfill(c.Request.Context(), provider, &input)
		if err != nil {
			var providerErr *models.ShippingProviderError
			if errors.As(err, &providerErr) {
				status := http.StatusBadGateway
				if !providerErr.Retryable {
					status = http.StatusUnprocessableEntity
				}
				c.JSON(status, gin.H{"error": providerErr.Message, "retryable": providerErr.Retryable})
				return
			}
			domainError(c, err)
			return
		}
		c.JSON(http.StatusCreated, fulfillment)
	}
}

// shippingRatesHandler quotes carrier rates for an order before the vendor
// commits to a label purchase.
func shippingRatesHandler(provider models.ShippingProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		rates, err := provider.GetRates(c.Request.Context(), id)
		if err != nil {
			var providerErr *models.ShippingProviderError
			if errors.As(err, &providerErr) {
				status := http.StatusBadGateway
				if !providerErr.Retryable {
					status = http.StatusUnprocessableEntity
				}
				c.JSON(status, gin.H{"error": providerErr.Message, "retryable": providerErr.Retryable})
				return
			}
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, rates)
	}
}

func listFulfillmentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		fulfillments, err := models.GetFulfillments(c.Request.Context(), id)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, fulfillments)
	}
}

func searchVariantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var keyword *string
		if v := c.Query("q"); v != "" {
			keyword = &v
		}
		var limit *int
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = &n
			}
		}
		var after *string
		if v := c.Query("after"); v != "" {
			after = &v
		}
		connection, err := models.SearchOrderVariants(c.Request.Context(), keyword, limit, after)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func storeBalanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		storeId, err := strconv.Atoi(c.Param("id"))
		if err != nil || storeId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})
			return
		}

		ctx := c.Request.Context()
		isAdmin, _ := utils.GetIsAdminFromContext(ctx)
		callerStoreId, _ := utils.GetStoreIdFromContext(ctx)
		if !isAdmin && callerStoreId != storeId {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		balance, err := models.GetSellerBalance(ctx, storeId)
		if err != nil {
			domainError(c, err)
			return
		}
		c.JSON(http.StatusOK, balance)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// restShippingProvider talks to the external shipping gateway. Carrier API
// internals live behind that service; this side only maps the wire shape.
type restShippingProvider struct {
	baseURL string
	client  *http.Client
}

func newRestShippingProvider() *restShippingProvider {
	return &restShippingProvider{
		baseURL: os.Getenv("SHIPPING_GATEWAY_URL"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *restShippingProvider) GetRates(ctx context.Context, orderId int) ([]models.ShippingRate, error) {
	var rates []models.ShippingRate
	err := p.call(ctx, "/rates", map[string]interface{}{"order_id": orderId}, &rates)
	return rates, err
}

func (p *restShippingProvider) PurchaseLabel(ctx context.Context, orderId int, carrier string, service string) (*models.ShippingLabel, error) {
	var label models.ShippingLabel
	err := p.call(ctx, "/labels", map[string]interface{}{
		"order_id": orderId,
		"carrier":  carrier,
		"service":  service,
	}, &label)
	if err != nil {
		return nil, err
	}
	return &label, nil
}

func (p *restShippingProvider) call(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if p.baseURL == "" {
		return &models.ShippingProviderError{Retryable: false, Message: "shipping gateway not configured"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &models.ShippingProviderError{Retryable: true, Message: "shipping gateway unreachable: " + err.Error()}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &models.ShippingProviderError{Retryable: false, Message: "route not supported by any carrier"}
	case resp.StatusCode >= 500:
		return &models.ShippingProviderError{Retryable: true, Message: fmt.Sprintf("shipping gateway error (%d)", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return &models.ShippingProviderError{Retryable: false, Message: fmt.Sprintf("shipping gateway rejected request (%d)", resp.StatusCode)}
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, we return 503 for app endpoints.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/webhooks/payment", paymentWebhookHandler())

	shippingProvider := newRestShippingProvider()

	authed := r.Group("/", middlewares.RequireAuth())
	authed.POST("/orders", createOrderHandler())
	authed.GET("/orders", listOrdersHandler())
	authed.GET("/orders/:id", getOrderHandler())
	authed.POST("/orders/:id/status", updateOrderStatusHandler())
	authed.POST("/orders/:id/cancel", cancelOrderHandler())
	authed.DELETE("/orders/:id", deleteOrderHandler())
	authed.GET("/orders/:id/fulfillments", listFulfillmentsHandler())
	authed.GET("/orders/:id/rates", shippingRatesHandler(shippingProvider))
	authed.POST("/fulfillments", createFulfillmentHandler())
	authed.POST("/fulfillments/label", purchaseLabelHandler(shippingProvider))
	authed.GET("/variants/search", searchVariantsHandler())
	authed.GET("/stores/:id/balance", storeBalanceHandler())

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start background workers (publish/release happen AFTER commit).
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewNotificationDispatcher(db, logger).Run(workerCtx)

	reconcileInterval := time.Hour
	if v := strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			reconcileInterval = time.Duration(n) * time.Minute
		}
	}
	go workflow.RunReconciliationLoop(workerCtx, db, logger, reconcileInterval)

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't start new work while we're draining.
	cancelWorkers()

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
