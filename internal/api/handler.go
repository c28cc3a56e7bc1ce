package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dealer-portal/config"
	"dealer-portal/internal/service"
	"dealer-portal/internal/store"
	"dealer-portal/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var errDealerMismatch = errors.New("dealer_id does not match the signed-in dealer")

// Pinger reports whether the database is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	notifications *service.NotificationService
	catalog       *service.CatalogService
	auth          *service.AuthService
	db            Pinger
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, notifications *service.NotificationService,
	catalog *service.CatalogService, auth *service.AuthService, db Pinger) *Handler {
	return &Handler{
		orders:        orders,
		notifications: notifications,
		catalog:       catalog,
		auth:          auth,
		db:            db,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, cfg config.AuthConfig) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(loggerMiddleware(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := newIPLimiter(cfg.SigninPerMin, cfg.SigninBurst)
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/signin", limiter.middleware(), h.signin)
		authGroup.POST("/signup", limiter.middleware(), h.signup)
	}

	v1 := router.Group("/api")
	v1.Use(h.authenticate(cfg.Enforce))
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PUT("/orders/:id", h.updateOrder)
		v1.POST("/orders/:id/accept", h.acceptOrder)
		v1.POST("/orders/:id/reject", h.rejectOrder)

		v1.GET("/notifications", h.listNotifications)
		v1.PUT("/notifications", h.markAllRead)
		v1.PUT("/notifications/:id", h.markNotification)
		v1.DELETE("/notifications/:id", h.deleteNotification)
		v1.GET("/notifications/:id/history", h.notificationHistory)
		v1.POST("/notifications/:id/accept", h.acceptFromNotification)
		v1.POST("/notifications/:id/reject", h.rejectFromNotification)

		v1.GET("/brands", h.listBrands)
		v1.POST("/brands", h.createBrand)
		v1.GET("/brands/:id", h.getBrand)
		v1.PUT("/brands/:id", h.updateBrand)
		v1.DELETE("/brands/:id", h.deleteBrand)

		v1.GET("/sub-brands", h.listSubBrands)
		v1.POST("/sub-brands", h.createSubBrand)
		v1.DELETE("/sub-brands/:id", h.deleteSubBrand)

		v1.GET("/categories", h.listCategories)
		v1.POST("/categories", h.createCategory)
		v1.GET("/categories/:id", h.getCategory)
		v1.PUT("/categories/:id", h.updateCategory)
		v1.DELETE("/categories/:id", h.deleteCategory)

		v1.GET("/sub-categories", h.listSubCategories)
		v1.POST("/sub-categories", h.createSubCategory)
		v1.DELETE("/sub-categories/:id", h.deleteSubCategory)

		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the database answers a ping
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"time":   time.Now().Unix(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// fail writes the response for err. Unexpected errors are logged and
// hidden behind a generic message.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": verr.Details})
		return
	}

	for _, m := range []struct {
		target error
		status int
	}{
		{service.ErrMissingDealer, http.StatusBadRequest},
		{service.ErrMalformedMetadata, http.StatusBadRequest},
		{service.ErrNoOrderID, http.StatusBadRequest},
		{service.ErrOrderNotFound, http.StatusNotFound},
		{service.ErrNotificationNotFound, http.StatusNotFound},
		{service.ErrOrderNotReferenced, http.StatusNotFound},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrInvalidTransition, http.StatusConflict},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
	} {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"error": m.target.Error()})
			return
		}
	}

	if store.IsUnavailable(err) {
		h.logger.Error("Database unavailable", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}

	h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": []string{err.Error()},
	})
}

// bindOptional decodes the JSON body when there is one.
func bindOptional(c *gin.Context, v interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(v)
}

// requestDealer picks the dealer of the request: the token's dealer when
// signed in, else the dealer_id query parameter.
func requestDealer(c *gin.Context) string {
	if id := c.GetString(dealerKey); id != "" {
		return id
	}
	return c.Query("dealer_id")
}

// dealerFor resolves the dealer for a request body that names one. A
// signed-in dealer may not act for another dealer: the request is refused
// with 403 and false is returned.
func dealerFor(c *gin.Context, given string) (string, bool) {
	id := c.GetString(dealerKey)
	if id == "" {
		if given != "" {
			return given, true
		}
		return c.Query("dealer_id"), true
	}
	if given != "" && given != id {
		c.JSON(http.StatusForbidden, gin.H{"error": errDealerMismatch.Error()})
		return "", false
	}
	return id, true
}

func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

func queryInt64(c *gin.Context, name string) *int64 {
	n, err := strconv.ParseInt(c.Query(name), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
