package httpserver

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lingxian-cart/internal/db"
	"lingxian-cart/internal/logger"
	"lingxian-cart/internal/metrics"
	cartsvc "lingxian-cart/internal/service/cart"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	CartSvc     cartService
	Tokens      tokenService
	DB          db.Pinger
	Metrics     *metrics.Registry
	CORSOrigins []string
	// DevLogin exposes a route that issues a token for any user id.
	DevLogin bool
}

type cartService interface {
	List(ctx context.Context, userID string) (*cartsvc.View, error)
	Add(ctx context.Context, userID, productID string, quantity int) error
	UpdateQuantity(ctx context.Context, userID, id string, quantity int) error
	Remove(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) error
	Select(ctx context.Context, userID, id string, selected bool) error
	SelectMerchant(ctx context.Context, userID, merchantID string, selected bool) error
	SelectAll(ctx context.Context, userID string, selected bool) error
}

type tokenService interface {
	Issue(userID string) (string, time.Time, error)
	Validate(token string) (string, error)
}

// buildRouter wires routes for the API.
func buildRouter(log *zap.Logger, deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(logger.RequestID(), logger.GinMiddleware(log), logger.Recovery(log))
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(corsMiddleware(deps.CORSOrigins))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api/user")
	if deps.DevLogin {
		api.POST("/auth/dev-login", devLoginHandler(deps.Tokens))
	}

	h := &cartHandler{svc: deps.CartSvc}
	carts := api.Group("/cart", authMiddleware(deps.Tokens))
	carts.GET("", h.list)
	carts.POST("", h.add)
	carts.DELETE("", h.clear)
	carts.PUT("/select-all", h.selectAll)
	carts.PUT("/merchant/:merchantId/select", h.selectMerchant)
	carts.PUT("/:id", h.updateQuantity)
	carts.DELETE("/:id", h.remove)
	carts.PUT("/:id/select", h.selectItem)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", logger.RequestIDHeader)
	cfg.ExposeHeaders = []string{logger.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
