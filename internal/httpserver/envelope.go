package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/logger"
)

// Every cart response is HTTP 200; the outcome lives in the envelope code.

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": domain.CodeSuccess, "message": "success", "data": data})
}

func respondCode(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(http.StatusOK, gin.H{"code": code, "message": message, "data": nil})
}

func respondErr(c *gin.Context, err error) {
	var be *domain.BusinessError
	if errors.As(err, &be) {
		respondCode(c, be.Code, be.Message)
		return
	}
	_ = c.Error(err)
	logger.FromContext(c).Error("cart request failed", zap.Error(err))
	respondCode(c, domain.CodeInternal, "Internal server error")
}
