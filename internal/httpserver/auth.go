package httpserver

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/logger"
)

const userIDKey = "user_id"

// authMiddleware resolves the bearer token to a user id. Failures are reported
// in the envelope so the client can tell an expired session from a network error.
func authMiddleware(tokens tokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" || tokens == nil {
			respondCode(c, domain.CodeUnauthorized, "Please log in first")
			return
		}
		userID, err := tokens.Validate(token)
		if err != nil {
			logger.FromContext(c).Debug("bearer token rejected", zap.Error(err))
			respondCode(c, domain.CodeUnauthorized, "Session expired, please log in again")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

type devLoginRequest struct {
	UserID string `json:"userId"`
}

type userInfo struct {
	UserID string `json:"userId"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expiresAt"`
	UserInfo  userInfo `json:"userInfo"`
}

func devLoginHandler(tokens tokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondCode(c, domain.CodeBadRequest, "Invalid request body")
			return
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			respondCode(c, domain.CodeBadRequest, "userId is required")
			return
		}
		token, expires, err := tokens.Issue(userID)
		if err != nil {
			respondErr(c, err)
			return
		}
		logger.FromContext(c).Info("dev login", zap.String("user_id", userID))
		respondOK(c, loginResponse{Token: token, ExpiresAt: expires.Unix(), UserInfo: userInfo{UserID: userID}})
	}
}
