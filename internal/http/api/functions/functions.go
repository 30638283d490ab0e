package functions

import (
	"errors"
	"net/http"

	"github.com/avnova/sqyros/internal/assist"
	"github.com/avnova/sqyros/internal/http/api/functions/handlers"
	"github.com/avnova/sqyros/internal/security"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterFunctionRoutes registers the guide, chat, router and usage endpoints.
func RegisterFunctionRoutes(r *gin.Engine, svc *assist.Service, verifier *security.Verifier) {
	if r == nil || svc == nil {
		return
	}

	fn := r.Group("/functions/v1")
	for _, path := range []string{"/generate-guide", "/chat", "/claude-router", "/usage"} {
		fn.OPTIONS(path, handlers.Preflight)
	}

	authed := fn.Group("")
	authed.Use(userAuthMiddleware(verifier))

	h := handlers.NewFunctionsHandler(svc)
	authed.POST("/generate-guide", h.GenerateGuide)
	authed.POST("/chat", h.Chat)
	authed.POST("/claude-router", h.ClaudeRouter)
	authed.GET("/usage", h.Usage)
}

// RegisterHealthRoutes registers the liveness endpoint.
func RegisterHealthRoutes(r *gin.Engine, db *gorm.DB) {
	if r == nil {
		return
	}
	r.GET("/healthz", handlers.NewHealthHandler(db).Healthz)
}

// userAuthMiddleware verifies the bearer token and stores its subject as userID.
func userAuthMiddleware(verifier *security.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token, ok := security.BearerToken(authHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		userID, errJWT := verifier.Subject(token)
		if errJWT != nil {
			message := "Invalid token"
			if errors.Is(errJWT, security.ErrExpiredToken) {
				message = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}
