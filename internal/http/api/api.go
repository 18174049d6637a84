package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prepdesk/b2bquota/internal/config"
	"github.com/prepdesk/b2bquota/internal/http/api/handlers"
	"github.com/prepdesk/b2bquota/internal/members"
	"github.com/prepdesk/b2bquota/internal/models"
	"github.com/prepdesk/b2bquota/internal/quota"
	"github.com/prepdesk/b2bquota/internal/security"
	"gorm.io/gorm"
)

// RegisterRoutes registers the public and admin-authenticated API routes.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, engine *quota.Engine, memberSvc *members.Service, jwtCfg config.JWTConfig) {
	if r == nil || db == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Check)

	v0 := r.Group("/v0")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	v0.POST("/auth/login", authHandler.Login)

	b2b := v0.Group("/b2b")
	b2b.Use(adminAuthMiddleware(db, jwtCfg))

	orgs := b2b.Group("/orgs/:orgId")

	quotaHandler := handlers.NewQuotaHandler(engine)
	orgs.POST("/quotas/allocate", quotaHandler.Allocate)
	orgs.POST("/quotas/revoke", quotaHandler.Revoke)
	orgs.POST("/quotas/topup", quotaHandler.Topup)
	orgs.GET("/quotas/summary", quotaHandler.Summary)

	memberHandler := handlers.NewMemberHandler(memberSvc)
	orgs.POST("/members", memberHandler.Create)
	orgs.POST("/members/bulk", memberHandler.BulkCreate)
	orgs.GET("/members", memberHandler.List)
	orgs.PUT("/members/:memberId/status", memberHandler.UpdateStatus)
}

// adminAuthMiddleware validates admin JWTs and loads the admin into context.
func adminAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var admin models.Admin
		if errFind := db.WithContext(c.Request.Context()).First(&admin, claims.AdminID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin not found"})
			return
		}
		if !admin.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin disabled"})
			return
		}

		c.Set("adminID", admin.ID)
		c.Next()
	}
}
