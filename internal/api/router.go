package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/atelierhq/backstage/internal/auth"
	"github.com/atelierhq/backstage/internal/config"
)

// adminPrefix is deliberately unguessable-looking rather than /admin;
// the real gate is the token check, the prefix just keeps crawlers and
// casual probing away from the console API.
const adminPrefix = "/admin/secret"

// SetupRouter wires every route group onto a gin engine.
func SetupRouter(cfg *config.Config, jwt *auth.JWTService, contentHandler *ContentHandler, authHandler *AuthHandler, adminHandler *AdminHandler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())

	// When credentials are allowed, origins must be explicit (not *).
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Retry-After"},
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	// ==========================================================================
	// PUBLIC API - read-only site content, no auth
	// ==========================================================================
	r.GET("/api/health", contentHandler.Health)
	content := r.Group("/api/content")
	{
		content.GET("/posts", contentHandler.ListPosts)
		content.GET("/posts/:slug", contentHandler.GetPost)
		content.GET("/team", contentHandler.ListTeam)
	}

	// ==========================================================================
	// AUTH API
	// ==========================================================================
	r.POST("/auth/login", authHandler.Login)
	authed := r.Group("/auth")
	authed.Use(RequireAuth(jwt))
	{
		authed.GET("/me", authHandler.Me)
	}

	// ==========================================================================
	// ADMIN API - console endpoints, admin token required
	// ==========================================================================
	admin := r.Group(adminPrefix)
	admin.Use(RequireAuth(jwt))
	admin.Use(RequireAdmin())
	{
		admin.GET("/tables", adminHandler.ListTables)
		admin.GET("/tables/:table/schema", adminHandler.GetTableSchema)
		admin.GET("/tables/:table/grid", adminHandler.GridView)

		admin.GET("/tables/:table/rows", adminHandler.ListRows)
		admin.POST("/tables/:table/rows", adminHandler.CreateRow)
		admin.PATCH("/tables/:table/rows/:id", adminHandler.UpdateRow)
		admin.PATCH("/tables/:table/rows/:id/cells/:column", adminHandler.UpdateCell)
		admin.DELETE("/tables/:table/rows/:id", adminHandler.DeleteRow)
		admin.POST("/tables/:table/rows/bulk-delete", adminHandler.BulkDeleteRows)
		admin.POST("/tables/:table/refresh", adminHandler.RefreshTable)

		admin.GET("/media", adminHandler.ListMedia)
		admin.POST("/media/upload", adminHandler.UploadMedia)
		admin.GET("/media/:id/url", adminHandler.MediaDownloadURL)
		admin.DELETE("/media/:id", adminHandler.DeleteMedia)
	}

	return r
}
