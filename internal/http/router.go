// Package http wires gin routes and middleware into the API surface.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/contactvault/contactvault/internal/config"
	"github.com/contactvault/contactvault/internal/domain"
	"github.com/contactvault/contactvault/internal/http/handler"
	httpmiddleware "github.com/contactvault/contactvault/internal/http/middleware"
	"github.com/contactvault/contactvault/internal/middleware"
	"github.com/contactvault/contactvault/internal/roles"
)

// NewRouter wires Gin routes and middleware.
func NewRouter(
	cfg config.Config,
	authHandler *handler.AuthHandler,
	contactHandler *handler.ContactHandler,
	authMiddleware *httpmiddleware.Auth,
	rateLimiter *middleware.RateLimiter,
	quota *middleware.Quota,
	pool *pgxpool.Pool,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(middleware.CORS(cfg))
	r.Use(otelgin.Middleware(cfg.ServiceName))

	limited := quota.Handler()

	anyRole := roles.Allow(domain.RoleAdmin, domain.RoleModerator, domain.RoleUser)
	editors := roles.Allow(domain.RoleAdmin, domain.RoleModerator)
	adminOnly := roles.Allow(domain.RoleAdmin)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", limited, authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.GET("/refresh_token", authHandler.RefreshToken)
		auth.GET("/confirmed_email/:token", authHandler.ConfirmEmail)
		auth.POST("/request_email", authHandler.RequestEmail)
		auth.GET("/forgot_password", limited, authHandler.ForgotPassword)
		auth.PATCH("/reset_password", limited, authHandler.ResetPassword)
	}

	contacts := r.Group("/contacts", authMiddleware.RequireAuth)
	{
		contacts.POST("/create", authMiddleware.RequireRoles(anyRole), limited, contactHandler.Create)
		contacts.GET("/", authMiddleware.RequireRoles(anyRole), limited, contactHandler.List)
		contacts.GET("/me/", contactHandler.Me)
		contacts.GET("/:id", authMiddleware.RequireRoles(anyRole), limited, contactHandler.Get)
		contacts.PUT("/update/:id", authMiddleware.RequireRoles(editors), limited, contactHandler.Update)
		contacts.PATCH("/change_role/:id", authMiddleware.RequireRoles(editors), limited, contactHandler.ChangeRole)
		contacts.DELETE("/delete/:id", authMiddleware.RequireRoles(adminOnly), limited, contactHandler.Delete)
		contacts.GET("/search_first_name/:inquiry", authMiddleware.RequireRoles(anyRole), limited, contactHandler.SearchFirstName)
		contacts.GET("/search_last_name/:inquiry", authMiddleware.RequireRoles(anyRole), limited, contactHandler.SearchLastName)
		contacts.GET("/search_mail/:inquiry", authMiddleware.RequireRoles(anyRole), limited, contactHandler.SearchEmail)
		contacts.GET("/search/:inquiry", authMiddleware.RequireRoles(anyRole), limited, contactHandler.Search)
		contacts.PATCH("/avatar", limited, contactHandler.UpdateAvatar)
	}

	r.GET("/bdays", contactHandler.Birthdays)
	r.GET("/api/healthchecker", healthcheck(pool))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to Address Book"})
	})

	return r
}

func healthcheck(pool *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var one int
		if err := pool.QueryRow(c.Request.Context(), "SELECT 1").Scan(&one); err != nil || one != 1 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Error connecting to the database"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Welcome to the Address Book API"})
	}
}
