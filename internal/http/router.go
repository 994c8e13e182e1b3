package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/inkwell/internal/auth"
	"github.com/geocoder89/inkwell/internal/config"
	"github.com/geocoder89/inkwell/internal/http/handlers"
	"github.com/geocoder89/inkwell/internal/http/middlewares"
	"github.com/geocoder89/inkwell/internal/observability"
	"github.com/geocoder89/inkwell/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	serviceName  = "inkwell-api"
	maxJSONBytes = 1 << 20
)

// Deps are the collaborators the routes are wired to. Cache, Prom, Metrics
// and Ping may be nil.
type Deps struct {
	Users   handlers.UserStore
	Posts   handlers.PostStore
	Covers  handlers.CoverStore
	Cache   handlers.ResponseCache
	Hasher  handlers.PasswordHasher
	JWT     *auth.Manager
	Prom    *observability.Prom
	Metrics http.Handler
	Ping    func(ctx context.Context) error
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())

	if cfg.OTELEndpoint != "" {
		r.Use(otelgin.Middleware(serviceName))
	}

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))

	// ops
	health := handlers.NewHealthHandler(deps.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// stored covers, read only
	if cfg.UploadDir != "" {
		r.Static("/"+uploads.PublicPrefix, cfg.UploadDir)
	}

	// wire up handlers
	authMW := middlewares.NewAuthMiddleware(deps.JWT)
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Hasher, deps.JWT, deps.Prom, log, cfg)
	postsHandler := handlers.NewPostsHandler(deps.Posts, deps.Covers, deps.Cache, deps.Prom, log)

	authLimiter := middlewares.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	credentials := r.Group("",
		authLimiter.RateLimiterMiddleware(middlewares.KeyByIP),
		middlewares.MaxBodyBytes(maxJSONBytes),
		middlewares.RequireContentType("application/json"),
	)
	credentials.POST("/register", authHandler.Register)
	credentials.POST("/login", authHandler.Login)

	r.GET("/profile", authMW.RequireAuth(), authHandler.Profile)
	r.POST("/logout", authHandler.Logout)

	// auth runs before the multipart body is read
	writes := r.Group("/post",
		authMW.RequireAuth(),
		middlewares.MaxBodyBytes(cfg.MaxUploadBytes),
		middlewares.RequireContentType("multipart/form-data"),
	)
	writes.POST("", postsHandler.CreatePost)
	writes.PUT("", postsHandler.UpdatePost)

	r.GET("/post", postsHandler.ListPosts)
	r.GET("/post/:id", postsHandler.GetPostByID)

	return r
}
