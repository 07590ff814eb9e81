package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/blogdeck/blogs"
	"github.com/cppla/blogdeck/config"
	"github.com/cppla/blogdeck/controllers"
	"github.com/cppla/blogdeck/middleware"
	"github.com/cppla/blogdeck/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(hooks *blogs.Hooks) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(ginzap.GinzapWithConfig(utils.Logger, &ginzap.Config{
		TimeFormat:   time.RFC3339,
		UTC:          true,
		SkipPaths:    []string{"/health", "/metrics"},
		DefaultLevel: zapcore.InfoLevel,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", c.GetString(utils.RequestIDKey))}
		},
	}))
	r.Use(ginzap.CustomRecoveryWithZap(utils.Logger, true, func(c *gin.Context, _ any) {
		utils.Error(c, http.StatusInternalServerError, 50000, "internal server error")
		c.Abort()
	}))
	r.Use(middleware.Prometheus())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", utils.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Location", utils.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	postController := controllers.NewPostController(hooks)
	statsController := controllers.NewStatsController(hooks.Store())
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")

	postsGroup := api.Group("/posts")
	postsGroup.GET("", postController.ListPosts)
	postsGroup.GET("/new", postController.NewPostForm)
	postsGroup.GET("/:id", postController.GetPost)
	postsGroup.POST("/refetch", postController.RefetchPosts)
	postsGroup.POST("/:id/refetch", postController.RefetchPost)
	postsGroup.POST("", middleware.RateLimitMiddleware(cfg.RateLimitPerMinute), postController.CreatePost)

	api.GET("/config", configController.GetAPIConfig)
	api.GET("/cache/stats", statsController.GetCacheStats)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
