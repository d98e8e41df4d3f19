package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/common"
	"github.com/suPer8Hu/folio/internal/config"
	"github.com/suPer8Hu/folio/internal/gateway"
	"github.com/suPer8Hu/folio/internal/httpapi/handlers"
	"github.com/suPer8Hu/folio/internal/httpapi/middleware"
	"github.com/suPer8Hu/folio/internal/metrics"
)

type Deps struct {
	Cfg     config.Config
	Handler *handlers.Handler
	Tokens  gateway.Verifier
	Metrics *metrics.Metrics
	// Throttle guards token issuance, CommentThrottle anonymous comments. Both optional.
	Throttle        *middleware.Throttle
	CommentThrottle *middleware.Throttle
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.AccessLog())
	r.Use(d.Metrics.GinMiddleware())
	if c, ok := corsConfig(d.Cfg); ok {
		r.Use(cors.New(c))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := d.Handler

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")
	api.POST("/chat", h.Chat)
	api.GET("/projects", h.ListProjects)
	api.GET("/content/:section", h.GetSection)
	api.POST("/contact", h.SubmitContact)

	api.GET("/blog", h.ListPosts)
	api.GET("/blog/:slug", h.GetPost)
	api.GET("/blog/:slug/comments", h.ListComments)
	api.GET("/blog/:slug/stats", h.PostStats)
	api.POST("/blog/comment", throttled(d.CommentThrottle, h.AddComment)...)

	issue := throttled(d.Throttle, h.IssueToken)
	api.POST("/admin/token", issue...)
	api.POST("/admin/login", issue...)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired(d.Tokens))
	admin.POST("/content", h.ApplyContent)
	admin.GET("/activity", h.ListActivity)
	admin.GET("/contacts", h.ListContacts)
	admin.GET("/blog", h.ListAllPosts)
	admin.POST("/blog", h.CreatePost)
	admin.PUT("/blog/:id", h.UpdatePost)
	admin.DELETE("/blog/:id", h.DeletePost)
	admin.POST("/blog/:id/publish", h.PublishPost)
	return r
}

func throttled(t *middleware.Throttle, h gin.HandlerFunc) []gin.HandlerFunc {
	if t == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{t.Middleware(), h}
}

// corsConfig allows the configured origins, or any origin in dev.
func corsConfig(cfg config.Config) (cors.Config, bool) {
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	switch {
	case len(cfg.CORSOrigins) > 0:
		c.AllowOrigins = cfg.CORSOrigins
	case cfg.Env == "dev":
		c.AllowAllOrigins = true
	default:
		return cors.Config{}, false
	}
	return c, true
}
