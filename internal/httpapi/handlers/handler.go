package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/folio/internal/auth"
	"github.com/suPer8Hu/folio/internal/blog"
	"github.com/suPer8Hu/folio/internal/common"
	"github.com/suPer8Hu/folio/internal/contact"
	"github.com/suPer8Hu/folio/internal/content"
	"github.com/suPer8Hu/folio/internal/gateway"
	"github.com/suPer8Hu/folio/internal/httpapi/middleware"
	"github.com/suPer8Hu/folio/internal/metrics"
)

// ActivityFeed is the redis mirror of the activity log.
type ActivityFeed interface {
	Recent(ctx context.Context, n int64) ([]string, error)
}

type Handler struct {
	Gateway  *gateway.Gateway
	Tokens   *auth.Service
	Content  *content.Repo
	Mutator  *content.Mutator
	Contacts *contact.Service
	Blog     *blog.Service
	Feed     ActivityFeed // nil without redis
	Metrics  *metrics.Metrics
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// failErr maps err through gateway.StatusOf and logs what the client does not see.
func failErr(c *gin.Context, err error, what string) {
	status, code, msg := gateway.StatusOf(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Int("status", status).
		Msg(what)
	common.Fail(c, status, code, msg)
}

func adminSubject(c *gin.Context) string {
	return c.GetString(middleware.AdminKey)
}
