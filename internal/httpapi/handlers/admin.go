package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/command"
	"github.com/suPer8Hu/folio/internal/common"
)

// Missing or oversized credentials are left to Issue, which answers 401.
type tokenReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type listQuery struct {
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Source string `form:"source" binding:"omitempty,oneof=db feed"`
}

func bindList(c *gin.Context) (listQuery, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "limit must be a number between 1 and 500")
		return q, false
	}
	if q.Limit == 0 {
		q.Limit = 100
	}
	return q, true
}

// IssueToken serves both /api/admin/token and /api/admin/login.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	tok, err := h.Tokens.Issue(req.Username, req.Password)
	if err != nil {
		failErr(c, err, "token issue failed")
		return
	}
	common.OK(c, gin.H{"token": tok.Value, "expiresAt": tok.ExpiresAt})
}

// ApplyContent takes a structured command envelope, for clients that want
// the command applied outside the chat flow.
func (h *Handler) ApplyContent(c *gin.Context) {
	var env command.Envelope
	if err := c.ShouldBindJSON(&env); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	cmd, err := env.Decode()
	if err != nil {
		h.Metrics.AdminCommand(string(env.Type), false)
		failErr(c, err, "admin command rejected")
		return
	}
	res, err := h.Mutator.Apply(c.Request.Context(), adminSubject(c), cmd)
	h.Metrics.AdminCommand(string(cmd.Kind()), err == nil)
	if err != nil {
		failErr(c, err, "admin command failed")
		return
	}
	common.OK(c, gin.H{"success": true, "result": res})
}

// ListActivity reads the activity log. source=feed serves the redis mirror
// kept by the worker instead of the database.
func (h *Handler) ListActivity(c *gin.Context) {
	q, ok := bindList(c)
	if !ok {
		return
	}
	if q.Source == "feed" {
		h.listFeed(c, q.Limit)
		return
	}
	rows, err := h.Content.ListActivity(c.Request.Context(), q.Limit)
	if err != nil {
		failErr(c, err, "list activity failed")
		return
	}
	common.OK(c, gin.H{"activities": rows})
}

func (h *Handler) listFeed(c *gin.Context, limit int) {
	if h.Feed == nil {
		common.Fail(c, http.StatusNotFound, 40402, "activity feed not configured")
		return
	}
	raw, err := h.Feed.Recent(c.Request.Context(), int64(limit))
	if err != nil {
		failErr(c, err, "read activity feed failed")
		return
	}
	rows := make([]json.RawMessage, 0, len(raw))
	for _, r := range raw {
		if !json.Valid([]byte(r)) {
			continue
		}
		rows = append(rows, json.RawMessage(r))
	}
	common.OK(c, gin.H{"activities": rows, "source": "feed"})
}

func (h *Handler) ListContacts(c *gin.Context) {
	q, ok := bindList(c)
	if !ok {
		return
	}
	rows, err := h.Contacts.List(c.Request.Context(), q.Limit)
	if err != nil {
		failErr(c, err, "list contacts failed")
		return
	}
	common.OK(c, gin.H{"contacts": rows})
}
