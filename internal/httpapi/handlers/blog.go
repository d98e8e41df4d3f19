package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/blog"
	"github.com/suPer8Hu/folio/internal/common"
)

type blogListQuery struct {
	Page  int    `form:"page" binding:"omitempty,min=1"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
	Tag   string `form:"tag" binding:"omitempty,max=64"`
}

func (h *Handler) ListPosts(c *gin.Context) {
	var q blogListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		common.Fail(c, http.StatusBadRequest, 10002, "page must be >= 1 and limit between 1 and 50")
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = blog.DefaultPageSize
	}
	posts, err := h.Blog.ListPublished(c.Request.Context(), blog.ListOptions{Page: q.Page, Limit: q.Limit, Tag: q.Tag})
	if err != nil {
		failErr(c, err, "list posts failed")
		return
	}
	common.OK(c, gin.H{"posts": posts, "page": q.Page, "limit": q.Limit})
}

func (h *Handler) GetPost(c *gin.Context) {
	p, err := h.Blog.GetPublished(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err, "get post failed")
		return
	}
	common.OK(c, p)
}

func (h *Handler) ListComments(c *gin.Context) {
	threads, err := h.Blog.Comments(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err, "list comments failed")
		return
	}
	common.OK(c, gin.H{"comments": threads})
}

func (h *Handler) PostStats(c *gin.Context) {
	st, err := h.Blog.Stats(c.Request.Context(), c.Param("slug"))
	if err != nil {
		failErr(c, err, "post stats failed")
		return
	}
	common.OK(c, st)
}

func (h *Handler) AddComment(c *gin.Context) {
	var in blog.NewComment
	if err := c.ShouldBindJSON(&in); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	cm, err := h.Blog.AddComment(c.Request.Context(), in)
	if err != nil {
		failErr(c, err, "add comment failed")
		return
	}
	common.OK(c, cm)
}

func (h *Handler) ListAllPosts(c *gin.Context) {
	posts, err := h.Blog.ListAll(c.Request.Context())
	if err != nil {
		failErr(c, err, "list posts failed")
		return
	}
	common.OK(c, gin.H{"posts": posts})
}

func (h *Handler) CreatePost(c *gin.Context) {
	var d blog.Draft
	if err := c.ShouldBindJSON(&d); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.Blog.Create(c.Request.Context(), adminSubject(c), d)
	h.Metrics.AdminCommand(blog.ActionCreate, err == nil)
	if err != nil {
		failErr(c, err, "create post failed")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdatePost(c *gin.Context) {
	var patch blog.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	p, err := h.Blog.Update(c.Request.Context(), adminSubject(c), c.Param("id"), patch)
	h.Metrics.AdminCommand(blog.ActionUpdate, err == nil)
	if err != nil {
		failErr(c, err, "update post failed")
		return
	}
	common.OK(c, p)
}

func (h *Handler) DeletePost(c *gin.Context) {
	deleted, err := h.Blog.Delete(c.Request.Context(), adminSubject(c), c.Param("id"))
	h.Metrics.AdminCommand(blog.ActionDelete, err == nil)
	if err != nil {
		failErr(c, err, "delete post failed")
		return
	}
	common.OK(c, gin.H{"success": true, "deleted": deleted})
}

func (h *Handler) PublishPost(c *gin.Context) {
	p, err := h.Blog.Publish(c.Request.Context(), adminSubject(c), c.Param("id"))
	h.Metrics.AdminCommand(blog.ActionPublish, err == nil)
	if err != nil {
		failErr(c, err, "publish post failed")
		return
	}
	common.OK(c, p)
}
