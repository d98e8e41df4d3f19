package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/command"
	"github.com/suPer8Hu/folio/internal/common"
	"github.com/suPer8Hu/folio/internal/contact"
)

func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.Content.ListProjects(c.Request.Context())
	if err != nil {
		failErr(c, err, "list projects failed")
		return
	}
	common.OK(c, gin.H{"projects": projects})
}

func (h *Handler) GetSection(c *gin.Context) {
	name := c.Param("section")
	if !command.ValidSection(name) {
		common.Fail(c, http.StatusNotFound, 40401, "not found")
		return
	}
	s, err := h.Content.GetSection(c.Request.Context(), name)
	if err != nil {
		failErr(c, err, "get section failed")
		return
	}
	common.OK(c, s)
}

type contactReq struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (h *Handler) SubmitContact(c *gin.Context) {
	var req contactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	sub, err := h.Contacts.Submit(c.Request.Context(), req.Name, req.Email, req.Message)
	switch {
	case errors.Is(err, contact.ErrMissingFields):
		common.Fail(c, http.StatusBadRequest, 10002, "Name, email, and message are required")
	case errors.Is(err, contact.ErrInvalidEmail):
		common.Fail(c, http.StatusBadRequest, 10002, "Invalid email format")
	case errors.Is(err, contact.ErrTooLong):
		common.Fail(c, http.StatusBadRequest, 10002, "Message must be under 1000 characters")
	case err != nil:
		failErr(c, err, "contact submission failed")
	default:
		common.OK(c, gin.H{"success": true, "data": sub})
	}
}
