package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/folio/internal/common"
	"github.com/suPer8Hu/folio/internal/gateway"
	"github.com/suPer8Hu/folio/internal/ratelimit"
)

type chatReq struct {
	Message  string                `json:"message"`
	Context  []gateway.ChatMessage `json:"context"`
	Settings gateway.Settings      `json:"settings"`
}

func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	resp, err := h.Gateway.Handle(c.Request.Context(), gateway.Request{
		Message:       req.Message,
		Context:       req.Context,
		Settings:      req.Settings,
		Authorization: c.GetHeader("Authorization"),
		ClientID:      ratelimit.ClientID(c.GetHeader("X-Forwarded-For")),
	})
	if err != nil {
		failErr(c, err, "chat request failed")
		return
	}

	if resp.AdminCommand != nil {
		body := gin.H{"adminCommand": resp.AdminCommand}
		if resp.Result != nil {
			body["result"] = resp.Result
		}
		common.OK(c, body)
		return
	}
	common.OK(c, gin.H{
		"message":    resp.Message,
		"tokenCount": resp.TokenCount,
		"cost":       resp.Cost,
		"model":      resp.Model,
		"timestamp":  resp.Timestamp,
	})
}
