package handler

import (
	"net/http"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type BlockHandler struct {
	messages *services.MessageService
}

func NewBlockHandler(messages *services.MessageService) *BlockHandler {
	return &BlockHandler{messages: messages}
}

func (h *BlockHandler) List(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	blocked, err := h.messages.BlockedUsers(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	if blocked == nil {
		blocked = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"blocked": blocked}))
}

// Block is idempotent.
func (h *BlockHandler) Block(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.messages.BlockUser(c.Request.Context(), uid, c.Param("uid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *BlockHandler) Unblock(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.messages.UnblockUser(c.Request.Context(), uid, c.Param("uid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
