package handler

import (
	"net/http"

	"relay-chat/internal/commands"
	"relay-chat/internal/proxy"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messages *services.MessageService
	users    *services.UserService
	images   *services.ImageService
	access   *proxy.AccessControl
}

func NewMessageHandler(messages *services.MessageService, users *services.UserService, images *services.ImageService, access *proxy.AccessControl) *MessageHandler {
	return &MessageHandler{messages: messages, users: users, images: images, access: access}
}

// Send answers a send refused by a block with 200 and blocked set.
func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ch, err := h.access.CanSendMessage(ctx, uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	sender, err := h.users.Get(ctx, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.messages.SendTextMessage(logger.WithChatID(ctx, ch.Key), commands.SendTextCommand{
		ChatID:       ch.Key,
		Sender:       sender,
		Text:         req.Text,
		ReplyTo:      req.ReplyTo,
		Participants: ch.Users,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Blocked {
		status = http.StatusOK
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.SendMessageResponse{
		Blocked:   result.Blocked,
		MessageID: result.MessageKey,
	}))
}

// SendImage takes a multipart "image" file. A blocked sender is answered
// before anything is uploaded.
func (h *MessageHandler) SendImage(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ch, err := h.access.CanSendMessage(ctx, uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	blocked, err := h.messages.IsBlocked(ctx, uid, ch.Users)
	if err != nil {
		writeError(c, err)
		return
	}
	if blocked {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SendMessageResponse{Blocked: true}))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxImageBytes+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	file, err := fh.Open()
	if err != nil {
		badRequest(c, "unreadable image")
		return
	}
	defer file.Close()

	sender, err := h.users.Get(ctx, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	url, err := h.images.Upload(ctx, services.ImageUpload{
		UploaderID:  uid,
		ChatID:      ch.Key,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	result, err := h.messages.SendImage(logger.WithChatID(ctx, ch.Key), commands.SendImageCommand{
		ChatID:       ch.Key,
		Sender:       sender,
		ImageURL:     url,
		ReplyTo:      c.PostForm("replyTo"),
		Participants: ch.Users,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if result.Blocked {
		status = http.StatusOK
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.SendMessageResponse{
		Blocked:   result.Blocked,
		MessageID: result.MessageKey,
		ImageURL:  url,
	}))
}

// Star toggles the caller's star on a message.
func (h *MessageHandler) Star(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ch, err := h.access.CanViewChat(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	starred, err := h.messages.StarMessage(c.Request.Context(), commands.StarMessageCommand{
		MessageID: c.Param("messageId"),
		ChatID:    ch.Key,
		UID:       uid,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.StarResponse{Starred: starred}))
}
