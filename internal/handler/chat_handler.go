package handler

import (
	"fmt"
	"net/http"

	"relay-chat/internal/commands"
	"relay-chat/internal/domain/user"
	"relay-chat/internal/proxy"
	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"
	relay_errors "relay-chat/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	messages *services.MessageService
	users    *services.UserService
	access   *proxy.AccessControl
}

func NewChatHandler(messages *services.MessageService, users *services.UserService, access *proxy.AccessControl) *ChatHandler {
	return &ChatHandler{messages: messages, users: users, access: access}
}

func (h *ChatHandler) Create(c *gin.Context) {
	var req httpdto.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	chatID, err := h.messages.CreateChat(c.Request.Context(), commands.CreateChatCommand{
		CreatorUID: uid,
		Draft:      req.Draft(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.CreateChatResponse{ChatID: chatID}))
}

// Get returns the chat with its messages.
func (h *ChatHandler) Get(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ch, err := h.access.CanViewChat(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	msgs, err := h.messages.Messages(c.Request.Context(), ch.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]httpdto.MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, httpdto.NewMessageDTO(m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{
		"chat":     httpdto.NewChatDTO(ch),
		"messages": out,
	}))
}

func (h *ChatHandler) Update(c *gin.Context) {
	var req httpdto.UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	patch := req.Patch()
	if patch.Empty() {
		badRequest(c, "nothing to update")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ch, err := h.access.CanManageChat(c.Request.Context(), uid, c.Param("id"), false)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.messages.UpdateChatData(c.Request.Context(), commands.UpdateChatCommand{
		ChatID: ch.Key,
		UID:    uid,
		Patch:  patch,
	}); err != nil {
		writeError(c, err)
		return
	}
	updated, err := h.messages.LoadChat(c.Request.Context(), ch.Key)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewChatDTO(updated)))
}

func (h *ChatHandler) AddMembers(c *gin.Context) {
	var req httpdto.AddMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	ch, err := h.access.CanManageChat(ctx, uid, c.Param("id"), true)
	if err != nil {
		writeError(c, err)
		return
	}
	actor, err := h.users.Get(ctx, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	candidates := make([]user.User, 0, len(req.Users))
	for _, id := range req.Users {
		if ch.HasMember(id) {
			continue
		}
		u, err := h.users.Get(ctx, id)
		if err != nil {
			writeError(c, fmt.Errorf("user %s: %w", id, err))
			return
		}
		candidates = append(candidates, u)
	}
	added, err := h.messages.AddUsersToChat(ctx, commands.AddMembersCommand{
		Actor:      actor,
		Candidates: candidates,
		Chat:       ch,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if added == nil {
		added = []string{}
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.AddMembersResponse{Added: added}))
}

// RemoveMember removes another member, or the caller when :uid is their own
// uid.
func (h *ChatHandler) RemoveMember(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	targetID := c.Param("uid")
	ch, err := h.access.CanManageChat(ctx, uid, c.Param("id"), targetID != uid)
	if err != nil {
		writeError(c, err)
		return
	}
	actor, err := h.users.Get(ctx, uid)
	if err != nil {
		writeError(c, err)
		return
	}
	target := actor
	if targetID != uid {
		if !ch.HasMember(targetID) {
			writeError(c, fmt.Errorf("%s is not a member: %w", targetID, relay_errors.ErrNotFound))
			return
		}
		if target, err = h.users.Get(ctx, targetID); err != nil {
			writeError(c, err)
			return
		}
	}
	if err := h.messages.RemoveUserFromChat(ctx, commands.RemoveMemberCommand{
		Actor:  actor,
		Target: target,
		Chat:   ch,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Blocked reports whether any other member has blocked the caller.
func (h *ChatHandler) Blocked(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	ch, err := h.access.CanViewChat(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	blocked, err := h.messages.IsBlocked(c.Request.Context(), uid, ch.Others(uid))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.BlockedResponse{Blocked: blocked}))
}
