package handler

import (
	"net/http"
	"strconv"

	"relay-chat/internal/services"
	"relay-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// SessionCloser ends the live sessions of a user, e.g. open roster streams.
type SessionCloser interface {
	DisconnectUser(uid string) int
}

type UserHandler struct {
	service  *services.UserService
	sessions SessionCloser
}

func NewUserHandler(service *services.UserService, sessions SessionCloser) *UserHandler {
	return &UserHandler{service: service, sessions: sessions}
}

func (h *UserHandler) SignUp(c *gin.Context) {
	var req httpdto.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	u, err := h.service.SignUp(c.Request.Context(), services.SignUpInput{
		UID:       uid,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.NewSelfDTO(u)))
}

func (h *UserHandler) Me(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	u, err := h.service.Get(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewSelfDTO(u)))
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req httpdto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	u, err := h.service.UpdateProfile(c.Request.Context(), uid, req.Patch())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NewSelfDTO(u)))
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteAccount(c.Request.Context(), uid); err != nil {
		writeError(c, err)
		return
	}
	if h.sessions != nil {
		h.sessions.DisconnectUser(uid)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Search matches the username prefix. The caller is left out of the result.
func (h *UserHandler) Search(c *gin.Context) {
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	users, err := h.service.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	resp := httpdto.SearchUsersResponse{Users: []httpdto.UserDTO{}}
	for _, u := range users {
		if u.UID == uid {
			continue
		}
		resp.Users = append(resp.Users, httpdto.NewUserDTO(u))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

func (h *UserHandler) AddPushToken(c *gin.Context) {
	var req httpdto.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.RegisterPushToken(c.Request.Context(), uid, req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// RemovePushToken unregisters the calling device on sign-out.
func (h *UserHandler) RemovePushToken(c *gin.Context) {
	var req httpdto.PushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	uid, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.service.RemovePushToken(c.Request.Context(), uid, req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
