package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"relay-chat/internal/auth"
	"relay-chat/internal/roster"
	"relay-chat/internal/services"
	"relay-chat/internal/store"
	"relay-chat/internal/transport/httpdto"
	"relay-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const FrameRoster = "roster"

// Frame is one message on the roster stream.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type Handler struct {
	verifier auth.TokenVerifier
	hub      *Hub
	store    store.Store
	log      *logger.Logger
	upgrader websocket.Upgrader
}

func NewHandler(verifier auth.TokenVerifier, hub *Hub, st store.Store, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Handler{
		verifier: verifier,
		hub:      hub,
		store:    st,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect authenticates with the token query parameter (or a bearer
// header), upgrades, and streams the caller's roster until either side
// closes. The roster's subscriptions live exactly as long as the socket.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearer(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}
	uid, err := h.verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), uid))
	defer cancel()
	log := h.log.Ctx(ctx)

	client := NewClient(conn, uid)
	push := func(p roster.Projection) {
		payload, err := json.Marshal(Frame{Type: FrameRoster, Data: httpdto.NewRosterDTO(p)})
		if err != nil {
			log.Error("encode roster frame", zap.Error(err))
			return
		}
		client.SendMessage(payload)
	}

	synchronizer, err := roster.New(ctx, h.store, uid, roster.WithOnChange(push), roster.WithLogger(h.log))
	if err != nil {
		log.Warn("roster start failed", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "roster unavailable"), time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer func() {
		if err := synchronizer.Close(); err != nil {
			log.Warn("roster close", zap.Error(err))
		}
	}()

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	push(synchronizer.Snapshot())
	go client.WriteLoop(ctx)
	log.Info("roster stream opened", zap.String("client_id", client.ID))

	client.ReadLoop()
	log.Info("roster stream closed", zap.String("client_id", client.ID))
}

func bearer(value string) string {
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
