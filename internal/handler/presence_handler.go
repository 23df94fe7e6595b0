package handler

import (
	"net/http"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/websocket"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
)

// PresenceLister reports who is online.
type PresenceLister interface {
	Online() []websocket.Presence
}

type PresenceHandler struct {
	hub          *websocket.Hub
	presence     PresenceLister
	authenticate websocket.Authenticator
	auth         *middleware.Auth
}

func NewPresenceHandler(hub *websocket.Hub, authenticate websocket.Authenticator, auth *middleware.Auth) *PresenceHandler {
	return &PresenceHandler{hub: hub, presence: hub, authenticate: authenticate, auth: auth}
}

func (h *PresenceHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.Connect)
	router.GET("/api/presence", h.auth.RequireFeature(access.FeatureDashboard), h.ListOnline)
}

// Connect upgrades to the realtime presence and activity stream
// @Summary      Realtime stream
// @Description  Websocket carrying presence, activity and notification events. The token is passed as a query parameter.
// @Tags         presence
// @Param        token  query  string  true  "Access token"
// @Router       /ws [get]
func (h *PresenceHandler) Connect(c *gin.Context) {
	websocket.ServeWs(h.hub, c, h.authenticate)
}

// ListOnline returns the users currently connected
// @Summary      Online users
// @Tags         presence
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]websocket.Presence}
// @Router       /api/presence [get]
func (h *PresenceHandler) ListOnline(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.presence.Online()))
}
