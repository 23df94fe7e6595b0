package handler

import (
	"net/http"
	"strconv"

	"nexus/internal/access"
	"nexus/internal/middleware"
	"nexus/internal/service"
	"nexus/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AccessHandler struct {
	accessService service.AccessService
	auth          *middleware.Auth
	log           *zap.Logger
}

func NewAccessHandler(accessService service.AccessService, auth *middleware.Auth, log *zap.Logger) *AccessHandler {
	return &AccessHandler{accessService: accessService, auth: auth, log: orNop(log)}
}

func (h *AccessHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/access", h.auth.Authenticate())
	{
		group.GET("/me", h.GetAccess)
		group.GET("/gate", h.EvaluateGate)
	}
}

// GetAccess returns what the current user may see
// @Summary      Current access
// @Description  Returns the resolved role, admin flag, overlay state and accessible features
// @Tags         access
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=service.AccessSummary}
// @Router       /api/access/me [get]
func (h *AccessHandler) GetAccess(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := h.accessService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// EvaluateGate evaluates a feature gate for the current user
// @Summary      Evaluate feature gate
// @Description  Tells the dashboard whether to render gated content, a fallback, a denial or nothing
// @Tags         access
// @Security     BearerAuth
// @Produce      json
// @Param        feature       query     string  false  "Feature key"
// @Param        minimum_role  query     string  false  "Minimum role"
// @Param        fallback      query     bool    false  "A fallback is available"
// @Param        show_denied   query     bool    false  "Show the access restricted message"
// @Success      200           {object}  response.Response{data=access.GateResult}
// @Failure      400           {object}  response.Response
// @Router       /api/access/gate [get]
func (h *AccessHandler) EvaluateGate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var opts access.GateOptions
	if f := c.Query("feature"); f != "" {
		feature, err := access.ParseFeature(f)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		opts.Feature = feature
	}
	if r := c.Query("minimum_role"); r != "" {
		role, err := access.ParseRole(r)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		opts.MinimumRole = role
	}
	opts.HasFallback, _ = strconv.ParseBool(c.Query("fallback"))
	opts.ShowDenied, _ = strconv.ParseBool(c.Query("show_denied"))

	result, err := h.accessService.Gate(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	payload := gin.H{"state": result.State, "render": result.Render}
	if result.Render == access.RenderRestricted {
		payload["message"] = access.RestrictedMessage
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payload))
}
